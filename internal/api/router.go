package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/servineo/payment-system/internal/handlers"
	"github.com/servineo/payment-system/internal/interfaces"
	"github.com/servineo/payment-system/internal/middleware"
	"github.com/servineo/payment-system/internal/telemetry"
)

func NewRouter(paymentHandler *handlers.PaymentHandler, paymentRepo interfaces.PaymentRepository, redisClient *redis.Client) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "paymentsd"})
	})

	// Payment routes
	payments := r.Group("/payments")
	{
		payments.POST("", middleware.IdempotencyMiddleware(redisClient, paymentRepo), paymentHandler.CreatePayment)
		payments.GET("/:id/summary", paymentHandler.GetSummary)
		payments.PATCH("/:id/confirm", paymentHandler.ConfirmPayment)
		payments.POST("/:id/regenerate-code", paymentHandler.RegenerateCode)
	}

	return r
}
