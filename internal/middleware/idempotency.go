package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/servineo/payment-system/internal/interfaces"
	"github.com/servineo/payment-system/internal/models"
)

// IdempotencyMiddleware short-circuits repeated payment creations carrying the
// same Idempotency-Key, checking the Redis cache first and the database
// second. redisClient may be nil (demo mode), in which case only the database
// is consulted.
func IdempotencyMiddleware(redisClient *redis.Client, paymentRepo interfaces.PaymentRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()

		if redisClient != nil {
			cached, err := redisClient.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
			if err == nil {
				var payment models.Payment
				if err := json.Unmarshal([]byte(cached), &payment); err == nil {
					c.JSON(http.StatusOK, payment)
					c.Abort()
					return
				}
			}
		}

		payment, err := paymentRepo.GetByIdempotencyKey(ctx, key)
		if err == nil && payment != nil {
			c.JSON(http.StatusOK, payment)
			c.Abort()
			return
		}

		c.Set("idempotency_key", key)
		c.Next()
	}
}
