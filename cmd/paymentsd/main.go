package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/servineo/payment-system/internal/api"
	"github.com/servineo/payment-system/internal/attempts"
	"github.com/servineo/payment-system/internal/config"
	"github.com/servineo/payment-system/internal/events"
	"github.com/servineo/payment-system/internal/handlers"
	"github.com/servineo/payment-system/internal/interfaces"
	"github.com/servineo/payment-system/internal/locks"
	"github.com/servineo/payment-system/internal/repository"
	"github.com/servineo/payment-system/internal/telemetry"
)

func main() {
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("paymentsd"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Payment Service")

	var (
		repo        interfaces.PaymentRepository
		limiter     interfaces.AttemptLimiter
		locker      interfaces.PaymentLocker
		publisher   interfaces.EventPublisher
		redisClient *redis.Client
	)

	if cfg.DemoMode {
		// Everything in-process: no database, brokers or cache required.
		telemetry.Logger.Info("Running in demo mode")
		repo = repository.NewInMemoryPaymentRepository()
		limiter = attempts.NewInMemoryLimiter(cfg.MaxAttempts, cfg.LockoutWait)
		locker = locks.NewInMemoryLocker()
		publisher = events.NoopPublisher{}
	} else {
		// Connect to PostgreSQL
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		pgRepo := repository.NewPaymentRepository(db)
		if err := pgRepo.InitDB(); err != nil {
			telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		repo = pgRepo

		// Connect to Redis
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		limiter = attempts.NewRedisLimiter(redisClient, cfg.MaxAttempts, cfg.LockoutWait)
		locker = locks.NewRedisLocker(redisClient)

		// Connect to Kafka
		kafkaWriter := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers),
			Topic:    "payment.paid",
			Balancer: &kafka.LeastBytes{},
		}
		defer kafkaWriter.Close()

		// Connect to NATS
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()

		publisher = events.NewPublisher(kafkaWriter, nc)
	}

	paymentHandler := handlers.NewPaymentHandler(repo, limiter, locker, publisher, redisClient, cfg.CodeTTL)
	r := api.NewRouter(paymentHandler, repo, redisClient)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Payment Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
