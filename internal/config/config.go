package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers string
	NatsURL      string
	OTLPEndpoint string
	CodeTTL      time.Duration
	MaxAttempts  int
	LockoutWait  time.Duration
	DemoMode     bool
}

func Load() *Config {
	// Best effort: absent .env is the normal case in deployment.
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8084"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		NatsURL:      os.Getenv("NATS_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CodeTTL:      getDuration("PAYMENT_CODE_TTL", 5*time.Minute),
		MaxAttempts:  getInt("PAYMENT_MAX_ATTEMPTS", 3),
		LockoutWait:  getDuration("PAYMENT_LOCKOUT_WAIT", 10*time.Minute),
		DemoMode:     getBool("PAYMENT_DEMO_MODE", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
