package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/servineo/payment-system/internal/interfaces"
	"github.com/servineo/payment-system/internal/models"
	"github.com/servineo/payment-system/internal/paycode"
	"github.com/servineo/payment-system/internal/telemetry"
)

type PaymentHandler struct {
	repo        interfaces.PaymentRepository
	limiter     interfaces.AttemptLimiter
	locker      interfaces.PaymentLocker
	publisher   interfaces.EventPublisher
	redisClient *redis.Client
	codeTTL     time.Duration
}

// NewPaymentHandler wires the confirmation flow's server side. redisClient is
// only used for the idempotency cache and may be nil in demo mode.
func NewPaymentHandler(
	repo interfaces.PaymentRepository,
	limiter interfaces.AttemptLimiter,
	locker interfaces.PaymentLocker,
	publisher interfaces.EventPublisher,
	redisClient *redis.Client,
	codeTTL time.Duration,
) *PaymentHandler {
	return &PaymentHandler{
		repo:        repo,
		limiter:     limiter,
		locker:      locker,
		publisher:   publisher,
		redisClient: redisClient,
		codeTTL:     codeTTL,
	}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Warn("Invalid payment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "BOB"
	}

	code, err := paycode.Generate()
	if err != nil {
		telemetry.Logger.Error("Failed to generate confirmation code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	expiresAt := time.Now().Add(h.codeTTL)
	payment := models.Payment{
		ID:             uuid.New().String(),
		JobID:          req.JobID,
		RequesterID:    req.RequesterID,
		FixerID:        req.FixerID,
		Status:         models.StatusPending,
		Code:           code,
		Amount:         models.Amount{Total: req.Total, Currency: currency},
		CodeExpiresAt:  &expiresAt,
		IdempotencyKey: c.GetString("idempotency_key"),
		CreatedAt:      time.Now(),
	}

	telemetry.Logger.Info("Creating payment",
		zap.String("payment_id", payment.ID),
		zap.String("job_id", payment.JobID),
		zap.Float64("total", payment.Amount.Total),
	)

	if err := h.repo.Create(ctx, &payment); err != nil {
		telemetry.Logger.Error("Failed to save payment to database",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	if h.redisClient != nil && payment.IdempotencyKey != "" {
		paymentJSON, _ := json.Marshal(payment)
		h.redisClient.Set(ctx, fmt.Sprintf("idempotency:%s", payment.IdempotencyKey),
			paymentJSON, 24*time.Hour)
	}

	if err := h.publisher.PaymentUpdated(ctx, &payment, "created"); err != nil {
		telemetry.Logger.Error("Failed to publish payment notification",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
	}

	telemetry.PaymentsCreated.Inc()
	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) GetSummary(c *gin.Context) {
	id := c.Param("id")

	payment, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return
	}

	c.JSON(http.StatusOK, payment.Summary(time.Now()))
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}

	code := paycode.Normalize(req.Code)
	if err := paycode.Validate(code); err != nil {
		telemetry.ConfirmAttempts.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		telemetry.ConfirmAttempts.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return
	}

	if payment.Status.IsTerminal() {
		telemetry.ConfirmAttempts.WithLabelValues("already_processed").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "Payment was already processed"})
		return
	}

	locked, unlockAt, err := h.limiter.Locked(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check attempts"})
		return
	}
	if locked {
		telemetry.ConfirmAttempts.WithLabelValues("locked_out").Inc()
		c.JSON(http.StatusTooManyRequests, lockoutBody(unlockAt))
		return
	}

	if payment.CodeExpiresAt != nil && payment.CodeExpiresAt.Before(time.Now()) {
		telemetry.ConfirmAttempts.WithLabelValues("expired").Inc()
		c.JSON(http.StatusGone, gin.H{"error": "Confirmation code expired"})
		return
	}

	// One confirmation at a time per payment, so racing submissions cannot
	// skew the attempt counter.
	release, ok, err := h.locker.TryLock(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acquire confirmation lock"})
		return
	}
	if !ok {
		c.JSON(http.StatusLocked, gin.H{"error": "A confirmation for this payment is already in progress"})
		return
	}
	defer release()

	if code != payment.Code {
		outcome, err := h.limiter.RecordFailure(ctx, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attempt"})
			return
		}
		if outcome.LockedOut {
			telemetry.Lockouts.Inc()
			telemetry.ConfirmAttempts.WithLabelValues("locked_out").Inc()
			telemetry.Logger.Warn("Payment confirmation locked out",
				zap.String("payment_id", id),
				zap.Time("unlock_at", outcome.UnlockAt),
			)
			c.JSON(http.StatusTooManyRequests, lockoutBody(outcome.UnlockAt))
			return
		}
		telemetry.ConfirmAttempts.WithLabelValues("invalid_code").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "Invalid confirmation code",
			"remainingAttempts": outcome.Remaining,
		})
		return
	}

	paidAt := time.Now()
	transitioned, err := h.repo.MarkPaid(ctx, id, paidAt)
	if err != nil {
		telemetry.Logger.Error("Failed to mark payment paid",
			zap.String("payment_id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm payment"})
		return
	}
	if !transitioned {
		telemetry.ConfirmAttempts.WithLabelValues("already_processed").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "Payment was already processed"})
		return
	}

	payment.Status = models.StatusPaid
	payment.PaidAt = &paidAt

	if err := h.limiter.Reset(ctx, id); err != nil {
		telemetry.Logger.Error("Failed to reset attempts",
			zap.String("payment_id", id),
			zap.Error(err),
		)
	}

	if err := h.publisher.PaymentPaid(ctx, payment); err != nil {
		telemetry.Logger.Error("Failed to publish payment.paid event",
			zap.String("payment_id", id),
			zap.Error(err),
		)
	}
	if err := h.publisher.PaymentUpdated(ctx, payment, "paid"); err != nil {
		telemetry.Logger.Error("Failed to publish payment notification",
			zap.String("payment_id", id),
			zap.Error(err),
		)
	}

	telemetry.PaymentsPaid.Inc()
	telemetry.ConfirmAttempts.WithLabelValues("confirmed").Inc()
	telemetry.Logger.Info("Payment confirmed",
		zap.String("payment_id", id),
		zap.String("job_id", payment.JobID),
	)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":     payment.ID,
		"total":  payment.Amount.Total,
		"status": payment.Status,
		"paidAt": paidAt,
	}})
}

func (h *PaymentHandler) RegenerateCode(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	payment, err := h.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return
	}
	if payment.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Payment was already processed"})
		return
	}

	code, err := paycode.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate code"})
		return
	}

	expiresAt := time.Now().Add(h.codeTTL)
	replaced, err := h.repo.ReplaceCode(ctx, id, code, expiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate code"})
		return
	}
	if !replaced {
		c.JSON(http.StatusConflict, gin.H{"error": "Payment was already processed"})
		return
	}

	// A fresh code starts a fresh attempt budget.
	if err := h.limiter.Reset(ctx, id); err != nil {
		telemetry.Logger.Error("Failed to reset attempts",
			zap.String("payment_id", id),
			zap.Error(err),
		)
	}

	payment.Code = code
	payment.CodeExpiresAt = &expiresAt

	if err := h.publisher.PaymentUpdated(ctx, payment, "code_regenerated"); err != nil {
		telemetry.Logger.Error("Failed to publish payment notification",
			zap.String("payment_id", id),
			zap.Error(err),
		)
	}

	telemetry.CodesRegenerated.Inc()
	telemetry.Logger.Info("Confirmation code regenerated",
		zap.String("payment_id", id),
		zap.Time("code_expires_at", expiresAt),
	)

	c.JSON(http.StatusOK, payment.Summary(time.Now()))
}

func lockoutBody(unlockAt time.Time) gin.H {
	wait := int(math.Ceil(time.Until(unlockAt).Minutes()))
	if wait < 1 {
		wait = 1
	}
	return gin.H{
		"error":       "Too many invalid attempts, retry later",
		"unlocksAt":   unlockAt.UTC().Format(time.RFC3339),
		"waitMinutes": wait,
	}
}
