package interfaces

import (
	"context"
	"time"

	"github.com/servineo/payment-system/internal/models"
)

// PaymentRepository defines the contract for payment data access
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
	// MarkPaid transitions pending -> paid. It returns false when the payment
	// was not pending, without modifying the row.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
	// ReplaceCode installs a fresh code and expiry on a pending payment.
	// It returns false when the payment was not pending.
	ReplaceCode(ctx context.Context, id, code string, expiresAt time.Time) (bool, error)
}

// AttemptOutcome is the limiter's verdict on one failed confirmation attempt.
type AttemptOutcome struct {
	Remaining int
	LockedOut bool
	UnlockAt  time.Time
}

// AttemptLimiter tracks failed confirmation attempts per payment and applies
// a timed lockout once the budget is exhausted.
type AttemptLimiter interface {
	// RecordFailure counts one failed attempt and reports what is left of the
	// budget. The attempt that exhausts the budget starts the lockout.
	RecordFailure(ctx context.Context, paymentID string) (AttemptOutcome, error)
	// Locked reports an active lockout and its expiry.
	Locked(ctx context.Context, paymentID string) (bool, time.Time, error)
	// Reset clears attempts and any lockout, used after success or code
	// regeneration.
	Reset(ctx context.Context, paymentID string) error
}

// PaymentLocker serializes confirmation attempts per payment so concurrent
// submissions cannot race the attempt counter.
type PaymentLocker interface {
	// TryLock acquires the per-payment lock. When ok, release must be called.
	TryLock(ctx context.Context, paymentID string) (release func(), ok bool, err error)
}

// EventPublisher emits payment lifecycle events to the outside world.
type EventPublisher interface {
	PaymentPaid(ctx context.Context, payment *models.Payment) error
	PaymentUpdated(ctx context.Context, payment *models.Payment, kind string) error
}
