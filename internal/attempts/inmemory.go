package attempts

import (
	"context"
	"sync"
	"time"

	"github.com/servineo/payment-system/internal/interfaces"
)

// InMemoryLimiter mirrors RedisLimiter for demo mode and tests. The clock is
// injectable so lockout expiry can be tested without sleeping.
type InMemoryLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	lockedUntil map[string]time.Time
	maxAttempts int
	lockoutWait time.Duration
	now         func() time.Time
}

func NewInMemoryLimiter(maxAttempts int, lockoutWait time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		counts:      make(map[string]int),
		lockedUntil: make(map[string]time.Time),
		maxAttempts: maxAttempts,
		lockoutWait: lockoutWait,
		now:         time.Now,
	}
}

// WithClock replaces the limiter's clock. Test helper.
func (l *InMemoryLimiter) WithClock(now func() time.Time) *InMemoryLimiter {
	l.now = now
	return l
}

func (l *InMemoryLimiter) RecordFailure(_ context.Context, paymentID string) (interfaces.AttemptOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[paymentID]++
	if l.counts[paymentID] >= l.maxAttempts {
		unlockAt := l.now().Add(l.lockoutWait)
		l.lockedUntil[paymentID] = unlockAt
		delete(l.counts, paymentID)
		return interfaces.AttemptOutcome{LockedOut: true, UnlockAt: unlockAt}, nil
	}

	return interfaces.AttemptOutcome{Remaining: l.maxAttempts - l.counts[paymentID]}, nil
}

func (l *InMemoryLimiter) Locked(_ context.Context, paymentID string) (bool, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.lockedUntil[paymentID]
	if !ok || !l.now().Before(until) {
		delete(l.lockedUntil, paymentID)
		return false, time.Time{}, nil
	}
	return true, until, nil
}

func (l *InMemoryLimiter) Reset(_ context.Context, paymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counts, paymentID)
	delete(l.lockedUntil, paymentID)
	return nil
}
