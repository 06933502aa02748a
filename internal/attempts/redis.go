// Package attempts enforces the confirmation attempt budget and the timed
// lockout that follows exhausting it.
package attempts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/servineo/payment-system/internal/interfaces"
)

type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	lockoutWait time.Duration
}

func NewRedisLimiter(client *redis.Client, maxAttempts int, lockoutWait time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		lockoutWait: lockoutWait,
	}
}

func attemptsKey(paymentID string) string { return fmt.Sprintf("payment_attempts:%s", paymentID) }
func lockoutKey(paymentID string) string  { return fmt.Sprintf("payment_lockout:%s", paymentID) }

func (l *RedisLimiter) RecordFailure(ctx context.Context, paymentID string) (interfaces.AttemptOutcome, error) {
	key := attemptsKey(paymentID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return interfaces.AttemptOutcome{}, err
	}
	if count == 1 {
		// Attempts age out on their own if the fixer walks away.
		l.client.Expire(ctx, key, l.lockoutWait)
	}

	if int(count) >= l.maxAttempts {
		unlockAt := time.Now().Add(l.lockoutWait)
		if err := l.client.Set(ctx, lockoutKey(paymentID), "1", l.lockoutWait).Err(); err != nil {
			return interfaces.AttemptOutcome{}, err
		}
		l.client.Del(ctx, key)
		return interfaces.AttemptOutcome{LockedOut: true, UnlockAt: unlockAt}, nil
	}

	return interfaces.AttemptOutcome{Remaining: l.maxAttempts - int(count)}, nil
}

func (l *RedisLimiter) Locked(ctx context.Context, paymentID string) (bool, time.Time, error) {
	ttl, err := l.client.PTTL(ctx, lockoutKey(paymentID)).Result()
	if err != nil {
		return false, time.Time{}, err
	}
	if ttl <= 0 {
		return false, time.Time{}, nil
	}
	return true, time.Now().Add(ttl), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, paymentID string) error {
	return l.client.Del(ctx, attemptsKey(paymentID), lockoutKey(paymentID)).Err()
}
