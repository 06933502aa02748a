package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker takes a short-lived SetNX lock per payment. The TTL bounds the
// damage of a crashed holder.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, ttl: 30 * time.Second}
}

func (l *RedisLocker) TryLock(ctx context.Context, paymentID string) (func(), bool, error) {
	key := fmt.Sprintf("payment_confirm_lock:%s", paymentID)

	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() { l.client.Del(context.Background(), key) }, true, nil
}

// InMemoryLocker is the single-process equivalent for demo mode and tests.
type InMemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]bool)}
}

func (l *InMemoryLocker) TryLock(_ context.Context, paymentID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[paymentID] {
		return nil, false, nil
	}
	l.held[paymentID] = true
	release := func() {
		l.mu.Lock()
		delete(l.held, paymentID)
		l.mu.Unlock()
	}
	return release, true, nil
}
