package attempts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/servineo/payment-system/internal/attempts"
)

func TestInMemoryLimiter_ShouldCountDownTheBudgetThenLock(t *testing.T) {
	ctx := context.Background()
	limiter := attempts.NewInMemoryLimiter(3, 10*time.Minute)

	out, err := limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)
	require.False(t, out.LockedOut)
	require.Equal(t, 2, out.Remaining)

	out, err = limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)
	require.Equal(t, 1, out.Remaining)

	out, err = limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, out.LockedOut)
	require.False(t, out.UnlockAt.IsZero())

	locked, until, err := limiter.Locked(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, out.UnlockAt, until)
}

func TestInMemoryLimiter_LockoutShouldExpireWithTheClock(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	limiter := attempts.NewInMemoryLimiter(1, 10*time.Minute).
		WithClock(func() time.Time { return now })

	out, err := limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, out.LockedOut)

	locked, _, err := limiter.Locked(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, locked)

	now = now.Add(10*time.Minute + time.Second)

	locked, _, err = limiter.Locked(ctx, "pay-1")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestInMemoryLimiter_ResetShouldClearAttemptsAndLockout(t *testing.T) {
	ctx := context.Background()
	limiter := attempts.NewInMemoryLimiter(2, time.Minute)

	_, err := limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)
	_, err = limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)

	require.NoError(t, limiter.Reset(ctx, "pay-1"))

	locked, _, err := limiter.Locked(ctx, "pay-1")
	require.NoError(t, err)
	require.False(t, locked)

	out, err := limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)
	require.Equal(t, 1, out.Remaining)
}

func TestInMemoryLimiter_ShouldTrackPaymentsIndependently(t *testing.T) {
	ctx := context.Background()
	limiter := attempts.NewInMemoryLimiter(2, time.Minute)

	_, err := limiter.RecordFailure(ctx, "pay-1")
	require.NoError(t, err)

	out, err := limiter.RecordFailure(ctx, "pay-2")
	require.NoError(t, err)
	require.Equal(t, 1, out.Remaining)
}
