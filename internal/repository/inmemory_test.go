package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/servineo/payment-system/internal/models"
	"github.com/servineo/payment-system/internal/repository"
)

func pendingPayment(id string) *models.Payment {
	expires := time.Now().Add(5 * time.Minute)
	return &models.Payment{
		ID:            id,
		JobID:         "job-1",
		RequesterID:   "req-1",
		FixerID:       "fix-1",
		Status:        models.StatusPending,
		Code:          "AB12C3",
		Amount:        models.Amount{Total: 150, Currency: "BOB"},
		CodeExpiresAt: &expires,
	}
}

func TestInMemoryRepository_MissingRowsReportSQLErrNoRows(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryPaymentRepository()

	_, err := repo.GetByID(ctx, "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)

	_, err = repo.GetByIdempotencyKey(ctx, "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInMemoryRepository_MarkPaidGuardsTheTransition(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryPaymentRepository()
	require.NoError(t, repo.Create(ctx, pendingPayment("pay-1")))

	ok, err := repo.MarkPaid(ctx, "pay-1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	// Terminal payments stay terminal.
	ok, err = repo.MarkPaid(ctx, "pay-1", time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.GetByID(ctx, "pay-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
}

func TestInMemoryRepository_ReplaceCodeOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryPaymentRepository()
	require.NoError(t, repo.Create(ctx, pendingPayment("pay-1")))

	newExpiry := time.Now().Add(5 * time.Minute)
	ok, err := repo.ReplaceCode(ctx, "pay-1", "ZZ99X1", newExpiry)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByID(ctx, "pay-1")
	require.NoError(t, err)
	require.Equal(t, "ZZ99X1", got.Code)

	_, err = repo.MarkPaid(ctx, "pay-1", time.Now())
	require.NoError(t, err)

	ok, err = repo.ReplaceCode(ctx, "pay-1", "QQ11W2", newExpiry)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInMemoryRepository_IdempotencyKeyLookup(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryPaymentRepository()

	p := pendingPayment("pay-1")
	p.IdempotencyKey = "key-1"
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, "pay-1", got.ID)
}
