package payflow_test

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/servineo/payment-system/internal/api"
	"github.com/servineo/payment-system/internal/attempts"
	"github.com/servineo/payment-system/internal/handlers"
	"github.com/servineo/payment-system/internal/locks"
	"github.com/servineo/payment-system/internal/models"
	"github.com/servineo/payment-system/internal/payflow"
	"github.com/servineo/payment-system/internal/repository"
	"github.com/servineo/payment-system/internal/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Logger = zap.NewNop()
	os.Exit(m.Run())
}

type noopPublisher struct{}

func (noopPublisher) PaymentPaid(context.Context, *models.Payment) error { return nil }

func (noopPublisher) PaymentUpdated(context.Context, *models.Payment, string) error { return nil }

// startService runs the real payment service in-process so the flow is
// exercised end to end over HTTP.
func startService(t *testing.T) (*httptest.Server, *repository.InMemoryPaymentRepository) {
	t.Helper()

	repo := repository.NewInMemoryPaymentRepository()
	limiter := attempts.NewInMemoryLimiter(3, 10*time.Minute)
	handler := handlers.NewPaymentHandler(repo, limiter, locks.NewInMemoryLocker(), noopPublisher{}, nil, 5*time.Minute)

	srv := httptest.NewServer(api.NewRouter(handler, repo, nil))
	t.Cleanup(srv.Close)
	return srv, repo
}

func seedPayment(t *testing.T, repo *repository.InMemoryPaymentRepository, id, code string, expiresAt time.Time) {
	t.Helper()

	expiry := expiresAt
	require.NoError(t, repo.Create(context.Background(), &models.Payment{
		ID:            id,
		JobID:         "job-1",
		RequesterID:   "req-1",
		FixerID:       "fix-1",
		Status:        models.StatusPending,
		Code:          code,
		Amount:        models.Amount{Total: 150, Currency: "BOB"},
		CodeExpiresAt: &expiry,
	}))
}

func TestFlow_PayerSeesCodeAndCanContinue(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(5*time.Minute))

	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))
	require.Equal(t, payflow.ViewPayer, flow.View())

	summary := flow.Summary()
	require.Equal(t, "AB12C3", summary.Code)
	require.False(t, summary.CodeExpired)
	require.NotNil(t, summary.CodeExpiresAt)

	require.NoError(t, flow.Continue())
	require.Equal(t, payflow.ViewFixer, flow.View())
}

func TestFlow_FullConfirmationReachesSuccessAndCompletion(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(5*time.Minute))

	var completed []models.PaymentSummary
	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil,
		payflow.OnComplete(func(s models.PaymentSummary) { completed = append(completed, s) }),
	)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))
	require.NoError(t, flow.Continue())

	snap, err := flow.SubmitCode(context.Background(), "ab12c3")
	require.NoError(t, err)
	require.Equal(t, payflow.StateConfirmed, snap.State)
	require.Equal(t, payflow.ViewSuccess, flow.View())

	// The post-confirm refetch is authoritative: paid, code hidden.
	summary := flow.Summary()
	require.Equal(t, models.StatusPaid, summary.Status)
	require.Empty(t, summary.Code)

	require.NoError(t, flow.Acknowledge())
	require.Len(t, completed, 1)
	require.Equal(t, models.StatusPaid, completed[0].Status)
}

func TestFlow_ExpiredCodeBlocksContinueUntilRegenerated(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(-time.Minute))

	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))
	require.True(t, flow.Summary().CodeExpired)
	require.ErrorIs(t, flow.Continue(), payflow.ErrCodeExpired)

	require.NoError(t, flow.Regenerate(context.Background()))
	summary := flow.Summary()
	require.False(t, summary.CodeExpired)
	require.NotEqual(t, "AB12C3", summary.Code)
	require.Len(t, summary.Code, 6)

	require.NoError(t, flow.Continue())
	require.Equal(t, payflow.ViewFixer, flow.View())
}

func TestFlow_BackRefreshesTheSummaryForThePayer(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(5*time.Minute))

	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))
	require.NoError(t, flow.Continue())

	// A failed attempt on the fixer side, then back to the payer.
	_, err := flow.SubmitCode(context.Background(), "ZZZZZZ")
	require.ErrorIs(t, err, payflow.ErrInvalidCode)
	require.Equal(t, payflow.ViewFixer, flow.View())

	require.NoError(t, flow.Back(context.Background()))
	require.Equal(t, payflow.ViewPayer, flow.View())
	require.Equal(t, models.StatusPending, flow.Summary().Status)
}

func TestFlow_ActionsAreBoundToTheirViews(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(5*time.Minute))

	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))

	// Fixer-side actions are unavailable on the payer view, and vice versa.
	_, err := flow.SubmitCode(context.Background(), "AB12C3")
	require.ErrorIs(t, err, payflow.ErrWrongView)
	require.ErrorIs(t, flow.Back(context.Background()), payflow.ErrWrongView)
	require.ErrorIs(t, flow.Acknowledge(), payflow.ErrWrongView)

	require.NoError(t, flow.Continue())
	require.ErrorIs(t, flow.Regenerate(context.Background()), payflow.ErrWrongView)
	require.ErrorIs(t, flow.Continue(), payflow.ErrWrongView)
}

func TestFlow_TerminalPaymentCannotContinue(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(5*time.Minute))
	_, err := repo.MarkPaid(context.Background(), "pay-1", time.Now())
	require.NoError(t, err)

	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))
	require.ErrorIs(t, flow.Continue(), payflow.ErrAlreadyProcessed)
}

func TestFlow_ExpiryCountdownTicksForThePayerView(t *testing.T) {
	srv, repo := startService(t)
	seedPayment(t, repo, "pay-1", "AB12C3", time.Now().Add(time.Hour))

	flow := payflow.NewFlow(payflow.NewClient(srv.URL), "pay-1", nil)
	defer flow.Close()

	require.NoError(t, flow.Load(context.Background()))

	ticks := make(chan payflow.Remaining, 1)
	flow.StartExpiryCountdown(func(r payflow.Remaining) {
		select {
		case ticks <- r:
		default:
		}
	})

	select {
	case r := <-ticks:
		require.False(t, r.Expired())
		require.Greater(t, r.Total, 59*time.Minute)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry countdown never ticked")
	}
}
