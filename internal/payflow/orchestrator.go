package payflow

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/servineo/payment-system/internal/models"
)

// View identifies which side of the flow is on screen.
type View string

const (
	ViewPayer   View = "payer"
	ViewFixer   View = "fixer"
	ViewSuccess View = "success"
)

var ErrWrongView = errors.New("action not available in the current view")

// Flow sequences the cash payment between the requester's code view, the
// fixer's code entry, and the success acknowledgment. The two sides share no
// state; the summary is refetched after every action that could change it.
type Flow struct {
	client     *Client
	paymentID  string
	logger     *zap.Logger
	onComplete func(models.PaymentSummary)

	mu         sync.Mutex
	view       View
	summary    models.PaymentSummary
	controller *Controller
	expiryCd   *Countdown
}

type FlowOption func(*Flow)

// OnComplete registers the callback fired when the success view is
// acknowledged, typically to mark the originating job as paid.
func OnComplete(fn func(models.PaymentSummary)) FlowOption {
	return func(f *Flow) { f.onComplete = fn }
}

// WithFlowLogger attaches a structured logger.
func WithFlowLogger(logger *zap.Logger) FlowOption {
	return func(f *Flow) { f.logger = logger }
}

func NewFlow(client *Client, paymentID string, ctlOpts []ControllerOption, opts ...FlowOption) *Flow {
	f := &Flow{
		client:    client,
		paymentID: paymentID,
		logger:    zap.NewNop(),
		view:      ViewPayer,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.controller = NewController(client, paymentID, ctlOpts...)
	return f
}

// Load hydrates the payer view with the current summary.
func (f *Flow) Load(ctx context.Context) error {
	summary, err := f.client.Summary(ctx, f.paymentID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.summary = summary
	f.mu.Unlock()
	return nil
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *Flow) Summary() models.PaymentSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

func (f *Flow) Controller() *Controller {
	return f.controller
}

// StartExpiryCountdown drives the payer view's code expiry display. It
// replaces any previous countdown; the flow stops it on Close.
func (f *Flow) StartExpiryCountdown(onTick func(Remaining)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expiryCd != nil {
		f.expiryCd.Stop()
		f.expiryCd = nil
	}
	if f.summary.CodeExpiresAt == nil {
		return
	}
	f.expiryCd = NewCountdown(*f.summary.CodeExpiresAt, onTick).WithClock(f.client.now)
	f.expiryCd.Start()
}

// Continue moves from the payer view to the fixer view. An expired code has
// to be regenerated first; a terminal payment cannot continue at all.
func (f *Flow) Continue() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.view != ViewPayer {
		return ErrWrongView
	}
	if f.summary.Status.IsTerminal() {
		return ErrAlreadyProcessed
	}
	if f.summary.CodeExpired {
		return ErrCodeExpired
	}

	f.view = ViewFixer
	return nil
}

// Back returns from the fixer view to the payer view and refreshes the
// summary so the payer sees the outcome of any attempted confirmation. A
// failed refresh keeps the previously loaded summary.
func (f *Flow) Back(ctx context.Context) error {
	f.mu.Lock()
	if f.view != ViewFixer {
		f.mu.Unlock()
		return ErrWrongView
	}
	f.view = ViewPayer
	f.mu.Unlock()

	summary, err := f.client.Summary(ctx, f.paymentID)
	if err != nil {
		f.logger.Warn("Summary refresh failed, keeping previous data",
			zap.String("payment_id", f.paymentID),
			zap.Error(err),
		)
		return err
	}

	f.mu.Lock()
	f.summary = summary
	f.mu.Unlock()
	return nil
}

// Regenerate asks the service for a fresh code and resets the expiry display.
func (f *Flow) Regenerate(ctx context.Context) error {
	f.mu.Lock()
	if f.view != ViewPayer {
		f.mu.Unlock()
		return ErrWrongView
	}
	f.mu.Unlock()

	summary, err := f.client.Regenerate(ctx, f.paymentID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.summary = summary
	f.mu.Unlock()

	f.logger.Info("Confirmation code regenerated",
		zap.String("payment_id", f.paymentID))
	return nil
}

// SubmitCode forwards the fixer's code to the controller. On confirmation the
// summary is optimistically marked paid, then superseded by an authoritative
// refetch, and the success view is shown.
func (f *Flow) SubmitCode(ctx context.Context, code string) (Snapshot, error) {
	f.mu.Lock()
	if f.view != ViewFixer {
		f.mu.Unlock()
		return f.controller.Snapshot(), ErrWrongView
	}
	f.mu.Unlock()

	snap, err := f.controller.Submit(ctx, code)
	if snap.State != StateConfirmed {
		return snap, err
	}

	f.mu.Lock()
	f.summary.Status = models.StatusPaid
	f.view = ViewSuccess
	f.mu.Unlock()

	// The optimistic status is provisional only; the backend's answer wins.
	if summary, err := f.client.Summary(ctx, f.paymentID); err == nil {
		f.mu.Lock()
		f.summary = summary
		f.mu.Unlock()
	}

	return snap, nil
}

// Acknowledge closes the success view and signals completion to the caller.
func (f *Flow) Acknowledge() error {
	f.mu.Lock()
	if f.view != ViewSuccess {
		f.mu.Unlock()
		return ErrWrongView
	}
	summary := f.summary
	onComplete := f.onComplete
	f.mu.Unlock()

	if onComplete != nil {
		onComplete(summary)
	}
	return nil
}

// Close releases the flow's timers. Call on teardown.
func (f *Flow) Close() {
	f.mu.Lock()
	if f.expiryCd != nil {
		f.expiryCd.Stop()
		f.expiryCd = nil
	}
	f.mu.Unlock()

	f.controller.Close()
}
