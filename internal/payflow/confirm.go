package payflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/servineo/payment-system/internal/paycode"
)

// State is the confirmation controller's position in its machine.
type State string

const (
	StateIdle             State = "idle"
	StateSubmitting       State = "submitting"
	StateConfirmed        State = "confirmed"
	StateInvalidRetryable State = "invalid_retryable"
	StateLockedOut        State = "locked_out"
	StateExpired          State = "expired"
	StateAlreadyProcessed State = "already_processed"
	StateNotFound         State = "not_found"
	StateGenericError     State = "generic_error"
)

// Snapshot is the controller's presentable state. RemainingAttempts and
// UnlockAt are mutually exclusive: once locked, the attempt budget is no
// longer shown.
type Snapshot struct {
	State             State
	Message           string
	RemainingAttempts int // -1 unless State is StateInvalidRetryable
	UnlockAt          *time.Time
	InputEnabled      bool
	Result            *ConfirmResult
}

// Controller manages the fixer-entered code through submission and outcome.
// It owns the lockout countdown and guarantees the unlocked notice fires
// exactly once per lockout episode.
type Controller struct {
	client    *Client
	paymentID string
	logger    *zap.Logger

	now          func() time.Time
	tickInterval time.Duration
	onUnlocked   func()
	onLockTick   func(Remaining)

	mu             sync.Mutex
	state          State
	message        string
	remaining      int
	unlockAt       time.Time
	unlockNotified bool
	countdown      *Countdown
	result         *ConfirmResult
}

type ControllerOption func(*Controller)

// OnUnlocked registers the one-time notice shown when a lockout ends.
func OnUnlocked(fn func()) ControllerOption {
	return func(ctl *Controller) { ctl.onUnlocked = fn }
}

// OnLockoutTick receives the lockout countdown samples for display.
func OnLockoutTick(fn func(Remaining)) ControllerOption {
	return func(ctl *Controller) { ctl.onLockTick = fn }
}

// WithControllerClock overrides the clock. Test helper.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(ctl *Controller) { ctl.now = now }
}

// WithTickInterval overrides the lockout countdown interval. Test helper.
func WithTickInterval(d time.Duration) ControllerOption {
	return func(ctl *Controller) { ctl.tickInterval = d }
}

// WithControllerLogger attaches a structured logger.
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(ctl *Controller) { ctl.logger = logger }
}

func NewController(client *Client, paymentID string, opts ...ControllerOption) *Controller {
	ctl := &Controller{
		client:       client,
		paymentID:    paymentID,
		logger:       zap.NewNop(),
		now:          time.Now,
		tickInterval: time.Second,
		state:        StateIdle,
		remaining:    -1,
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Snapshot returns the current presentable state.
func (ctl *Controller) Snapshot() Snapshot {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.snapshotLocked()
}

func (ctl *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:             ctl.state,
		Message:           ctl.message,
		RemainingAttempts: -1,
		InputEnabled:      ctl.inputEnabledLocked(),
		Result:            ctl.result,
	}
	switch ctl.state {
	case StateInvalidRetryable:
		s.RemainingAttempts = ctl.remaining
	case StateLockedOut:
		t := ctl.unlockAt
		s.UnlockAt = &t
	}
	return s
}

func (ctl *Controller) inputEnabledLocked() bool {
	switch ctl.state {
	case StateIdle, StateInvalidRetryable, StateGenericError:
		return true
	default:
		return false
	}
}

// Edit signals that the fixer changed the input, returning a retryable state
// to Idle. Disabled states ignore it.
func (ctl *Controller) Edit() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	if ctl.state == StateInvalidRetryable || ctl.state == StateGenericError {
		ctl.state = StateIdle
		ctl.message = ""
		ctl.remaining = -1
	}
}

// Submit validates and submits the entered code. Validation failures never
// reach the network; while a submission is in flight further submits are
// rejected. The returned snapshot reflects the resulting state.
func (ctl *Controller) Submit(ctx context.Context, input string) (Snapshot, error) {
	ctl.mu.Lock()
	if ctl.state == StateSubmitting {
		snap := ctl.snapshotLocked()
		ctl.mu.Unlock()
		return snap, ErrSubmitInFlight
	}
	if !ctl.inputEnabledLocked() {
		snap := ctl.snapshotLocked()
		ctl.mu.Unlock()
		return snap, ErrInputDisabled
	}

	code := paycode.Normalize(input)
	if err := paycode.Validate(code); err != nil {
		ctl.message = validationMessage(err)
		snap := ctl.snapshotLocked()
		ctl.mu.Unlock()
		return snap, err
	}

	ctl.state = StateSubmitting
	ctl.message = ""
	ctl.remaining = -1
	ctl.mu.Unlock()

	result, err := ctl.client.Confirm(ctx, ctl.paymentID, code)

	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	if err == nil {
		ctl.state = StateConfirmed
		ctl.result = &result
		ctl.message = "Pago confirmado"
		ctl.logger.Info("Payment confirmed",
			zap.String("payment_id", ctl.paymentID))
		return ctl.snapshotLocked(), nil
	}

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && errors.Is(err, ErrInvalidCode):
		ctl.state = StateInvalidRetryable
		ctl.remaining = apiErr.RemainingAttempts
		ctl.message = fmt.Sprintf("Código incorrecto. Te quedan %d intentos", apiErr.RemainingAttempts)
	case errors.As(err, &apiErr) && errors.Is(err, ErrLockedOut):
		ctl.beginLockoutLocked(apiErr)
	case errors.Is(err, ErrCodeExpired):
		ctl.state = StateExpired
		ctl.message = "Código Expirado"
	case errors.Is(err, ErrAlreadyProcessed):
		ctl.state = StateAlreadyProcessed
		ctl.message = "Este pago ya fue procesado"
	case errors.Is(err, ErrPaymentNotFound):
		ctl.state = StateNotFound
		ctl.message = "Pago no encontrado"
	default:
		ctl.state = StateGenericError
		ctl.message = "No se pudo confirmar el pago. Intenta de nuevo"
	}

	ctl.logger.Warn("Payment confirmation failed",
		zap.String("payment_id", ctl.paymentID),
		zap.String("state", string(ctl.state)),
		zap.Error(err),
	)

	return ctl.snapshotLocked(), err
}

func (ctl *Controller) beginLockoutLocked(apiErr *APIError) {
	unlockAt := apiErr.UnlockAt
	if unlockAt.IsZero() {
		unlockAt = ctl.now().Add(10 * time.Minute)
	}

	ctl.state = StateLockedOut
	ctl.unlockAt = unlockAt
	ctl.unlockNotified = false
	ctl.remaining = -1

	wait := int(math.Ceil(unlockAt.Sub(ctl.now()).Minutes()))
	ctl.message = fmt.Sprintf("Demasiados intentos. Podrás reintentar en %d minutos", wait)

	if ctl.countdown != nil {
		ctl.countdown.Stop()
	}
	ctl.countdown = NewCountdown(unlockAt, ctl.handleLockoutTick).
		WithInterval(ctl.tickInterval).
		WithClock(ctl.now)
	ctl.countdown.Start()
}

func (ctl *Controller) handleLockoutTick(rem Remaining) {
	if ctl.onLockTick != nil {
		ctl.onLockTick(rem)
	}
	if !rem.Expired() {
		return
	}

	ctl.mu.Lock()
	if ctl.unlockNotified || ctl.state != StateLockedOut {
		ctl.mu.Unlock()
		return
	}
	ctl.unlockNotified = true
	ctl.state = StateIdle
	ctl.unlockAt = time.Time{}
	ctl.message = "Ya puedes volver a intentar"
	notify := ctl.onUnlocked
	ctl.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Close releases the lockout countdown. Call on teardown.
func (ctl *Controller) Close() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.countdown != nil {
		ctl.countdown.Stop()
		ctl.countdown = nil
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, paycode.ErrEmptyCode):
		return "Ingresa el código de confirmación"
	case errors.Is(err, paycode.ErrBadLength):
		return "El código debe tener 6 caracteres"
	default:
		return "El código solo puede contener letras y números"
	}
}
