package payflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Confirmation outcomes
	ErrInvalidCode      = errors.New("invalid confirmation code")
	ErrLockedOut        = errors.New("too many invalid attempts")
	ErrCodeExpired      = errors.New("confirmation code expired")
	ErrAlreadyProcessed = errors.New("payment already processed")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrBadRequest       = errors.New("confirmation rejected")

	// Local guards
	ErrSubmitInFlight = errors.New("a confirmation is already in flight")
	ErrInputDisabled  = errors.New("confirmation input is disabled")
)

// APIError carries the structured detail the service attaches to a failed
// call: the human-readable message plus, depending on the status code, the
// remaining attempt budget or the lockout expiry.
type APIError struct {
	Err               error
	StatusCode        int
	Message           string
	RemainingAttempts int // -1 when the response carried none
	UnlockAt          time.Time
	WaitMinutes       int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Message)
	}
	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}
