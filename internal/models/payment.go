package models

import "time"

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed
}

type Amount struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type Payment struct {
	ID             string        `json:"id"`
	JobID          string        `json:"job_id"`
	RequesterID    string        `json:"requester_id"`
	FixerID        string        `json:"fixer_id"`
	Status         PaymentStatus `json:"status"`
	Code           string        `json:"code,omitempty"`
	Amount         Amount        `json:"amount"`
	CodeExpiresAt  *time.Time    `json:"code_expires_at,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type CreatePaymentRequest struct {
	JobID       string  `json:"job_id" binding:"required"`
	RequesterID string  `json:"requester_id" binding:"required"`
	FixerID     string  `json:"fixer_id" binding:"required"`
	Total       float64 `json:"total" binding:"required"`
	Currency    string  `json:"currency"`
}

type ConfirmPaymentRequest struct {
	Code string `json:"code"`
}

// PaymentSummary is the read projection served to both sides of the
// cash flow. Code is omitted once the payment reaches a terminal status.
type PaymentSummary struct {
	ID            string        `json:"id"`
	Status        PaymentStatus `json:"status"`
	Code          string        `json:"code,omitempty"`
	Amount        Amount        `json:"amount"`
	CodeExpiresAt *time.Time    `json:"codeExpiresAt,omitempty"`
	CodeExpired   bool          `json:"codeExpired"`
}

// Summary derives the read projection at the given instant. Expiry is the
// OR of any backend-declared expiry and wall-clock comparison; callers pass
// time.Now() outside tests.
func (p *Payment) Summary(now time.Time) PaymentSummary {
	s := PaymentSummary{
		ID:            p.ID,
		Status:        p.Status,
		Amount:        p.Amount,
		CodeExpiresAt: p.CodeExpiresAt,
	}
	if p.CodeExpiresAt != nil && p.CodeExpiresAt.Before(now) {
		s.CodeExpired = true
	}
	if !p.Status.IsTerminal() {
		s.Code = p.Code
	}
	return s
}
