package payflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/servineo/payment-system/internal/models"
)

// Client talks to the payment service on behalf of either side of the cash
// flow. Calls carry the caller's context and share one http.Client with a
// fixed timeout; the payment record itself stays owned by the service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time
	demoFallback bool
}

type ClientOption func(*Client)

// WithLogger attaches a structured logger. The default is a nop logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the clock used for expiry detection. Test helper.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithDemoFallback makes Summary substitute a local simulated summary when
// the payment id is not a valid identifier, instead of failing. Supports
// offline walkthroughs of the flow.
func WithDemoFallback() ClientOption {
	return func(c *Client) { c.demoFallback = true }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rawSummary tolerates the response shapes the service and its predecessors
// have used: amount may be nested or flattened, expiry fields may be absent.
type rawSummary struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Code   string `json:"code"`
	Amount *struct {
		Total    *float64 `json:"total"`
		Currency string   `json:"currency"`
	} `json:"amount"`
	Total         *float64   `json:"total"`
	CodeExpiresAt *time.Time `json:"codeExpiresAt"`
	CodeExpired   *bool      `json:"codeExpired"`
}

func (c *Client) normalize(raw rawSummary) models.PaymentSummary {
	s := models.PaymentSummary{
		ID:            raw.ID,
		Status:        models.PaymentStatus(raw.Status),
		Code:          raw.Code,
		CodeExpiresAt: raw.CodeExpiresAt,
	}

	switch {
	case raw.Amount != nil && raw.Amount.Total != nil:
		s.Amount.Total = *raw.Amount.Total
	case raw.Total != nil:
		s.Amount.Total = *raw.Total
	}
	if raw.Amount != nil && raw.Amount.Currency != "" {
		s.Amount.Currency = raw.Amount.Currency
	} else {
		s.Amount.Currency = "BOB"
	}

	// Backend-declared expiry wins where present; wall clock covers the rest.
	// A fresh fetch reporting codeExpired:false with a future expiry therefore
	// clears any stale local expired state.
	if raw.CodeExpired != nil && *raw.CodeExpired {
		s.CodeExpired = true
	} else if raw.CodeExpiresAt != nil && raw.CodeExpiresAt.Before(c.now()) {
		s.CodeExpired = true
	}

	return s
}

// Summary fetches and normalizes the payment's current projection.
func (c *Client) Summary(ctx context.Context, paymentID string) (models.PaymentSummary, error) {
	if c.demoFallback && uuid.Validate(paymentID) != nil {
		c.logger.Debug("Substituting simulated summary for malformed payment id",
			zap.String("payment_id", paymentID))
		return c.demoSummary(paymentID), nil
	}

	var raw rawSummary
	if err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("%s/payments/%s/summary", c.baseURL, paymentID), nil, &raw); err != nil {
		return models.PaymentSummary{}, err
	}

	return c.normalize(raw), nil
}

// ConfirmResult is the success payload of a confirmation.
type ConfirmResult struct {
	ID     string               `json:"id"`
	Total  float64              `json:"total"`
	Status models.PaymentStatus `json:"status"`
	PaidAt *time.Time           `json:"paidAt"`
}

// Confirm submits the fixer-entered code. Failures come back as *APIError
// wrapping one of the package sentinels.
func (c *Client) Confirm(ctx context.Context, paymentID, code string) (ConfirmResult, error) {
	body := map[string]string{"code": code}

	var resp struct {
		Data ConfirmResult `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPatch,
		fmt.Sprintf("%s/payments/%s/confirm", c.baseURL, paymentID), body, &resp); err != nil {
		return ConfirmResult{}, err
	}

	return resp.Data, nil
}

// Regenerate asks the service for a fresh code and returns the refreshed
// summary.
func (c *Client) Regenerate(ctx context.Context, paymentID string) (models.PaymentSummary, error) {
	var raw rawSummary
	if err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/payments/%s/regenerate-code", c.baseURL, paymentID), nil, &raw); err != nil {
		return models.PaymentSummary{}, err
	}

	return c.normalize(raw), nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment service request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classify(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unexpected payment service response: %w", err)
		}
	}
	return nil
}

// classify maps the service's status codes onto the flow's error taxonomy.
func (c *Client) classify(status int, body []byte) error {
	var detail struct {
		Error             string `json:"error"`
		Message           string `json:"message"`
		RemainingAttempts *int   `json:"remainingAttempts"`
		UnlocksAt         string `json:"unlocksAt"`
		WaitMinutes       int    `json:"waitMinutes"`
	}
	_ = json.Unmarshal(body, &detail)

	apiErr := &APIError{
		StatusCode:        status,
		Message:           detail.Error,
		RemainingAttempts: -1,
	}
	if apiErr.Message == "" {
		apiErr.Message = detail.Message
	}

	switch status {
	case http.StatusBadRequest:
		apiErr.Err = ErrBadRequest
	case http.StatusUnauthorized:
		apiErr.Err = ErrInvalidCode
		if detail.RemainingAttempts != nil {
			apiErr.RemainingAttempts = *detail.RemainingAttempts
		}
	case http.StatusNotFound:
		apiErr.Err = ErrPaymentNotFound
	case http.StatusConflict:
		apiErr.Err = ErrAlreadyProcessed
	case http.StatusGone:
		apiErr.Err = ErrCodeExpired
	case http.StatusTooManyRequests:
		apiErr.Err = ErrLockedOut
		apiErr.WaitMinutes = detail.WaitMinutes
		if t, err := time.Parse(time.RFC3339, detail.UnlocksAt); err == nil {
			apiErr.UnlockAt = t
		} else if detail.WaitMinutes > 0 {
			apiErr.UnlockAt = c.now().Add(time.Duration(detail.WaitMinutes) * time.Minute)
		}
	default:
		apiErr.Err = fmt.Errorf("payment service error (status %d)", status)
	}

	return apiErr
}

func (c *Client) demoSummary(paymentID string) models.PaymentSummary {
	expires := c.now().Add(5 * time.Minute)
	return models.PaymentSummary{
		ID:            paymentID,
		Status:        models.StatusPending,
		Code:          "DEMO42",
		Amount:        models.Amount{Total: 150, Currency: "BOB"},
		CodeExpiresAt: &expires,
	}
}
