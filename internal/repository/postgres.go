package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/servineo/payment-system/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(255) PRIMARY KEY,
			job_id VARCHAR(255) NOT NULL,
			requester_id VARCHAR(255) NOT NULL,
			fixer_id VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL,
			code VARCHAR(12),
			total DECIMAL(15,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			code_expires_at TIMESTAMP,
			paid_at TIMESTAMP,
			idempotency_key VARCHAR(255) UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_job_id ON payments(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_idempotency_key ON payments(idempotency_key)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, job_id, requester_id, fixer_id, status, code, total, currency, code_expires_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, payment.ID, payment.JobID, payment.RequesterID, payment.FixerID, payment.Status,
		payment.Code, payment.Amount.Total, payment.Amount.Currency,
		payment.CodeExpiresAt, payment.IdempotencyKey)
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPayment+` WHERE id = $1`, id))
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPayment+` WHERE idempotency_key = $1`, key))
}

// MarkPaid guards the transition on the current status so that only one
// confirmation can win and terminal payments stay terminal.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, paid_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, models.StatusPaid, paidAt, id, models.StatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *PaymentRepository) ReplaceCode(ctx context.Context, id, code string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments SET code = $1, code_expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, code, expiresAt, id, models.StatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

const selectPayment = `
	SELECT id, job_id, requester_id, fixer_id, status, code, total, currency,
	       code_expires_at, paid_at, idempotency_key, created_at, updated_at
	FROM payments`

func (r *PaymentRepository) scanOne(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	var code, idempotencyKey sql.NullString
	var codeExpiresAt, paidAt sql.NullTime

	err := row.Scan(&p.ID, &p.JobID, &p.RequesterID, &p.FixerID, &p.Status,
		&code, &p.Amount.Total, &p.Amount.Currency,
		&codeExpiresAt, &paidAt, &idempotencyKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Code = code.String
	p.IdempotencyKey = idempotencyKey.String
	if codeExpiresAt.Valid {
		t := codeExpiresAt.Time
		p.CodeExpiresAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}
