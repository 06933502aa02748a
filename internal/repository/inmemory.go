package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/servineo/payment-system/internal/models"
)

// InMemoryPaymentRepository backs the demo mode and the handler tests. It
// returns sql.ErrNoRows for missing rows so callers treat both repositories
// the same way.
type InMemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*models.Payment
	byKey    map[string]string
}

func NewInMemoryPaymentRepository() *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments: make(map[string]*models.Payment),
		byKey:    make(map[string]string),
	}
}

func (r *InMemoryPaymentRepository) Create(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *payment
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.payments[cp.ID] = &cp
	if cp.IdempotencyKey != "" {
		r.byKey[cp.IdempotencyKey] = cp.ID
	}
	return nil
}

func (r *InMemoryPaymentRepository) GetByID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryPaymentRepository) GetByIdempotencyKey(_ context.Context, key string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r.payments[id]
	return &cp, nil
}

func (r *InMemoryPaymentRepository) MarkPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if p.Status != models.StatusPending {
		return false, nil
	}
	p.Status = models.StatusPaid
	t := paidAt
	p.PaidAt = &t
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *InMemoryPaymentRepository) ReplaceCode(_ context.Context, id, code string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if p.Status != models.StatusPending {
		return false, nil
	}
	p.Code = code
	t := expiresAt
	p.CodeExpiresAt = &t
	p.UpdatedAt = time.Now()
	return true, nil
}
