package memory

import (
	"context"
	"fmt"
	"sort"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// PaymentEventRepo implements ports.PaymentEventRepository.
type PaymentEventRepo struct {
	store *Store
}

// NewPaymentEventRepo creates a PaymentEventRepo.
func NewPaymentEventRepo(store *Store) *PaymentEventRepo {
	return &PaymentEventRepo{store: store}
}

// Claim inserts the event unless the ref exists.
func (r *PaymentEventRepo) Claim(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) (bool, error) {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return false, err
	}
	if _, exists := r.store.events[e.ExternalRef]; exists {
		return false, nil
	}
	cp := *e
	r.store.events[e.ExternalRef] = &cp
	mt.onRollback(func() { delete(r.store.events, e.ExternalRef) })
	return true, nil
}

// Complete stores the terminal outcome.
func (r *PaymentEventRepo) Complete(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) error {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return err
	}
	cur, ok := r.store.events[e.ExternalRef]
	if !ok {
		return fmt.Errorf("payment event not found: %s", e.ExternalRef)
	}
	prev := *cur
	cur.Outcome = e.Outcome
	cur.Reasons = e.Reasons
	cur.UnitID = e.UnitID
	cur.AckJSON = append([]byte(nil), e.AckJSON...)
	cur.NeedsReview = e.NeedsReview
	cur.ProcessedAt = e.ProcessedAt
	mt.onRollback(func() { *cur = prev })
	return nil
}

// Get fetches an event. Returns nil, nil if not found.
func (r *PaymentEventRepo) Get(ctx context.Context, externalRef string) (*domain.PaymentEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.events[externalRef]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// List returns events newest first.
func (r *PaymentEventRepo) List(ctx context.Context, params ports.PaymentEventListParams) ([]domain.PaymentEvent, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var all []domain.PaymentEvent
	for _, e := range r.store.events {
		if params.Outcome != nil && e.Outcome != *params.Outcome {
			continue
		}
		if params.NeedsReview != nil && e.NeedsReview != *params.NeedsReview {
			continue
		}
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ExternalRef < all[j].ExternalRef
	})
	start, end := pageBounds(params.Page, params.PageSize, len(all))
	return all[start:end], int64(len(all)), nil
}
