package memory

import (
	"context"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	store *Store
}

// NewLedgerRepo creates a LedgerRepo.
func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

// Append adds an entry; the external ref must be unique.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return err
	}
	s := r.store
	if _, dup := s.ledgerByRef[e.ExternalRef]; dup {
		return ports.ErrDuplicateRef
	}
	s.ledger = append(s.ledger, *e)
	s.ledgerByRef[e.ExternalRef] = len(s.ledger) - 1
	mt.onRollback(func() {
		s.ledger = s.ledger[:len(s.ledger)-1]
		delete(s.ledgerByRef, e.ExternalRef)
	})
	return nil
}

// GetByExternalRef fetches an entry. Returns nil, nil if not found.
func (r *LedgerRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	idx, ok := r.store.ledgerByRef[externalRef]
	if !ok {
		return nil, nil
	}
	cp := r.store.ledger[idx]
	return &cp, nil
}

// ListByOwner returns the newest entries first.
func (r *LedgerRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(r.store.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if r.store.ledger[i].OwnerID == ownerID {
			out = append(out, r.store.ledger[i])
		}
	}
	return out, nil
}

// SumByOwner sums signed amounts.
func (r *LedgerRepo) SumByOwner(ctx context.Context, ownerID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sum int64
	for _, e := range r.store.ledger {
		if e.OwnerID == ownerID {
			sum += e.Amount
		}
	}
	return sum, nil
}
