package memory

import (
	"context"
	"fmt"
	"sort"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// OwnerRepo implements ports.OwnerRepository.
type OwnerRepo struct {
	store *Store
}

// NewOwnerRepo creates an OwnerRepo.
func NewOwnerRepo(store *Store) *OwnerRepo {
	return &OwnerRepo{store: store}
}

// Ensure creates the owner and wallet if missing.
func (r *OwnerRepo) Ensure(ctx context.Context, ownerID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.ensure(nil, ownerID)
	return nil
}

// EnsureTx is Ensure inside a transaction.
func (r *OwnerRepo) EnsureTx(ctx context.Context, tx pgx.Tx, ownerID string) error {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return err
	}
	r.store.ensure(mt, ownerID)
	return nil
}

func (s *Store) ensure(tx *Tx, ownerID string) {
	now := s.now()
	if _, ok := s.owners[ownerID]; !ok {
		s.owners[ownerID] = &domain.Owner{ID: ownerID, CreatedAt: now}
		if tx != nil {
			tx.onRollback(func() { delete(s.owners, ownerID) })
		}
	}
	if _, ok := s.wallets[ownerID]; !ok {
		s.wallets[ownerID] = &domain.Wallet{OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
		if tx != nil {
			tx.onRollback(func() { delete(s.wallets, ownerID) })
		}
	}
}

// Get fetches an owner. Returns nil, nil if not found.
func (r *OwnerRepo) Get(ctx context.Context, ownerID string) (*domain.Owner, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.owners[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// AddPurchase increments spend counters.
func (r *OwnerRepo) AddPurchase(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) error {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return err
	}
	o, ok := r.store.owners[ownerID]
	if !ok {
		return fmt.Errorf("owner not found: %s", ownerID)
	}
	o.TotalSpent += amount
	o.TotalPurchases++
	mt.onRollback(func() {
		o.TotalSpent -= amount
		o.TotalPurchases--
	})
	return nil
}

// List returns owners ordered by spend.
func (r *OwnerRepo) List(ctx context.Context, params ports.OwnerListParams) ([]domain.Owner, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all := make([]domain.Owner, 0, len(r.store.owners))
	for _, o := range r.store.owners {
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalSpent != all[j].TotalSpent {
			return all[i].TotalSpent > all[j].TotalSpent
		}
		return all[i].ID < all[j].ID
	})
	start, end := pageBounds(params.Page, params.PageSize, len(all))
	return all[start:end], int64(len(all)), nil
}
