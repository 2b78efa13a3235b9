package memory

import (
	"context"
	"fmt"

	"vending-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a WalletRepo.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

// Get fetches a wallet. Returns nil, nil if not found.
func (r *WalletRepo) Get(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.wallet(ownerID), nil
}

// GetTx fetches a wallet inside a transaction.
func (r *WalletRepo) GetTx(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	if _, err := r.store.txFor(tx); err != nil {
		return nil, err
	}
	return r.store.wallet(ownerID), nil
}

func (s *Store) wallet(ownerID string) *domain.Wallet {
	w, ok := s.wallets[ownerID]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

// Credit adds amount to the balance.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) (int64, error) {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return 0, err
	}
	w, ok := r.store.wallets[ownerID]
	if !ok {
		return 0, fmt.Errorf("wallet not found: %s", ownerID)
	}
	prev, prevUpdated := w.Balance, w.UpdatedAt
	w.Balance += amount
	w.UpdatedAt = r.store.now()
	mt.onRollback(func() { w.Balance, w.UpdatedAt = prev, prevUpdated })
	return w.Balance, nil
}

// Debit subtracts amount if the balance covers it.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) (int64, bool, error) {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return 0, false, err
	}
	w, ok := r.store.wallets[ownerID]
	if !ok || w.Balance < amount {
		return 0, false, nil
	}
	prev, prevUpdated := w.Balance, w.UpdatedAt
	w.Balance -= amount
	w.UpdatedAt = r.store.now()
	mt.onRollback(func() { w.Balance, w.UpdatedAt = prev, prevUpdated })
	return w.Balance, true, nil
}
