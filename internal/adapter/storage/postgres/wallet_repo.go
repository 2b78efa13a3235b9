package postgres

import (
	"context"
	"errors"
	"fmt"

	"vending-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const selectWalletSQL = `SELECT owner_id, balance, created_at, updated_at FROM wallets WHERE owner_id = $1`

// Get fetches a wallet by owner. Returns nil, nil if not found.
func (r *WalletRepo) Get(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, selectWalletSQL, ownerID))
}

// GetTx fetches a wallet inside a transaction.
func (r *WalletRepo) GetTx(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, selectWalletSQL, ownerID))
}

// Credit atomically adds amount to the balance and returns the new balance.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) (int64, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = now()
		WHERE owner_id = $2 RETURNING balance`

	var balance int64
	if err := tx.QueryRow(ctx, query, amount, ownerID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("wallet not found: %s", ownerID)
		}
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	return balance, nil
}

// Debit atomically subtracts amount if and only if the balance covers it.
// The guard in the WHERE clause makes concurrent debits linearizable per owner.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) (int64, bool, error) {
	query := `UPDATE wallets SET balance = balance - $1, updated_at = now()
		WHERE owner_id = $2 AND balance >= $1 RETURNING balance`

	var balance int64
	if err := tx.QueryRow(ctx, query, amount, ownerID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("debit wallet: %w", err)
	}
	return balance, true, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	if err := row.Scan(&w.OwnerID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
