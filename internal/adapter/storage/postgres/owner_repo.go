package postgres

import (
	"context"
	"errors"
	"fmt"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// OwnerRepo implements ports.OwnerRepository.
type OwnerRepo struct {
	pool Pool
}

// NewOwnerRepo creates a new OwnerRepo.
func NewOwnerRepo(pool Pool) *OwnerRepo {
	return &OwnerRepo{pool: pool}
}

const (
	insertOwnerSQL  = `INSERT INTO owners (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`
	insertWalletSQL = `INSERT INTO wallets (owner_id, balance) VALUES ($1, 0) ON CONFLICT (owner_id) DO NOTHING`
)

// Ensure creates the owner and wallet rows if they do not exist.
func (r *OwnerRepo) Ensure(ctx context.Context, ownerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ensure owner: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := r.EnsureTx(ctx, tx, ownerID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ensure owner: %w", err)
	}
	return nil
}

// EnsureTx is Ensure inside an existing transaction.
func (r *OwnerRepo) EnsureTx(ctx context.Context, tx pgx.Tx, ownerID string) error {
	if _, err := tx.Exec(ctx, insertOwnerSQL, ownerID); err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	if _, err := tx.Exec(ctx, insertWalletSQL, ownerID); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// Get fetches an owner by ID. Returns nil, nil if not found.
func (r *OwnerRepo) Get(ctx context.Context, ownerID string) (*domain.Owner, error) {
	query := `SELECT owner_id, total_spent, total_purchases, created_at FROM owners WHERE owner_id = $1`

	o := &domain.Owner{}
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(&o.ID, &o.TotalSpent, &o.TotalPurchases, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

// AddPurchase increments the owner's spend counters within a transaction.
func (r *OwnerRepo) AddPurchase(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) error {
	query := `UPDATE owners SET total_spent = total_spent + $1, total_purchases = total_purchases + 1 WHERE owner_id = $2`

	tag, err := tx.Exec(ctx, query, amount, ownerID)
	if err != nil {
		return fmt.Errorf("update owner stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("owner not found: %s", ownerID)
	}
	return nil
}

// List returns owners ordered by spend, most valuable first.
func (r *OwnerRepo) List(ctx context.Context, params ports.OwnerListParams) ([]domain.Owner, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM owners`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count owners: %w", err)
	}

	limit, offset := pageBounds(params.Page, params.PageSize)
	rows, err := r.pool.Query(ctx,
		`SELECT owner_id, total_spent, total_purchases, created_at FROM owners
		ORDER BY total_spent DESC, created_at ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []domain.Owner
	for rows.Next() {
		o := domain.Owner{}
		if err := rows.Scan(&o.ID, &o.TotalSpent, &o.TotalPurchases, &o.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan owner row: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate owner rows: %w", err)
	}
	return owners, total, nil
}

// pageBounds converts 1-based page parameters into LIMIT/OFFSET.
func pageBounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}
