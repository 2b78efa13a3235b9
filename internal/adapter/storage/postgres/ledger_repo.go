package postgres

import (
	"context"
	"errors"
	"fmt"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const ledgerColumns = `id, owner_id, kind, amount, balance_before, balance_after,
	external_ref, method, plan, unit_id, status, created_at`

// Append inserts a ledger entry within a database transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.OwnerID, e.Kind, e.Amount, e.BalanceBefore, e.BalanceAfter,
		e.ExternalRef, e.Method, e.Plan, e.UnitID, e.Status, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicateRef
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByExternalRef fetches the entry written for an external reference.
func (r *LedgerRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE external_ref = $1`

	e := &domain.LedgerEntry{}
	err := r.pool.QueryRow(ctx, query, externalRef).Scan(
		&e.ID, &e.OwnerID, &e.Kind, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
		&e.ExternalRef, &e.Method, &e.Plan, &e.UnitID, &e.Status, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListByOwner returns the newest entries for an owner.
func (r *LedgerRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE owner_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(
			&e.ID, &e.OwnerID, &e.Kind, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.ExternalRef, &e.Method, &e.Plan, &e.UnitID, &e.Status, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

// SumByOwner returns the sum of signed amounts, which must equal the wallet balance.
func (r *LedgerRepo) SumByOwner(ctx context.Context, ownerID string) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE owner_id = $1`, ownerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}
