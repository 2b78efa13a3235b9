package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// InventoryRepo implements ports.InventoryRepository.
type InventoryRepo struct {
	pool Pool
}

// NewInventoryRepo creates a new InventoryRepo.
func NewInventoryRepo(pool Pool) *InventoryRepo {
	return &InventoryRepo{pool: pool}
}

const unitColumns = `id, plan, credentials_encrypted, status, sold_at, buyer_ref, price, external_ref, created_at`

// CreateBatch inserts units inside a transaction.
func (r *InventoryRepo) CreateBatch(ctx context.Context, tx pgx.Tx, units []domain.InventoryUnit) error {
	query := `INSERT INTO inventory_units (id, plan, credentials_encrypted, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	for _, u := range units {
		if _, err := tx.Exec(ctx, query, u.ID, u.Plan, u.EncryptedCredentials, u.Status, u.CreatedAt); err != nil {
			return fmt.Errorf("insert inventory unit: %w", err)
		}
	}
	return nil
}

// ReserveNext flips the oldest available unit of the plan to sold in one
// statement. SKIP LOCKED lets concurrent buyers take different units instead
// of queueing on the same row.
func (r *InventoryRepo) ReserveNext(ctx context.Context, tx pgx.Tx, req ports.ReserveRequest) (*domain.InventoryUnit, error) {
	query := `UPDATE inventory_units
		SET status = 'sold', sold_at = now(), buyer_ref = $2, price = $3, external_ref = $4
		WHERE id = (
			SELECT id FROM inventory_units
			WHERE status = 'available' AND plan = $1
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'available'
		RETURNING ` + unitColumns

	u, err := scanUnit(tx.QueryRow(ctx, query, req.Plan, req.BuyerRef, req.Price, req.ExternalRef))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ports.ErrDuplicateRef
		}
		return nil, fmt.Errorf("reserve unit: %w", err)
	}
	return u, nil
}

// GetByExternalRef fetches the unit sold for an external reference.
func (r *InventoryRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.InventoryUnit, error) {
	u, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE external_ref = $1`, externalRef))
	if err != nil {
		return nil, fmt.Errorf("get unit by ref: %w", err)
	}
	return u, nil
}

// List fetches units with filtering and pagination.
func (r *InventoryRepo) List(ctx context.Context, params ports.InventoryListParams) ([]domain.InventoryUnit, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Plan != nil {
		conditions = append(conditions, fmt.Sprintf("plan = $%d", argIdx))
		args = append(args, *params.Plan)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_units "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inventory units: %w", err)
	}

	limit, offset := pageBounds(params.Page, params.PageSize)
	dataQuery := fmt.Sprintf(`SELECT %s FROM inventory_units %s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		unitColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory units: %w", err)
	}
	defer rows.Close()

	var units []domain.InventoryUnit
	for rows.Next() {
		u := domain.InventoryUnit{}
		if err := rows.Scan(
			&u.ID, &u.Plan, &u.EncryptedCredentials, &u.Status, &u.SoldAt,
			&u.BuyerRef, &u.Price, &u.ExternalRef, &u.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan inventory row: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inventory rows: %w", err)
	}
	return units, total, nil
}

// Stats aggregates stock per plan.
func (r *InventoryRepo) Stats(ctx context.Context) ([]domain.InventoryStats, error) {
	query := `SELECT plan,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'available') AS available,
		COUNT(*) FILTER (WHERE status = 'sold') AS sold,
		COALESCE(SUM(price) FILTER (WHERE status = 'sold'), 0) AS revenue
		FROM inventory_units GROUP BY plan ORDER BY plan`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("inventory stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.InventoryStats
	for rows.Next() {
		s := domain.InventoryStats{}
		if err := rows.Scan(&s.Plan, &s.Total, &s.Available, &s.Sold, &s.Revenue); err != nil {
			return nil, fmt.Errorf("scan inventory stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory stats: %w", err)
	}
	return stats, nil
}

func scanUnit(row pgx.Row) (*domain.InventoryUnit, error) {
	u := &domain.InventoryUnit{}
	err := row.Scan(
		&u.ID, &u.Plan, &u.EncryptedCredentials, &u.Status, &u.SoldAt,
		&u.BuyerRef, &u.Price, &u.ExternalRef, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
