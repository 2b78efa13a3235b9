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

// PaymentEventRepo implements ports.PaymentEventRepository. The primary key on
// external_ref is what serialises duplicate deliveries of the same callback.
type PaymentEventRepo struct {
	pool Pool
}

// NewPaymentEventRepo creates a new PaymentEventRepo.
func NewPaymentEventRepo(pool Pool) *PaymentEventRepo {
	return &PaymentEventRepo{pool: pool}
}

const paymentEventColumns = `external_ref, raw_memo, parsed_plan, parsed_owner_ref, amount, gateway,
	account_number, outcome, reasons, unit_id, ack_json, needs_review, created_at, processed_at`

// Claim inserts the event in the processing state. A concurrent claimer of
// the same ref blocks on the insert until the first transaction finishes.
func (r *PaymentEventRepo) Claim(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) (bool, error) {
	query := `INSERT INTO payment_events (external_ref, raw_memo, parsed_plan, parsed_owner_ref, amount,
		gateway, account_number, outcome, reasons, needs_review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_ref) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		e.ExternalRef, e.RawMemo, e.ParsedPlan, e.ParsedOwnerRef, e.Amount,
		e.Gateway, e.AccountNumber, e.Outcome, reasonsOrEmpty(e.Reasons), e.NeedsReview, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("claim payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete stores the terminal outcome and ack.
func (r *PaymentEventRepo) Complete(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) error {
	query := `UPDATE payment_events
		SET outcome = $1, reasons = $2, unit_id = $3, ack_json = $4, needs_review = $5, processed_at = $6
		WHERE external_ref = $7`

	tag, err := tx.Exec(ctx, query,
		e.Outcome, reasonsOrEmpty(e.Reasons), e.UnitID, e.AckJSON, e.NeedsReview, e.ProcessedAt, e.ExternalRef,
	)
	if err != nil {
		return fmt.Errorf("complete payment event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment event not found: %s", e.ExternalRef)
	}
	return nil
}

// Get fetches an event by external ref. Returns nil, nil if not found.
func (r *PaymentEventRepo) Get(ctx context.Context, externalRef string) (*domain.PaymentEvent, error) {
	query := `SELECT ` + paymentEventColumns + ` FROM payment_events WHERE external_ref = $1`

	e := &domain.PaymentEvent{}
	err := r.pool.QueryRow(ctx, query, externalRef).Scan(
		&e.ExternalRef, &e.RawMemo, &e.ParsedPlan, &e.ParsedOwnerRef, &e.Amount, &e.Gateway,
		&e.AccountNumber, &e.Outcome, &e.Reasons, &e.UnitID, &e.AckJSON, &e.NeedsReview,
		&e.CreatedAt, &e.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment event: %w", err)
	}
	return e, nil
}

// List fetches events with filtering and pagination, newest first.
func (r *PaymentEventRepo) List(ctx context.Context, params ports.PaymentEventListParams) ([]domain.PaymentEvent, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Outcome != nil {
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", argIdx))
		args = append(args, *params.Outcome)
		argIdx++
	}
	if params.NeedsReview != nil {
		conditions = append(conditions, fmt.Sprintf("needs_review = $%d", argIdx))
		args = append(args, *params.NeedsReview)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payment_events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment events: %w", err)
	}

	limit, offset := pageBounds(params.Page, params.PageSize)
	dataQuery := fmt.Sprintf(`SELECT %s FROM payment_events %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		paymentEventColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		e := domain.PaymentEvent{}
		if err := rows.Scan(
			&e.ExternalRef, &e.RawMemo, &e.ParsedPlan, &e.ParsedOwnerRef, &e.Amount, &e.Gateway,
			&e.AccountNumber, &e.Outcome, &e.Reasons, &e.UnitID, &e.AckJSON, &e.NeedsReview,
			&e.CreatedAt, &e.ProcessedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan payment event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment event rows: %w", err)
	}
	return events, total, nil
}

func reasonsOrEmpty(reasons []string) []string {
	if reasons == nil {
		return []string{}
	}
	return reasons
}
