package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// lockWait caps how long a ledger transaction queues behind a row lock held
// by a concurrent delivery of the same payment.
const lockWait = "5s"

// Transactor opens READ COMMITTED transactions. Balance and stock changes
// are single conditional UPDATEs, so no stronger isolation is needed.
type Transactor struct {
	pool Pool
	opts pgx.TxOptions
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// Begin starts a transaction with a bounded lock wait.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, t.opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockWait+"'"); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("setting lock timeout: %w", err)
	}
	return tx, nil
}
