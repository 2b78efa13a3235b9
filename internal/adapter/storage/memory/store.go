// Package memory is a single-process storage driver. One store-wide lock is
// held for the life of each transaction, so transactions are serial; an undo
// log restores state on rollback.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vending-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// Store holds all tables.
type Store struct {
	mu sync.Mutex

	owners      map[string]*domain.Owner
	wallets     map[string]*domain.Wallet
	ledger      []domain.LedgerEntry
	ledgerByRef map[string]int
	units       []*domain.InventoryUnit
	events      map[string]*domain.PaymentEvent
	audits      []domain.AuditLog

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		owners:      make(map[string]*domain.Owner),
		wallets:     make(map[string]*domain.Wallet),
		ledgerByRef: make(map[string]int),
		events:      make(map[string]*domain.PaymentEvent),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Tx is a store transaction. It satisfies pgx.Tx so services can use the
// same code path as with PostgreSQL; only Commit and Rollback are implemented.
type Tx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

// Commit releases the store lock and keeps all changes.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

// Rollback reverts changes in reverse order and releases the store lock.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *Tx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor for the store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin blocks until no other transaction is open.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	return &Tx{store: t.store}, nil
}

// txFor unwraps a transaction started by this store.
func (s *Store) txFor(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt.store != s {
		return nil, fmt.Errorf("memory: transaction does not belong to this store")
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// HealthCheck implements ports.HealthChecker; the store is always reachable.
type HealthCheck struct{}

// Ping always succeeds.
func (HealthCheck) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }

func pageBounds(page, pageSize, n int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > n {
		start = n
	}
	end := start + pageSize
	if end > n {
		end = n
	}
	return start, end
}
