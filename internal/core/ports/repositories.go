package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"

	"vending-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrDuplicateRef is returned by repositories when a unique external
// reference has already been written.
var ErrDuplicateRef = errors.New("external reference already recorded")

// OwnerRepository defines persistence operations for owners and their wallets.
type OwnerRepository interface {
	// Ensure creates the owner and an empty wallet if missing. Safe under races.
	Ensure(ctx context.Context, ownerID string) error
	EnsureTx(ctx context.Context, tx pgx.Tx, ownerID string) error
	Get(ctx context.Context, ownerID string) (*domain.Owner, error)
	// AddPurchase increments spend and purchase counters.
	AddPurchase(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) error
	List(ctx context.Context, params OwnerListParams) ([]domain.Owner, int64, error)
}

// OwnerListParams holds pagination for listing owners.
type OwnerListParams struct {
	Page     int
	PageSize int
}

// WalletRepository defines persistence operations for wallets.
// Balance changes are single conditional statements; there is no read-then-write path.
type WalletRepository interface {
	Get(ctx context.Context, ownerID string) (*domain.Wallet, error)
	GetTx(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error)
	// Credit adds amount and returns the new balance.
	Credit(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) (int64, error)
	// Debit subtracts amount only if the balance covers it. ok is false when it does not.
	Debit(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) (balance int64, ok bool, err error)
}

// LedgerRepository defines persistence for the append-only wallet ledger.
type LedgerRepository interface {
	// Append returns ErrDuplicateRef if the entry's external ref already exists.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.LedgerEntry, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error)
	SumByOwner(ctx context.Context, ownerID string) (int64, error)
}

// InventoryRepository defines persistence for sellable units.
type InventoryRepository interface {
	CreateBatch(ctx context.Context, tx pgx.Tx, units []domain.InventoryUnit) error
	// ReserveNext marks the oldest available unit of plan as sold and returns it.
	// Returns nil, nil when no unit is available.
	ReserveNext(ctx context.Context, tx pgx.Tx, req ReserveRequest) (*domain.InventoryUnit, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.InventoryUnit, error)
	List(ctx context.Context, params InventoryListParams) ([]domain.InventoryUnit, int64, error)
	Stats(ctx context.Context) ([]domain.InventoryStats, error)
}

// InventoryListParams holds filter + pagination for listing units.
type InventoryListParams struct {
	Plan     *domain.Plan
	Status   *domain.UnitStatus
	Page     int
	PageSize int
}

// PaymentEventRepository persists the idempotency record for gateway callbacks.
type PaymentEventRepository interface {
	// Claim inserts the event. claimed is false if the external ref already exists.
	Claim(ctx context.Context, tx pgx.Tx, event *domain.PaymentEvent) (claimed bool, err error)
	// Complete writes the terminal outcome and stored ack.
	Complete(ctx context.Context, tx pgx.Tx, event *domain.PaymentEvent) error
	Get(ctx context.Context, externalRef string) (*domain.PaymentEvent, error)
	List(ctx context.Context, params PaymentEventListParams) ([]domain.PaymentEvent, int64, error)
}

// PaymentEventListParams holds filter + pagination for listing events.
type PaymentEventListParams struct {
	Outcome     *domain.PaymentOutcome
	NeedsReview *bool
	Page        int
	PageSize    int
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
