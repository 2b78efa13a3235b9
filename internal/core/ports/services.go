package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"vending-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// HashService handles secret hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// SecretVerifier checks the shared API key presented by gateways and admins.
type SecretVerifier interface {
	VerifyAPIKey(presented string) bool
}

// AuthService verifies the shared API key and issues wallet-API client tokens.
type AuthService interface {
	SecretVerifier
	IssueClientToken(ctx context.Context, clientID, ip string) (string, time.Time, error)
}

// TokenService handles JWT client tokens for the wallet API.
type TokenService interface {
	Generate(clientID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ClientID string
}

// IdempotencyCache is the Redis-layer replay check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached value or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitPolicy is the fixed-window policy applied per actor.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
	Ban    time.Duration
}

// RateLimitStore holds per-actor windows and bans. Hit must be atomic per actor.
type RateLimitStore interface {
	Hit(ctx context.Context, actorID string, now time.Time, policy RateLimitPolicy) (domain.RateLimitDecision, error)
	Reset(ctx context.Context, actorID string) error
}

// --- Service Ports (Business Logic) ---

// RateLimiter decides whether an actor may proceed.
type RateLimiter interface {
	Check(ctx context.Context, actorID string) domain.RateLimitDecision
	Reset(ctx context.Context, actorID string) error
}

// PaymentVerifier checks a transfer memo and amount against policy. Pure.
type PaymentVerifier interface {
	Verify(memo string, amount int64) domain.VerificationResult
	// Price returns the configured price of a sellable plan.
	Price(plan domain.Plan) (int64, bool)
	// CodeFor builds the memo code a buyer should use for plan.
	CodeFor(plan domain.Plan, ownerID string) (string, error)
}

// DepositRequest holds validated input for a wallet credit.
type DepositRequest struct {
	OwnerID     string
	Amount      int64
	ExternalRef string
	Method      string
}

// DeductRequest holds validated input for a wallet debit.
type DeductRequest struct {
	OwnerID     string
	Amount      int64
	ExternalRef string
	Method      string
	Plan        *domain.Plan
	UnitID      *string
}

// WalletLedger owns every balance mutation.
type WalletLedger interface {
	GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error)
	Deposit(ctx context.Context, req DepositRequest) (*domain.BalanceChange, error)
	Deduct(ctx context.Context, req DeductRequest) (*domain.BalanceChange, error)
	// DepositTx and DeductTx run inside a caller-owned transaction.
	DepositTx(ctx context.Context, tx pgx.Tx, req DepositRequest) (*domain.BalanceChange, error)
	DeductTx(ctx context.Context, tx pgx.Tx, req DeductRequest) (*domain.BalanceChange, error)
	// RecordPurchase updates spend counters without touching the balance.
	RecordPurchase(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) error
	// Replay returns the stored ack for a processed gateway event, or nil.
	Replay(ctx context.Context, externalRef string) (*domain.Ack, error)
	Wallet(ctx context.Context, ownerID string, recent int) (*domain.WalletView, error)
	ListOwners(ctx context.Context, params OwnerListParams) ([]domain.Owner, int64, error)
}

// ReserveRequest holds input for reserving one unit.
type ReserveRequest struct {
	Plan        domain.Plan
	BuyerRef    *string
	Price       int64
	ExternalRef string
}

// InventoryAllocator hands out each unit at most once.
type InventoryAllocator interface {
	Reserve(ctx context.Context, req ReserveRequest) (*domain.InventoryUnit, error)
	ReserveTx(ctx context.Context, tx pgx.Tx, req ReserveRequest) (*domain.InventoryUnit, error)
	Import(ctx context.Context, plan domain.Plan, credentials []string) (int, error)
	Stats(ctx context.Context) ([]domain.InventoryStats, error)
	List(ctx context.Context, params InventoryListParams) ([]domain.InventoryUnit, int64, error)
	// Lookup returns the unit sold under externalRef with credentials, or nil.
	Lookup(ctx context.Context, externalRef string) (*domain.InventoryUnit, error)
	// Reveal decrypts the credentials of a sold unit.
	Reveal(unit *domain.InventoryUnit) (string, error)
}

// WebhookRequest is a validated gateway callback.
type WebhookRequest struct {
	ExternalRef   string
	Memo          string
	Amount        int64
	Gateway       string
	AccountNumber string
	ClientIP      string
}

// WebhookIntake processes gateway callbacks exactly once per external ref.
type WebhookIntake interface {
	Handle(ctx context.Context, req WebhookRequest) (*domain.Ack, error)
	// Fulfil delivers a unit for an event parked as no_stock.
	Fulfil(ctx context.Context, req FulfilRequest) (*domain.Ack, error)
}

// FulfilRequest is an operator's manual delivery for a flagged event.
type FulfilRequest struct {
	ExternalRef string
	Actor       string
	ClientIP    string
}

// MaintenanceGate is the process-wide kill switch.
type MaintenanceGate interface {
	IsEnabled() bool
	Status() (enabled bool, message string)
	SetEnabled(enabled bool, message string)
}

// PurchaseRequest buys one unit with wallet balance.
type PurchaseRequest struct {
	OwnerID     string
	Plan        domain.Plan
	ExternalRef string
}

// CheckoutService prepares bank-transfer instructions and balance purchases.
type CheckoutService interface {
	Instructions(ctx context.Context, ownerID string, plan domain.Plan) (*domain.CheckoutInstructions, error)
	BuyWithBalance(ctx context.Context, req PurchaseRequest) (*domain.Purchase, error)
}

// Notifier delivers one notification through a single channel.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
	Name() string
}

// NotificationDispatcher sends notifications after commit. Never blocks the caller.
type NotificationDispatcher interface {
	Dispatch(n ...domain.Notification)
}

// NotificationGuard records delivered notifications so each is sent once.
type NotificationGuard interface {
	// MarkSent returns true if key was not marked before.
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// QRProvider renders a payment QR image reference.
type QRProvider interface {
	Generate(ctx context.Context, req domain.QRRequest) (*domain.QRImage, error)
	Name() string
}

// ReportingService serves the admin read models.
type ReportingService interface {
	ListPayments(ctx context.Context, params PaymentEventListParams) ([]domain.PaymentEvent, int64, error)
	Overview(ctx context.Context) (*domain.Overview, error)
}

// AuditService records audited actions (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
