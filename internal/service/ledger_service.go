package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultRecentEntries = 10
	maxRecentEntries     = 100
)

// LedgerService implements ports.WalletLedger. Balances change only through
// single conditional statements and every change appends one ledger entry
// keyed by a unique external reference.
type LedgerService struct {
	owners     ports.OwnerRepository
	wallets    ports.WalletRepository
	ledger     ports.LedgerRepository
	events     ports.PaymentEventRepository
	ackCache   ports.IdempotencyCache
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	owners ports.OwnerRepository,
	wallets ports.WalletRepository,
	ledger ports.LedgerRepository,
	events ports.PaymentEventRepository,
	ackCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		owners:     owners,
		wallets:    wallets,
		ledger:     ledger,
		events:     events,
		ackCache:   ackCache,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the owner's wallet, creating owner and wallet on first touch.
func (s *LedgerService) GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, apperror.Validation("owner_id is required")
	}
	if err := s.owners.Ensure(ctx, ownerID); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("ensure owner: %w", err))
	}
	wallet, err := s.wallets.Get(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// Deposit credits a wallet in its own transaction. A reference that was
// already applied returns the original change with Replayed set.
func (s *LedgerService) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.BalanceChange, error) {
	if req.Method == "" {
		req.Method = domain.MethodWalletAPI
	}
	if req.ExternalRef == "" {
		prefix := "DEP-"
		if req.Method == domain.MethodAdminGift {
			prefix = "GIFT-"
		}
		req.ExternalRef = prefix + uuid.NewString()
	}
	if domain.IsGatewayRef(req.ExternalRef) {
		return nil, errReservedRef()
	}
	if err := validateMovement(req.OwnerID, req.Amount); err != nil {
		return nil, err
	}

	if prev, err := s.replayChange(ctx, req.ExternalRef, req.OwnerID, domain.LedgerKindDeposit); prev != nil || err != nil {
		return prev, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	change, err := s.DepositTx(ctx, dbTx, req)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateRef) {
			_ = dbTx.Rollback(ctx)
			return s.duplicateChange(ctx, req.ExternalRef, req.OwnerID, domain.LedgerKindDeposit)
		}
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("owner_id", req.OwnerID).
		Str("external_ref", req.ExternalRef).
		Str("method", req.Method).
		Int64("amount", req.Amount).
		Int64("balance", change.BalanceAfter).
		Msg("wallet credited")

	return change, nil
}

// DepositTx credits a wallet inside the caller's transaction.
func (s *LedgerService) DepositTx(ctx context.Context, tx pgx.Tx, req ports.DepositRequest) (*domain.BalanceChange, error) {
	if err := validateMovement(req.OwnerID, req.Amount); err != nil {
		return nil, err
	}
	if req.ExternalRef == "" {
		return nil, apperror.Validation("external_ref is required")
	}

	if err := s.owners.EnsureTx(ctx, tx, req.OwnerID); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("ensure owner: %w", err))
	}

	balance, err := s.wallets.Credit(ctx, tx, req.OwnerID, req.Amount)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("credit wallet: %w", err))
	}

	entry := domain.LedgerEntry{
		ID:            uuid.New(),
		OwnerID:       req.OwnerID,
		Kind:          domain.LedgerKindDeposit,
		Amount:        req.Amount,
		BalanceBefore: balance - req.Amount,
		BalanceAfter:  balance,
		ExternalRef:   req.ExternalRef,
		Method:        req.Method,
		Status:        domain.LedgerEntryStatusCompleted,
		CreatedAt:     s.now(),
	}
	if err := s.appendEntry(ctx, tx, &entry); err != nil {
		return nil, err
	}

	return changeFromEntry(entry, false), nil
}

// Deduct debits a wallet in its own transaction.
func (s *LedgerService) Deduct(ctx context.Context, req ports.DeductRequest) (*domain.BalanceChange, error) {
	if req.Method == "" {
		req.Method = domain.MethodWalletAPI
	}
	if req.ExternalRef == "" {
		if req.UnitID != nil && *req.UnitID != "" {
			req.ExternalRef = "DEDUCT-" + *req.UnitID
		} else {
			req.ExternalRef = "DEDUCT-" + uuid.NewString()
		}
	}
	if domain.IsGatewayRef(req.ExternalRef) {
		return nil, errReservedRef()
	}
	if err := validateMovement(req.OwnerID, req.Amount); err != nil {
		return nil, err
	}

	if prev, err := s.replayChange(ctx, req.ExternalRef, req.OwnerID, domain.LedgerKindPurchase); prev != nil || err != nil {
		return prev, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	change, err := s.DeductTx(ctx, dbTx, req)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateRef) {
			_ = dbTx.Rollback(ctx)
			return s.duplicateChange(ctx, req.ExternalRef, req.OwnerID, domain.LedgerKindPurchase)
		}
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("owner_id", req.OwnerID).
		Str("external_ref", req.ExternalRef).
		Int64("amount", req.Amount).
		Int64("balance", change.BalanceAfter).
		Msg("wallet debited")

	return change, nil
}

// DeductTx debits a wallet inside the caller's transaction. The balance
// check and the decrement are one statement.
func (s *LedgerService) DeductTx(ctx context.Context, tx pgx.Tx, req ports.DeductRequest) (*domain.BalanceChange, error) {
	if err := validateMovement(req.OwnerID, req.Amount); err != nil {
		return nil, err
	}
	if req.ExternalRef == "" {
		return nil, apperror.Validation("external_ref is required")
	}

	var unitID *uuid.UUID
	if req.UnitID != nil && *req.UnitID != "" {
		id, err := uuid.Parse(*req.UnitID)
		if err != nil {
			return nil, apperror.Validation("unit_id must be a UUID")
		}
		unitID = &id
	}

	if err := s.owners.EnsureTx(ctx, tx, req.OwnerID); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("ensure owner: %w", err))
	}

	balance, ok, err := s.wallets.Debit(ctx, tx, req.OwnerID, req.Amount)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("debit wallet: %w", err))
	}
	if !ok {
		var current int64
		wallet, err := s.wallets.GetTx(ctx, tx, req.OwnerID)
		if err != nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("get wallet: %w", err))
		}
		if wallet != nil {
			current = wallet.Balance
		}
		return nil, apperror.ErrInsufficientBalance(current, req.Amount)
	}

	entry := domain.LedgerEntry{
		ID:            uuid.New(),
		OwnerID:       req.OwnerID,
		Kind:          domain.LedgerKindPurchase,
		Amount:        -req.Amount,
		BalanceBefore: balance + req.Amount,
		BalanceAfter:  balance,
		ExternalRef:   req.ExternalRef,
		Method:        req.Method,
		Plan:          req.Plan,
		UnitID:        unitID,
		Status:        domain.LedgerEntryStatusCompleted,
		CreatedAt:     s.now(),
	}
	if err := s.appendEntry(ctx, tx, &entry); err != nil {
		return nil, err
	}

	if err := s.owners.AddPurchase(ctx, tx, req.OwnerID, req.Amount); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("update owner totals: %w", err))
	}

	return changeFromEntry(entry, false), nil
}

// RecordPurchase updates owner spend counters for a purchase paid outside the wallet.
func (s *LedgerService) RecordPurchase(ctx context.Context, tx pgx.Tx, ownerID string, amount int64) error {
	if err := s.owners.EnsureTx(ctx, tx, ownerID); err != nil {
		return apperror.ErrPersistence(fmt.Errorf("ensure owner: %w", err))
	}
	if err := s.owners.AddPurchase(ctx, tx, ownerID, amount); err != nil {
		return apperror.ErrPersistence(fmt.Errorf("update owner totals: %w", err))
	}
	return nil
}

// Replay returns the stored acknowledgement for a processed gateway event.
// The cache is consulted first; the payment_events row is authoritative.
func (s *LedgerService) Replay(ctx context.Context, externalRef string) (*domain.Ack, error) {
	key := domain.PaymentAckCacheKey(externalRef)

	cached, err := s.ackCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("ack cache lookup failed, falling through to DB")
	}
	if cached != nil {
		ack := &domain.Ack{}
		if err := json.Unmarshal(cached, ack); err == nil {
			return ack, nil
		}
		s.log.Warn().Str("key", key).Msg("ignoring undecodable cached ack")
	}

	event, err := s.events.Get(ctx, externalRef)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get payment event: %w", err))
	}
	if event == nil || !event.Outcome.IsTerminal() || len(event.AckJSON) == 0 {
		return nil, nil
	}

	ack := &domain.Ack{}
	if err := json.Unmarshal(event.AckJSON, ack); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored ack: %w", err))
	}
	return ack, nil
}

// Wallet returns balance, owner totals and the most recent ledger entries.
func (s *LedgerService) Wallet(ctx context.Context, ownerID string, recent int) (*domain.WalletView, error) {
	if recent <= 0 {
		recent = defaultRecentEntries
	}
	if recent > maxRecentEntries {
		recent = maxRecentEntries
	}

	wallet, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	owner, err := s.owners.Get(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get owner: %w", err))
	}
	if owner == nil {
		return nil, apperror.ErrNotFound("owner")
	}
	entries, err := s.ledger.ListByOwner(ctx, ownerID, recent)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("list ledger: %w", err))
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}

	return &domain.WalletView{Owner: *owner, Wallet: *wallet, Recent: entries}, nil
}

// ListOwners returns owners ordered by total spend.
func (s *LedgerService) ListOwners(ctx context.Context, params ports.OwnerListParams) ([]domain.Owner, int64, error) {
	owners, total, err := s.owners.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrPersistence(fmt.Errorf("list owners: %w", err))
	}
	return owners, total, nil
}

func (s *LedgerService) appendEntry(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	if err := s.ledger.Append(ctx, tx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicateRef) {
			dup := apperror.ErrDuplicateEvent()
			dup.Err = err
			return dup
		}
		return apperror.ErrPersistence(fmt.Errorf("append ledger entry: %w", err))
	}
	return nil
}

// replayChange returns the change already recorded under ref, or nil.
func (s *LedgerService) replayChange(ctx context.Context, ref, ownerID string, kind domain.LedgerKind) (*domain.BalanceChange, error) {
	entry, err := s.ledger.GetByExternalRef(ctx, ref)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("lookup ledger ref: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	if entry.OwnerID != ownerID || entry.Kind != kind {
		return nil, apperror.ErrDuplicateEvent().WithDetail("external_ref", ref)
	}
	s.log.Info().Str("external_ref", ref).Str("owner_id", ownerID).Msg("replayed wallet movement")
	return changeFromEntry(*entry, true), nil
}

// duplicateChange resolves a unique-key conflict raised by a concurrent writer.
func (s *LedgerService) duplicateChange(ctx context.Context, ref, ownerID string, kind domain.LedgerKind) (*domain.BalanceChange, error) {
	prev, err := s.replayChange(ctx, ref, ownerID, kind)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, apperror.ErrDuplicateEvent().WithDetail("external_ref", ref)
	}
	return prev, nil
}

func changeFromEntry(e domain.LedgerEntry, replayed bool) *domain.BalanceChange {
	return &domain.BalanceChange{
		OwnerID:       e.OwnerID,
		ExternalRef:   e.ExternalRef,
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Entry:         e,
		Replayed:      replayed,
	}
}

// errReservedRef rejects client refs in the gateway namespace.
func errReservedRef() error {
	return apperror.Validation("external_ref must not start with " + domain.GatewayRefPrefix)
}

func validateMovement(ownerID string, amount int64) error {
	if ownerID == "" {
		return apperror.Validation("owner_id is required")
	}
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	return nil
}
