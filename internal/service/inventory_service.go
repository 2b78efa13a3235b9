package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// maxImportBatch bounds one admin import request.
const maxImportBatch = 1000

// InventoryService implements ports.InventoryAllocator. Credentials are
// stored encrypted and only decrypted for the buyer of a unit.
type InventoryService struct {
	repo       ports.InventoryRepository
	encSvc     ports.EncryptionService
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(
	repo ports.InventoryRepository,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *InventoryService {
	return &InventoryService{
		repo:       repo,
		encSvc:     encSvc,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Reserve sells the oldest available unit of a plan in its own transaction.
func (s *InventoryService) Reserve(ctx context.Context, req ports.ReserveRequest) (*domain.InventoryUnit, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	unit, err := s.ReserveTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}
	return unit, nil
}

// ReserveTx sells one unit inside the caller's transaction. It returns
// INV_001 without side effects when nothing is available.
func (s *InventoryService) ReserveTx(ctx context.Context, tx pgx.Tx, req ports.ReserveRequest) (*domain.InventoryUnit, error) {
	if !req.Plan.IsSellable() {
		return nil, apperror.Validation(fmt.Sprintf("plan %q is not sellable", req.Plan))
	}
	if req.ExternalRef == "" {
		return nil, apperror.Validation("external_ref is required")
	}

	unit, err := s.repo.ReserveNext(ctx, tx, req)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateRef) {
			dup := apperror.ErrDuplicateEvent().WithDetail("external_ref", req.ExternalRef)
			dup.Err = err
			return nil, dup
		}
		return nil, apperror.ErrPersistence(fmt.Errorf("reserve unit: %w", err))
	}
	if unit == nil {
		return nil, apperror.ErrOutOfStock(string(req.Plan))
	}

	creds, err := s.Reveal(unit)
	if err != nil {
		return nil, err
	}
	unit.Credentials = creds

	s.log.Info().
		Str("unit_id", unit.ID.String()).
		Str("plan", string(unit.Plan)).
		Str("external_ref", req.ExternalRef).
		Msg("inventory unit reserved")

	return unit, nil
}

// Import encrypts and stores new units. Blank lines are skipped.
func (s *InventoryService) Import(ctx context.Context, plan domain.Plan, credentials []string) (int, error) {
	if !plan.IsSellable() {
		return 0, apperror.Validation(fmt.Sprintf("plan %q is not sellable", plan))
	}
	if len(credentials) > maxImportBatch {
		return 0, apperror.Validation(fmt.Sprintf("at most %d units per import", maxImportBatch))
	}

	now := s.now()
	units := make([]domain.InventoryUnit, 0, len(credentials))
	for _, c := range credentials {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		enc, err := s.encSvc.Encrypt(c)
		if err != nil {
			return 0, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt credentials: %w", err))
		}
		units = append(units, domain.InventoryUnit{
			ID:                   uuid.New(),
			Plan:                 plan,
			EncryptedCredentials: enc,
			Status:               domain.UnitStatusAvailable,
			// keep batch order for FIFO reservation
			CreatedAt: now.Add(time.Duration(len(units)) * time.Microsecond),
		})
	}
	if len(units) == 0 {
		return 0, apperror.Validation("no credentials to import")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.repo.CreateBatch(ctx, dbTx, units); err != nil {
		return 0, apperror.ErrPersistence(fmt.Errorf("create units: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("plan", string(plan)).Int("count", len(units)).Msg("inventory imported")
	return len(units), nil
}

// Stats returns stock and revenue per plan.
func (s *InventoryService) Stats(ctx context.Context) ([]domain.InventoryStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("inventory stats: %w", err))
	}
	return stats, nil
}

// List returns units without credentials.
func (s *InventoryService) List(ctx context.Context, params ports.InventoryListParams) ([]domain.InventoryUnit, int64, error) {
	units, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrPersistence(fmt.Errorf("list units: %w", err))
	}
	return units, total, nil
}

// Lookup returns the unit sold under externalRef with decrypted credentials.
func (s *InventoryService) Lookup(ctx context.Context, externalRef string) (*domain.InventoryUnit, error) {
	unit, err := s.repo.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("lookup unit: %w", err))
	}
	if unit == nil {
		return nil, nil
	}
	creds, err := s.Reveal(unit)
	if err != nil {
		return nil, err
	}
	unit.Credentials = creds
	return unit, nil
}

// Reveal decrypts the credentials of a unit.
func (s *InventoryService) Reveal(unit *domain.InventoryUnit) (string, error) {
	creds, err := s.encSvc.Decrypt(unit.EncryptedCredentials)
	if err != nil {
		return "", apperror.ErrEncryptionFailure(fmt.Errorf("decrypt unit %s: %w", unit.ID, err))
	}
	return creds, nil
}
