package service

import (
	"context"
	"fmt"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CheckoutService implements ports.CheckoutService.
type CheckoutService struct {
	verifier   ports.PaymentVerifier
	ledger     ports.WalletLedger
	inventory  ports.InventoryAllocator
	transactor ports.DBTransactor
	qr         ports.QRProvider
	account    string
	audit      ports.AuditService
	notify     ports.NotificationDispatcher
	log        zerolog.Logger
}

// NewCheckoutService creates a new CheckoutService. qr may be nil.
func NewCheckoutService(
	verifier ports.PaymentVerifier,
	ledger ports.WalletLedger,
	inventory ports.InventoryAllocator,
	transactor ports.DBTransactor,
	qr ports.QRProvider,
	account string,
	audit ports.AuditService,
	notify ports.NotificationDispatcher,
	log zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		verifier:   verifier,
		ledger:     ledger,
		inventory:  inventory,
		transactor: transactor,
		qr:         qr,
		account:    account,
		audit:      audit,
		notify:     notify,
		log:        log,
	}
}

// Instructions returns the memo code, amount and QR for paying plan by bank
// transfer. Deposits have no fixed amount.
func (s *CheckoutService) Instructions(ctx context.Context, ownerID string, plan domain.Plan) (*domain.CheckoutInstructions, error) {
	var amount int64
	if plan != domain.PlanDeposit {
		price, ok := s.verifier.Price(plan)
		if !ok || !plan.IsSellable() {
			return nil, apperror.Validation(fmt.Sprintf("plan %q is not for sale", plan))
		}
		amount = price
	}

	code, err := s.verifier.CodeFor(plan, ownerID)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.GetOrCreate(ctx, ownerID); err != nil {
		return nil, err
	}

	out := &domain.CheckoutInstructions{
		OwnerID: ownerID,
		Plan:    plan,
		Code:    code,
		Amount:  amount,
		Account: s.account,
	}

	if s.qr != nil {
		img, err := s.qr.Generate(ctx, domain.QRRequest{Account: s.account, Amount: amount, Code: code})
		if err != nil {
			s.log.Warn().Err(err).Str("owner_id", ownerID).Str("plan", string(plan)).Msg("qr generation failed")
		} else {
			out.QR = img
		}
	}

	return out, nil
}

// BuyWithBalance reserves a unit and debits its price in one transaction.
// Nothing is debited when the plan is out of stock. Repeating a request
// with the same external ref returns the original purchase.
func (s *CheckoutService) BuyWithBalance(ctx context.Context, req ports.PurchaseRequest) (*domain.Purchase, error) {
	if req.OwnerID == "" {
		return nil, apperror.Validation("owner_id is required")
	}
	if !req.Plan.IsSellable() {
		return nil, apperror.Validation(fmt.Sprintf("plan %q is not for sale", req.Plan))
	}
	price, ok := s.verifier.Price(req.Plan)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("plan %q has no price", req.Plan))
	}
	if req.ExternalRef == "" {
		req.ExternalRef = "BUY-" + uuid.NewString()
	}
	if domain.IsGatewayRef(req.ExternalRef) {
		return nil, errReservedRef()
	}

	if prev, err := s.replay(ctx, req); prev != nil || err != nil {
		return prev, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	owner := req.OwnerID
	unit, err := s.inventory.ReserveTx(ctx, dbTx, ports.ReserveRequest{
		Plan:        req.Plan,
		BuyerRef:    &owner,
		Price:       price,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicateEvent) {
			_ = dbTx.Rollback(ctx)
			return s.duplicate(ctx, req)
		}
		return nil, err
	}

	var change *domain.BalanceChange
	if price > 0 {
		plan := req.Plan
		unitID := unit.ID.String()
		change, err = s.ledger.DeductTx(ctx, dbTx, ports.DeductRequest{
			OwnerID:     owner,
			Amount:      price,
			ExternalRef: req.ExternalRef,
			Method:      domain.MethodBalance,
			Plan:        &plan,
			UnitID:      &unitID,
		})
		if err != nil {
			if apperror.HasCode(err, apperror.CodeDuplicateEvent) {
				_ = dbTx.Rollback(ctx)
				return s.duplicate(ctx, req)
			}
			return nil, err
		}
	} else {
		if err := s.ledger.RecordPurchase(ctx, dbTx, owner, 0); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	if change == nil {
		change, err = s.unchangedBalance(ctx, owner, req.ExternalRef)
		if err != nil {
			return nil, err
		}
	}

	purchase := &domain.Purchase{
		Unit:        *unit,
		Credentials: unit.Credentials,
		Change:      *change,
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        "owner:" + owner,
		Action:       domain.AuditActionPurchase,
		ResourceType: "inventory_unit",
		ResourceID:   unit.ID.String(),
		Details:      fmt.Sprintf(`{"plan":%q,"price":%d,"external_ref":%q}`, req.Plan, price, req.ExternalRef),
		CreatedAt:    time.Now().UTC(),
	})
	s.notify.Dispatch(purchaseNotifications(purchase, owner)...)

	s.log.Info().
		Str("owner_id", owner).
		Str("plan", string(req.Plan)).
		Str("unit_id", unit.ID.String()).
		Str("external_ref", req.ExternalRef).
		Int64("price", price).
		Msg("purchase with wallet balance")

	return purchase, nil
}

// replay returns the purchase already recorded under the request's ref.
func (s *CheckoutService) replay(ctx context.Context, req ports.PurchaseRequest) (*domain.Purchase, error) {
	unit, err := s.inventory.Lookup(ctx, req.ExternalRef)
	if err != nil || unit == nil {
		return nil, err
	}
	if unit.BuyerRef == nil || *unit.BuyerRef != req.OwnerID {
		return nil, apperror.ErrDuplicateEvent().WithDetail("external_ref", req.ExternalRef)
	}
	change, err := s.unchangedBalance(ctx, req.OwnerID, req.ExternalRef)
	if err != nil {
		return nil, err
	}
	change.Replayed = true
	if unit.Price != nil {
		change.Amount = -*unit.Price
	}
	s.log.Info().Str("external_ref", req.ExternalRef).Str("owner_id", req.OwnerID).Msg("replayed purchase")
	return &domain.Purchase{Unit: *unit, Credentials: unit.Credentials, Change: *change, Replay: true}, nil
}

// duplicate resolves a ref taken by a concurrent purchase.
func (s *CheckoutService) duplicate(ctx context.Context, req ports.PurchaseRequest) (*domain.Purchase, error) {
	prev, err := s.replay(ctx, req)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, apperror.ErrDuplicateEvent().WithDetail("external_ref", req.ExternalRef)
	}
	return prev, nil
}

func (s *CheckoutService) unchangedBalance(ctx context.Context, ownerID, ref string) (*domain.BalanceChange, error) {
	wallet, err := s.ledger.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceChange{
		OwnerID:       ownerID,
		ExternalRef:   ref,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance,
	}, nil
}
