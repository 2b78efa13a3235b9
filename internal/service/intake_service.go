package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultAckCacheTTL = 24 * time.Hour

// Ack messages.
const (
	ackMsgRejected    = "Payment received but failed verification"
	ackMsgCredited    = "Deposit credited to wallet"
	ackMsgDelivered   = "Payment verified and account delivered"
	ackMsgStoreCredit = "Out of stock; payment credited to wallet as store credit"
	ackMsgNoStock     = "Payment accepted; delivery pending manual review"
)

// IntakeService implements ports.WebhookIntake. Every callback is processed
// in one transaction keyed by its external reference; notifications and
// audit records are emitted only after commit.
type IntakeService struct {
	verifier   ports.PaymentVerifier
	ledger     ports.WalletLedger
	inventory  ports.InventoryAllocator
	events     ports.PaymentEventRepository
	ackCache   ports.IdempotencyCache
	transactor ports.DBTransactor
	audit      ports.AuditService
	notify     ports.NotificationDispatcher
	ackTTL     time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewIntakeService creates a new IntakeService.
func NewIntakeService(
	verifier ports.PaymentVerifier,
	ledger ports.WalletLedger,
	inventory ports.InventoryAllocator,
	events ports.PaymentEventRepository,
	ackCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	notify ports.NotificationDispatcher,
	ackTTL time.Duration,
	log zerolog.Logger,
) *IntakeService {
	if ackTTL <= 0 {
		ackTTL = defaultAckCacheTTL
	}
	return &IntakeService{
		verifier:   verifier,
		ledger:     ledger,
		inventory:  inventory,
		events:     events,
		ackCache:   ackCache,
		transactor: transactor,
		audit:      audit,
		notify:     notify,
		ackTTL:     ackTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// intakeResult carries what the transaction decided to the post-commit steps.
type intakeResult struct {
	ack           *domain.Ack
	event         *domain.PaymentEvent
	unit          *domain.InventoryUnit
	action        domain.AuditAction
	notifications []domain.Notification
}

// Handle processes one gateway callback. Replays return the stored ack.
func (s *IntakeService) Handle(ctx context.Context, req ports.WebhookRequest) (*domain.Ack, error) {
	if req.ExternalRef == "" {
		return nil, apperror.Validation("transaction id is required")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	plog := logger.Payment(s.log, req.ExternalRef, req.Gateway)

	prev, err := s.ledger.Replay(ctx, req.ExternalRef)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		plog.Info().Msg("duplicate webhook, returning stored ack")
		return prev, nil
	}

	verification := s.verifier.Verify(req.Memo, req.Amount)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	event := &domain.PaymentEvent{
		ExternalRef:    req.ExternalRef,
		RawMemo:        req.Memo,
		ParsedPlan:     verification.Plan,
		ParsedOwnerRef: verification.OwnerRef,
		Amount:         req.Amount,
		Gateway:        req.Gateway,
		AccountNumber:  req.AccountNumber,
		Outcome:        domain.PaymentOutcomeProcessing,
		Reasons:        verification.Reasons,
		CreatedAt:      now,
	}

	claimed, err := s.events.Claim(ctx, dbTx, event)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("claim payment event: %w", err))
	}
	if !claimed {
		// a concurrent delivery of the same ref won; answer with its ack
		_ = dbTx.Rollback(ctx)
		return s.winnerAck(ctx, req.ExternalRef)
	}

	res, err := s.apply(ctx, dbTx, event, verification)
	if err != nil {
		return nil, err
	}

	ackJSON, err := json.Marshal(res.ack)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal ack: %w", err))
	}
	processedAt := s.now()
	event.AckJSON = ackJSON
	event.ProcessedAt = &processedAt
	if err := s.events.Complete(ctx, dbTx, event); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("complete payment event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	// Post-commit: cache, audit, notify. None of these may fail the request.
	key := domain.PaymentAckCacheKey(req.ExternalRef)
	if err := s.ackCache.Set(ctx, key, ackJSON, s.ackTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache ack")
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        "gateway:" + req.Gateway,
		Action:       res.action,
		ResourceType: "payment_event",
		ResourceID:   req.ExternalRef,
		Details:      auditDetails(event),
		IPAddress:    req.ClientIP,
		CreatedAt:    processedAt,
	})

	if len(res.notifications) > 0 {
		s.notify.Dispatch(res.notifications...)
	}

	plog.Info().
		Str("plan", string(verification.Plan)).
		Str("outcome", string(event.Outcome)).
		Int64("amount", req.Amount).
		Bool("needs_review", event.NeedsReview).
		Msg("webhook processed")

	return res.ack, nil
}

// apply runs the business branch for a claimed event inside dbTx and sets
// the event's terminal outcome.
func (s *IntakeService) apply(ctx context.Context, dbTx pgx.Tx, event *domain.PaymentEvent, v domain.VerificationResult) (*intakeResult, error) {
	ack := &domain.Ack{
		ExternalRef: event.ExternalRef,
		Plan:        v.Plan,
		OwnerRef:    v.OwnerRef,
		Amount:      event.Amount,
	}
	res := &intakeResult{ack: ack, event: event}

	switch {
	case !v.Valid:
		event.Outcome = domain.PaymentOutcomeRejected
		ack.Success = false
		ack.Message = ackMsgRejected
		ack.Reasons = failedReasons(v.Reasons)
		res.action = domain.AuditActionPaymentRejected
		res.notifications = rejectedNotifications(event, ack.Reasons)

	case v.Plan == domain.PlanDeposit:
		change, err := s.ledger.DepositTx(ctx, dbTx, ports.DepositRequest{
			OwnerID:     *v.OwnerRef,
			Amount:      event.Amount,
			ExternalRef: domain.GatewayRef(event.ExternalRef),
			Method:      domain.MethodGateway,
		})
		if err != nil {
			return nil, err
		}
		event.Outcome = domain.PaymentOutcomeCredited
		ack.Success = true
		ack.Message = ackMsgCredited
		ack.NewBalance = &change.BalanceAfter
		res.action = domain.AuditActionDeposit
		res.notifications = depositNotifications(event, *v.OwnerRef, change.BalanceAfter)

	default:
		if err := s.sell(ctx, dbTx, res, v); err != nil {
			return nil, err
		}
	}

	event.Reasons = v.Reasons
	ack.Outcome = string(event.Outcome)
	return res, nil
}

// sell reserves a unit for a verified purchase. Without stock the amount
// becomes store credit when the buyer is known, else the event is flagged.
func (s *IntakeService) sell(ctx context.Context, dbTx pgx.Tx, res *intakeResult, v domain.VerificationResult) error {
	event, ack := res.event, res.ack

	unit, err := s.inventory.ReserveTx(ctx, dbTx, ports.ReserveRequest{
		Plan:        v.Plan,
		BuyerRef:    v.OwnerRef,
		Price:       event.Amount,
		ExternalRef: domain.GatewayRef(event.ExternalRef),
	})
	switch {
	case err == nil:
		if v.OwnerRef != nil {
			if err := s.ledger.RecordPurchase(ctx, dbTx, *v.OwnerRef, event.Amount); err != nil {
				return err
			}
		}
		event.Outcome = domain.PaymentOutcomeDelivered
		event.UnitID = &unit.ID
		ack.Success = true
		ack.Message = ackMsgDelivered
		ack.UnitID = unit.ID.String()
		res.unit = unit
		res.action = domain.AuditActionDelivery
		res.notifications = deliveryNotifications(event, unit)
		return nil

	case !apperror.HasCode(err, apperror.CodeOutOfStock):
		return err
	}

	if v.OwnerRef != nil {
		change, err := s.ledger.DepositTx(ctx, dbTx, ports.DepositRequest{
			OwnerID:     *v.OwnerRef,
			Amount:      event.Amount,
			ExternalRef: domain.GatewayRef(event.ExternalRef),
			Method:      domain.MethodStoreCredit,
		})
		if err != nil {
			return err
		}
		event.Outcome = domain.PaymentOutcomeStoreCredit
		ack.Success = true
		ack.Message = ackMsgStoreCredit
		ack.NewBalance = &change.BalanceAfter
		res.action = domain.AuditActionStoreCredit
		res.notifications = storeCreditNotifications(event, *v.OwnerRef, change.BalanceAfter)
		return nil
	}

	event.Outcome = domain.PaymentOutcomeNoStock
	event.NeedsReview = true
	ack.Success = true
	ack.Message = ackMsgNoStock
	res.action = domain.AuditActionNoStock
	res.notifications = noStockNotifications(event)
	return nil
}

// Fulfil delivers a unit for an event parked as no_stock once stock is
// back. The reservation is keyed by the event's gateway ref, so concurrent
// or repeated calls sell at most one unit.
func (s *IntakeService) Fulfil(ctx context.Context, req ports.FulfilRequest) (*domain.Ack, error) {
	if req.ExternalRef == "" {
		return nil, apperror.Validation("external_ref is required")
	}

	event, err := s.events.Get(ctx, req.ExternalRef)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get payment event: %w", err))
	}
	if event == nil {
		return nil, apperror.ErrNotFound("payment event")
	}
	if event.Outcome == domain.PaymentOutcomeDelivered {
		return nil, apperror.ErrDuplicateEvent().WithDetail("external_ref", req.ExternalRef)
	}
	if event.Outcome != domain.PaymentOutcomeNoStock || !event.NeedsReview {
		return nil, apperror.Validation("payment event is not awaiting fulfilment").
			WithDetail("outcome", string(event.Outcome))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	unit, err := s.inventory.ReserveTx(ctx, dbTx, ports.ReserveRequest{
		Plan:        event.ParsedPlan,
		BuyerRef:    event.ParsedOwnerRef,
		Price:       event.Amount,
		ExternalRef: domain.GatewayRef(event.ExternalRef),
	})
	if err != nil {
		return nil, err
	}
	if event.ParsedOwnerRef != nil {
		if err := s.ledger.RecordPurchase(ctx, dbTx, *event.ParsedOwnerRef, event.Amount); err != nil {
			return nil, err
		}
	}

	ack := &domain.Ack{
		Success:     true,
		Message:     ackMsgDelivered,
		Outcome:     string(domain.PaymentOutcomeDelivered),
		ExternalRef: event.ExternalRef,
		Plan:        event.ParsedPlan,
		OwnerRef:    event.ParsedOwnerRef,
		UnitID:      unit.ID.String(),
		Amount:      event.Amount,
	}
	ackJSON, err := json.Marshal(ack)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal ack: %w", err))
	}
	processedAt := s.now()
	event.Outcome = domain.PaymentOutcomeDelivered
	event.UnitID = &unit.ID
	event.NeedsReview = false
	event.AckJSON = ackJSON
	event.ProcessedAt = &processedAt
	if err := s.events.Complete(ctx, dbTx, event); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("complete payment event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	key := domain.PaymentAckCacheKey(event.ExternalRef)
	if err := s.ackCache.Set(ctx, key, ackJSON, s.ackTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache ack")
	}

	actor := req.Actor
	if actor == "" {
		actor = "admin"
	}
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        actor,
		Action:       domain.AuditActionFulfil,
		ResourceType: "payment_event",
		ResourceID:   event.ExternalRef,
		Details:      auditDetails(event),
		IPAddress:    req.ClientIP,
		CreatedAt:    processedAt,
	})
	s.notify.Dispatch(deliveryNotifications(event, unit)...)

	flog := logger.Payment(s.log, event.ExternalRef, event.Gateway)
	flog.Info().
		Str("plan", string(event.ParsedPlan)).
		Str("unit_id", unit.ID.String()).
		Msg("flagged payment fulfilled")

	return ack, nil
}

// winnerAck re-reads the ack written by the delivery that claimed the ref.
func (s *IntakeService) winnerAck(ctx context.Context, ref string) (*domain.Ack, error) {
	ack, err := s.ledger.Replay(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ack == nil {
		return nil, apperror.ErrDuplicateEvent().WithDetail("external_ref", ref)
	}
	s.log.Info().Str("external_ref", ref).Msg("concurrent duplicate webhook, returning winner ack")
	return ack, nil
}

func failedReasons(reasons []string) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if len(r) >= 4 && r[:4] == "ok: " {
			continue
		}
		out = append(out, r)
	}
	return out
}

func auditDetails(e *domain.PaymentEvent) string {
	details := map[string]string{
		"outcome": string(e.Outcome),
		"plan":    string(e.ParsedPlan),
		"amount":  strconv.FormatInt(e.Amount, 10),
	}
	if e.ParsedOwnerRef != nil {
		details["owner_ref"] = *e.ParsedOwnerRef
	}
	if e.UnitID != nil {
		details["unit_id"] = e.UnitID.String()
	}
	if e.NeedsReview {
		details["needs_review"] = "true"
	}
	b, _ := json.Marshal(details)
	return string(b)
}
