package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"vending-gateway/config"
	"vending-gateway/internal/adapter/storage/memory"
	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/internal/core/ports/mocks"
	"vending-gateway/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func webhook(ref, memo string, amount int64) ports.WebhookRequest {
	return ports.WebhookRequest{
		ExternalRef:   ref,
		Memo:          memo,
		Amount:        amount,
		Gateway:       "sepay",
		AccountNumber: "0123456789",
		ClientIP:      "10.0.0.1",
	}
}

func TestIntake_DepositCreditsWallet(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ack, err := env.intake.Handle(ctx, webhook("TX-1001", "NAP6726648486", 100000))
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "credited", ack.Outcome)
	require.NotNil(t, ack.NewBalance)
	assert.Equal(t, int64(100000), *ack.NewBalance)

	assert.Equal(t, int64(100000), env.balance(t, "6726648486"))
	env.requireLedgerInvariant(t, "6726648486")

	entry, err := env.ledgerRepo.GetByExternalRef(ctx, domain.GatewayRef("TX-1001"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.MethodGateway, entry.Method)

	event, err := env.events.Get(ctx, "TX-1001")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentOutcomeCredited, event.Outcome)
	assert.NotNil(t, event.ProcessedAt)

	assert.Equal(t, []domain.AuditAction{domain.AuditActionDeposit}, env.audit.actions())
	sent := env.notify.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "6726648486", sent[0].Recipient)
	assert.Equal(t, domain.AdminRecipient, sent[1].Recipient)
}

func TestIntake_PurchaseDeliversUnit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.stock(t, domain.PlanPlus, "plus-acct|pw|2fa")

	ack, err := env.intake.Handle(ctx, webhook("TX-2001", "PLUS123456", 50000))
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "delivered", ack.Outcome)
	assert.Equal(t, domain.PlanPlus, ack.Plan)
	assert.NotEmpty(t, ack.UnitID)

	unit, err := env.units.GetByExternalRef(ctx, domain.GatewayRef("TX-2001"))
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, domain.UnitStatusSold, unit.Status)
	assert.Equal(t, "123456", *unit.BuyerRef)
	assert.Equal(t, int64(50000), *unit.Price)

	owner, err := env.owners.Get(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), owner.TotalSpent)
	assert.Equal(t, int64(0), env.balance(t, "123456"), "purchase does not touch the wallet")

	var buyerText string
	for _, n := range env.notify.all() {
		assert.NotContains(t, n.Fields, "credentials")
		for _, v := range n.Fields {
			assert.NotContains(t, v, "plus-acct")
		}
		if n.Recipient == "123456" {
			buyerText = n.Text
		} else {
			assert.NotContains(t, n.Text, "plus-acct", "admin text must not carry credentials")
		}
	}
	assert.Contains(t, buyerText, "plus-acct|pw|2fa")
}

func TestIntake_AmountInference(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.stock(t, domain.PlanTeam, "team-acct")

	ack, err := env.intake.Handle(ctx, webhook("TX-3001", "chuyen tien mua hang", 120000))
	require.NoError(t, err)
	assert.Equal(t, "delivered", ack.Outcome)
	assert.Equal(t, domain.PlanTeam, ack.Plan)
	assert.Nil(t, ack.OwnerRef)
}

func TestIntake_BelowMinimumRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ack, err := env.intake.Handle(ctx, webhook("TX-4001", "NAP42", 5000))
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Equal(t, "rejected", ack.Outcome)
	require.NotEmpty(t, ack.Reasons)
	for _, r := range ack.Reasons {
		assert.False(t, strings.HasPrefix(r, "ok: "))
	}
	assert.Contains(t, ack.Reasons[0], "below minimum")

	assert.Equal(t, int64(0), env.balance(t, "42"))
	assert.Equal(t, []domain.AuditAction{domain.AuditActionPaymentRejected}, env.audit.actions())
}

func TestIntake_DuplicateDeliveryReturnsSameAck(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.intake.Handle(ctx, webhook("TX-5001", "NAP42", 20000))
	require.NoError(t, err)
	second, err := env.intake.Handle(ctx, webhook("TX-5001", "NAP42", 20000))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(20000), env.balance(t, "42"))
	assert.Len(t, env.audit.actions(), 1, "replays are not audited again")
}

func TestIntake_ReplayAfterCacheLoss(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.intake.Handle(ctx, webhook("TX-5002", "NAP42", 20000))
	require.NoError(t, err)

	// a second instance sharing the store but not the cache
	log := newTestLogger()
	freshLedger := NewLedgerService(env.owners, env.wallets, env.ledgerRepo, env.events, memory.NewCache(), env.transactor, log)
	fresh := NewIntakeService(env.verifier, freshLedger, env.inventory, env.events, memory.NewCache(),
		env.transactor, env.audit, env.notify, time.Hour, log)
	second, err := fresh.Handle(ctx, webhook("TX-5002", "NAP42", 20000))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(20000), env.balance(t, "42"))
}

func TestIntake_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	acks := make([]*domain.Ack, 10)
	for i := range acks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ack, err := env.intake.Handle(ctx, webhook("TX-6001", "NAP42", 30000))
			assert.NoError(t, err)
			acks[i] = ack
		}(i)
	}
	wg.Wait()

	for _, a := range acks {
		require.NotNil(t, a)
		assert.Equal(t, acks[0], a)
	}
	assert.Equal(t, int64(30000), env.balance(t, "42"))
	env.requireLedgerInvariant(t, "42")
}

func TestIntake_OutOfStockWithOwnerBecomesStoreCredit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ack, err := env.intake.Handle(ctx, webhook("TX-7001", "TEAM42", 100000))
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "store_credit", ack.Outcome)
	require.NotNil(t, ack.NewBalance)
	assert.Equal(t, int64(100000), *ack.NewBalance)

	entry, err := env.ledgerRepo.GetByExternalRef(ctx, domain.GatewayRef("TX-7001"))
	require.NoError(t, err)
	assert.Equal(t, domain.MethodStoreCredit, entry.Method)
	env.requireLedgerInvariant(t, "42")
}

func TestIntake_GatewayIDMatchingWalletRefStillCredits(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.ledger.Deposit(ctx, depositReq("6726648486", 20000, "92704"))
	require.NoError(t, err)

	ack, err := env.intake.Handle(ctx, webhook("92704", "NAP6726648486", 100000))
	require.NoError(t, err)
	assert.Equal(t, "credited", ack.Outcome)
	require.NotNil(t, ack.NewBalance)
	assert.Equal(t, int64(120000), *ack.NewBalance)

	again, err := env.intake.Handle(ctx, webhook("92704", "NAP6726648486", 100000))
	require.NoError(t, err)
	assert.Equal(t, ack, again)

	assert.Equal(t, int64(120000), env.balance(t, "6726648486"))
	env.requireLedgerInvariant(t, "6726648486")
	event, err := env.events.Get(ctx, "92704")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.PaymentOutcomeCredited, event.Outcome)
}

func TestIntake_OutOfStockWithoutOwnerNeedsReview(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ack, err := env.intake.Handle(ctx, webhook("TX-7002", "thanh toan", 50000))
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "no_stock", ack.Outcome)

	event, err := env.events.Get(ctx, "TX-7002")
	require.NoError(t, err)
	assert.True(t, event.NeedsReview)

	sent := env.notify.all()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.AdminRecipient, sent[0].Recipient)
	assert.Equal(t, domain.NotificationNoStock, sent[0].Kind)
}

func TestIntake_FulfilFlaggedPayment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.intake.Handle(ctx, webhook("TX-7003", "thanh toan", 50000))
	require.NoError(t, err)
	flagged, err := env.events.Get(ctx, "TX-7003")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentOutcomeNoStock, flagged.Outcome)

	// still no stock: the event stays flagged
	_, err = env.intake.Fulfil(ctx, ports.FulfilRequest{ExternalRef: "TX-7003"})
	assert.True(t, apperror.HasCode(err, apperror.CodeOutOfStock))
	flagged, err = env.events.Get(ctx, "TX-7003")
	require.NoError(t, err)
	assert.True(t, flagged.NeedsReview)

	env.stock(t, flagged.ParsedPlan, "carol:pw3")
	ack, err := env.intake.Fulfil(ctx, ports.FulfilRequest{ExternalRef: "TX-7003", Actor: "admin", ClientIP: "10.0.0.9"})
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "delivered", ack.Outcome)
	require.NotEmpty(t, ack.UnitID)

	event, err := env.events.Get(ctx, "TX-7003")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentOutcomeDelivered, event.Outcome)
	assert.False(t, event.NeedsReview)
	require.NotNil(t, event.UnitID)
	assert.Equal(t, ack.UnitID, event.UnitID.String())

	unit, err := env.units.GetByExternalRef(ctx, domain.GatewayRef("TX-7003"))
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, domain.UnitStatusSold, unit.Status)

	assert.Contains(t, env.audit.actions(), domain.AuditActionFulfil)
	last := env.notify.all()
	assert.Equal(t, domain.NotificationDelivery, last[len(last)-1].Kind)

	// the gateway retrying the original callback now sees the delivery
	replay, err := env.intake.Handle(ctx, webhook("TX-7003", "thanh toan", 50000))
	require.NoError(t, err)
	assert.Equal(t, ack, replay)

	// a second fulfil never sells another unit
	env.stock(t, flagged.ParsedPlan, "dave:pw4")
	_, err = env.intake.Fulfil(ctx, ports.FulfilRequest{ExternalRef: "TX-7003"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateEvent))
	stats, err := env.units.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Available)
}

func TestIntake_FulfilRejectsUnflaggedEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.intake.Fulfil(ctx, ports.FulfilRequest{ExternalRef: "TX-404"})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = env.intake.Handle(ctx, webhook("TX-7004", "NAP6726648486", 100000))
	require.NoError(t, err)
	_, err = env.intake.Fulfil(ctx, ports.FulfilRequest{ExternalRef: "TX-7004"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, int64(100000), env.balance(t, "6726648486"))

	_, err = env.intake.Fulfil(ctx, ports.FulfilRequest{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestIntake_ExcludedKeyword(t *testing.T) {
	env := newTestEnv(t, func(c *config.PaymentConfig) {
		c.ExcludedKeywords = []string{"GA"}
	})
	ctx := context.Background()

	ack, err := env.intake.Handle(ctx, webhook("TX-8001", "NAP42 GA", 20000))
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Contains(t, ack.Reasons, "excluded keyword: GA")

	ack, err = env.intake.Handle(ctx, webhook("TX-8002", "NAP42 GAME", 20000))
	require.NoError(t, err)
	assert.True(t, ack.Success, "exclusion is whole-word")
}

func TestIntake_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.intake.Handle(ctx, webhook("", "NAP42", 20000))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = env.intake.Handle(ctx, webhook("TX-1", "NAP42", 0))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestIntake_ClaimFailureIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	events := mocks.NewMockPaymentEventRepository(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)
	svc := NewIntakeService(newTestVerifier(t, nil), ledger, mocks.NewMockInventoryAllocator(ctrl), events,
		mocks.NewMockIdempotencyCache(ctrl), transactor, mocks.NewMockAuditService(ctrl),
		mocks.NewMockNotificationDispatcher(ctrl), 0, newTestLogger())

	ctx := context.Background()
	tx := &mockTx{}
	ledger.EXPECT().Replay(ctx, "TX-1").Return(nil, nil)
	transactor.EXPECT().Begin(ctx).Return(tx, nil)
	events.EXPECT().Claim(ctx, tx, gomock.Any()).Return(false, errors.New("connection reset"))

	_, err := svc.Handle(ctx, webhook("TX-1", "NAP42", 20000))
	assert.True(t, apperror.HasCode(err, apperror.CodePersistenceFailure))
}

func TestIntake_LostClaimWithoutAckIsDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	events := mocks.NewMockPaymentEventRepository(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)
	svc := NewIntakeService(newTestVerifier(t, nil), ledger, mocks.NewMockInventoryAllocator(ctrl), events,
		mocks.NewMockIdempotencyCache(ctrl), transactor, mocks.NewMockAuditService(ctrl),
		mocks.NewMockNotificationDispatcher(ctrl), 0, newTestLogger())

	ctx := context.Background()
	tx := &mockTx{}
	gomock.InOrder(
		ledger.EXPECT().Replay(ctx, "TX-1").Return(nil, nil),
		transactor.EXPECT().Begin(ctx).Return(tx, nil),
		events.EXPECT().Claim(ctx, tx, gomock.Any()).Return(false, nil),
		ledger.EXPECT().Replay(ctx, "TX-1").Return(nil, nil),
	)

	_, err := svc.Handle(ctx, webhook("TX-1", "NAP42", 20000))
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateEvent))
}

func TestIntake_ManyBuyersLimitedStock(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.stock(t, domain.PlanPlus, "u1", "u2", "u3")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.intake.Handle(ctx, webhook(fmt.Sprintf("TX-9%03d", i), fmt.Sprintf("PLUS%d", 100+i), 50000))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	delivered, _, err := env.events.List(ctx, ports.PaymentEventListParams{Outcome: outcomePtr(domain.PaymentOutcomeDelivered)})
	require.NoError(t, err)
	credited, _, err := env.events.List(ctx, ports.PaymentEventListParams{Outcome: outcomePtr(domain.PaymentOutcomeStoreCredit)})
	require.NoError(t, err)
	assert.Len(t, delivered, 3)
	assert.Len(t, credited, 5)
}

func outcomePtr(o domain.PaymentOutcome) *domain.PaymentOutcome { return &o }
