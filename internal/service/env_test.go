package service

import (
	"context"
	"testing"
	"time"

	"vending-gateway/config"
	"vending-gateway/internal/adapter/storage/memory"
	"vending-gateway/internal/core/domain"

	"github.com/stretchr/testify/require"
)

// testEnv wires the services over the in-memory storage driver.
type testEnv struct {
	store      *memory.Store
	owners     *memory.OwnerRepo
	wallets    *memory.WalletRepo
	ledgerRepo *memory.LedgerRepo
	units      *memory.InventoryRepo
	events     *memory.PaymentEventRepo
	cache      *memory.Cache
	transactor *memory.Transactor

	verifier  *VerifierService
	ledger    *LedgerService
	inventory *InventoryService
	intake    *IntakeService
	checkout  *CheckoutService
	audit     *recordingAudit
	notify    *recordingDispatcher
}

func newTestEnv(t *testing.T, mutate func(*config.PaymentConfig)) *testEnv {
	t.Helper()

	store := memory.NewStore()
	env := &testEnv{
		store:      store,
		owners:     memory.NewOwnerRepo(store),
		wallets:    memory.NewWalletRepo(store),
		ledgerRepo: memory.NewLedgerRepo(store),
		units:      memory.NewInventoryRepo(store),
		events:     memory.NewPaymentEventRepo(store),
		cache:      memory.NewCache(),
		verifier:   newTestVerifier(t, mutate),
		audit:      &recordingAudit{},
		notify:     &recordingDispatcher{},
	}
	env.transactor = memory.NewTransactor(store)
	transactor := env.transactor

	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	log := newTestLogger()
	env.ledger = NewLedgerService(env.owners, env.wallets, env.ledgerRepo, env.events, env.cache, transactor, log)
	env.inventory = NewInventoryService(env.units, enc, transactor, log)
	env.intake = NewIntakeService(env.verifier, env.ledger, env.inventory, env.events, env.cache,
		transactor, env.audit, env.notify, time.Hour, log)
	env.checkout = NewCheckoutService(env.verifier, env.ledger, env.inventory, transactor, nil,
		"0123456789", env.audit, env.notify, log)
	return env
}

func (e *testEnv) stock(t *testing.T, plan domain.Plan, creds ...string) {
	t.Helper()
	n, err := e.inventory.Import(context.Background(), plan, creds)
	require.NoError(t, err)
	require.Equal(t, len(creds), n)
}

func (e *testEnv) fund(t *testing.T, ownerID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Deposit(context.Background(), depositReq(ownerID, amount, ""))
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, ownerID string) int64 {
	t.Helper()
	w, err := e.wallets.Get(context.Background(), ownerID)
	require.NoError(t, err)
	if w == nil {
		return 0
	}
	return w.Balance
}

// requireLedgerInvariant checks balance == sum of signed ledger amounts.
func (e *testEnv) requireLedgerInvariant(t *testing.T, ownerID string) {
	t.Helper()
	sum, err := e.ledgerRepo.SumByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	require.Equal(t, sum, e.balance(t, ownerID), "balance must equal ledger sum for %s", ownerID)
	require.GreaterOrEqual(t, e.balance(t, ownerID), int64(0))
}
