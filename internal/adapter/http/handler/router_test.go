package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vending-gateway/config"
	"vending-gateway/internal/adapter/notify"
	"vending-gateway/internal/adapter/storage/memory"
	"vending-gateway/internal/core/ports"
	"vending-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "sepay-test-key"
	testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

type testServer struct {
	router *gin.Engine
	notify *service.NotificationService
}

// newTestServer wires the full stack over the in-memory storage driver.
func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	log := zerolog.Nop()

	store := memory.NewStore()
	owners := memory.NewOwnerRepo(store)
	units := memory.NewInventoryRepo(store)
	events := memory.NewPaymentEventRepo(store)
	cache := memory.NewCache()
	transactor := memory.NewTransactor(store)

	verifier, err := service.NewVerifierService(config.PaymentConfig{
		MinAmount:    10000,
		CodePrefixes: map[string]string{"plus": "plus", "team": "team", "nap": "deposit"},
		PriceList:    map[string]int64{"plus": 50000, "team": 100000},
	})
	require.NoError(t, err)
	enc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	tokenSvc := service.NewJWTTokenService("router-test-secret", time.Hour, "vending-gateway")
	auditSvc := service.NewAuditService(memory.NewAuditRepo(store), log)
	authSvc, err := service.NewAuthService(testAPIKey, "", service.NewArgon2HashService(), tokenSvc, auditSvc, log)
	require.NoError(t, err)

	dispatcher := service.NewNotificationService([]ports.Notifier{notify.NewLogNotifier(log)}, nil, 1, 0, log)
	t.Cleanup(dispatcher.Wait)

	ledger := service.NewLedgerService(owners, memory.NewWalletRepo(store), memory.NewLedgerRepo(store), events, cache, transactor, log)
	inventory := service.NewInventoryService(units, enc, transactor, log)
	intake := service.NewIntakeService(verifier, ledger, inventory, events, cache, transactor, auditSvc, dispatcher, time.Hour, log)
	checkout := service.NewCheckoutService(verifier, ledger, inventory, transactor, nil, "0123456789", auditSvc, dispatcher, log)
	limiter := service.NewRateLimitService(memory.NewRateLimitStore(), ports.RateLimitPolicy{
		Limit: limit, Window: time.Minute, Ban: 5 * time.Minute,
	}, time.Now, log)

	router := SetupRouter(RouterDeps{
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		Intake:         intake,
		Ledger:         ledger,
		Inventory:      inventory,
		Verifier:       verifier,
		Checkout:       checkout,
		ReportingSvc:   service.NewReportingService(events, owners, units),
		Maintenance:    service.NewMaintenanceService(false, "down for maintenance", log),
		RateLimiter:    limiter,
		HealthCheckers: []ports.HealthChecker{memory.HealthCheck{}},
		AuditSvc:       auditSvc,
		MaxBodyBytes:   4096,
		Mode:           gin.TestMode,
		Logger:         log,
	})
	return &testServer{router: router, notify: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) admin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	return s.do(t, method, path, "Apikey "+testAPIKey, body)
}

func (s *testServer) clientToken(t *testing.T) string {
	t.Helper()
	w := s.admin(t, http.MethodPost, "/api/v1/admin/tokens", map[string]string{"client_id": "chat-bot"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return "Bearer " + decodeData(t, w)["token"].(string)
}

func TestRouter_WebhookRequiresAPIKey(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodPost, "/webhook/payment", "", map[string]interface{}{
		"id": "TX-1", "content": "NAP42", "transferAmount": 100000,
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	_, hasEnvelope := body["request_id"]
	assert.False(t, hasEnvelope, "webhook failures use the ack shape")
}

func TestRouter_OversizedBodies(t *testing.T) {
	s := newTestServer(t, 100)
	padding := strings.Repeat("x", 5000)

	w := s.admin(t, http.MethodPost, "/webhook/payment", map[string]interface{}{
		"id": "TX-BIG", "content": "NAP42 " + padding, "transferAmount": 100000,
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])

	w = s.admin(t, http.MethodPost, "/api/v1/admin/inventory", map[string]interface{}{
		"plan": "plus", "credentials": []string{padding},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	_, hasEnvelope := decodeBody(t, w)["request_id"]
	assert.True(t, hasEnvelope)
}

func TestRouter_PurchaseFlow(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.admin(t, http.MethodPost, "/api/v1/admin/inventory", map[string]interface{}{
		"plan": "plus", "credentials": []string{"alice:pw1", "bob:pw2"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// bank transfer for a plan delivers a unit
	payload := map[string]interface{}{"id": 5001, "content": "PLUS42", "transferAmount": 50000, "gateway": "MB"}
	first := s.do(t, http.MethodPost, "/webhook/payment", "Bearer "+testAPIKey, payload)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	ack := decodeBody(t, first)
	assert.Equal(t, true, ack["success"])
	assert.Equal(t, "delivered", ack["outcome"])
	assert.NotEmpty(t, ack["unit_id"])

	// the gateway retries: same answer, no second unit
	again := s.do(t, http.MethodPost, "/webhook/payment", "Bearer "+testAPIKey, payload)
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, first.Body.String(), again.Body.String())

	// a deposit credits the wallet
	w = s.do(t, http.MethodPost, "/webhook/payment", "Bearer "+testAPIKey, map[string]interface{}{
		"transactionId": "5002", "transferContent": "NAP42", "amount": "80000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "credited", decodeBody(t, w)["outcome"])
	assert.Equal(t, float64(80000), decodeBody(t, w)["new_balance"])

	token := s.clientToken(t)

	w = s.do(t, http.MethodGet, "/api/v1/wallets/42?recent=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	wallet := decodeData(t, w)["wallet"].(map[string]interface{})
	assert.Equal(t, float64(80000), wallet["balance"])

	// buy the remaining unit with balance
	w = s.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]string{
		"owner_id": "42", "plan": "plus", "external_ref": "buy-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	purchase := decodeData(t, w)
	assert.Contains(t, []string{"alice:pw1", "bob:pw2"}, purchase["credentials"])
	assert.Equal(t, float64(30000), purchase["balance_after"])

	// stock is now empty
	w = s.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]string{
		"owner_id": "42", "plan": "plus", "external_ref": "buy-2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/admin/inventory/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(t, w)["data"].([]interface{})
	require.Len(t, stats, 1)
	assert.Equal(t, float64(0), stats[0].(map[string]interface{})["available"])

	w = s.admin(t, http.MethodGet, "/api/v1/admin/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeData(t, w)["total"])
}

func TestRouter_WalletAPIRequiresToken(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodGet, "/api/v1/wallets/42", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the API key is not a client token
	w = s.do(t, http.MethodGet, "/api/v1/wallets/42", "Bearer "+testAPIKey, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Maintenance(t *testing.T) {
	s := newTestServer(t, 100)
	token := s.clientToken(t)

	w := s.admin(t, http.MethodPost, "/api/v1/admin/maintenance", map[string]interface{}{"enabled": true, "message": "back at 10:00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/webhook/payment", "Bearer "+testAPIKey, map[string]interface{}{
		"id": "TX-9", "content": "NAP42", "transferAmount": 100000,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["maintenance"])
	assert.Equal(t, "back at 10:00", body["message"])

	w = s.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]interface{}{"owner_id": "42", "amount": 1000})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// admin stays reachable
	w = s.admin(t, http.MethodGet, "/api/v1/admin/maintenance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["enabled"])

	w = s.admin(t, http.MethodPost, "/api/v1/admin/maintenance", map[string]interface{}{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]interface{}{"owner_id": "42", "amount": 1000})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouter_RetriedDeductChargesOnce(t *testing.T) {
	s := newTestServer(t, 100)
	token := s.clientToken(t)

	w := s.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]interface{}{"owner_id": "42", "amount": 100000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := map[string]interface{}{
		"owner_id": "42", "amount": 50000, "plan": "plus", "unit_id": "6f1c2a7e-3b7d-4a51-9c1e-2d4f8b0a9e11",
	}
	w = s.do(t, http.MethodPost, "/api/v1/wallets/deduct", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decodeData(t, w)
	assert.Equal(t, "DEDUCT-6f1c2a7e-3b7d-4a51-9c1e-2d4f8b0a9e11", first["external_ref"])

	w = s.do(t, http.MethodPost, "/api/v1/wallets/deduct", token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	again := decodeData(t, w)
	assert.Equal(t, true, again["duplicate"])
	assert.Equal(t, first["external_ref"], again["external_ref"])

	w = s.do(t, http.MethodGet, "/api/v1/wallets/42", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeData(t, w)
	assert.Equal(t, float64(50000), view["wallet"].(map[string]interface{})["balance"])
	assert.Equal(t, float64(1), view["owner"].(map[string]interface{})["total_purchases"])
}

func TestRouter_FulfilFlaggedPayment(t *testing.T) {
	s := newTestServer(t, 100)

	payload := map[string]interface{}{"id": 6001, "content": "thanh toan", "transferAmount": 50000}
	w := s.do(t, http.MethodPost, "/webhook/payment", "Bearer "+testAPIKey, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no_stock", decodeBody(t, w)["outcome"])

	w = s.do(t, http.MethodPost, "/api/v1/admin/payments/6001/fulfil", s.clientToken(t), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "fulfilment is admin only")

	w = s.admin(t, http.MethodPost, "/api/v1/admin/inventory", map[string]interface{}{
		"plan": "plus", "credentials": []string{"carol:pw3"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.admin(t, http.MethodPost, "/api/v1/admin/payments/6001/fulfil", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ack := decodeData(t, w)
	assert.Equal(t, "delivered", ack["outcome"])
	assert.NotEmpty(t, ack["unit_id"])

	w = s.admin(t, http.MethodGet, "/api/v1/admin/payments?needs_review=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeData(t, w)["total"])

	w = s.admin(t, http.MethodPost, "/api/v1/admin/payments/6001/fulfil", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.admin(t, http.MethodPost, "/api/v1/admin/payments/9999/fulfil", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RateLimitAndReset(t *testing.T) {
	s := newTestServer(t, 3)
	token := s.clientToken(t)

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodGet, "/api/v1/wallets/42", token, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := s.do(t, http.MethodGet, "/api/v1/wallets/42", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// other owners are unaffected
	w = s.do(t, http.MethodGet, "/api/v1/wallets/43", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.admin(t, http.MethodPost, "/api/v1/admin/limits/reset", map[string]string{"actor_id": "42"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/wallets/42", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_LimitsCheck(t *testing.T) {
	s := newTestServer(t, 2)
	token := s.clientToken(t)

	var last map[string]interface{}
	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/v1/limits/check", token, map[string]string{"actor_id": "777"})
		require.Equal(t, http.StatusOK, w.Code)
		last = decodeData(t, w)
	}
	assert.Equal(t, false, last["allowed"])
	assert.Equal(t, true, last["banned"])
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, 10)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Contains(t, deps, "memory")
}

func TestRouter_ConcurrentWebhookDeliversOnce(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.admin(t, http.MethodPost, "/api/v1/admin/inventory", map[string]interface{}{
		"plan": "team", "credentials": []string{"t1", "t2", "t3", "t4", "t5"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	const senders = 20
	payload := map[string]interface{}{"id": "FT-777", "content": "TEAM42", "transferAmount": 100000}
	bodies := make([]string, senders)

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := s.do(t, http.MethodPost, "/webhook/payment", "Bearer "+testAPIKey, payload)
			assert.Equal(t, http.StatusOK, rec.Code)
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	for i := 1; i < senders; i++ {
		assert.JSONEq(t, bodies[0], bodies[i])
	}

	w = s.admin(t, http.MethodGet, "/api/v1/admin/inventory?plan=team&status=sold", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeData(t, w)["total"])
}

func TestRouter_ConcurrentPurchasesNeverOverdraw(t *testing.T) {
	s := newTestServer(t, 100)
	token := s.clientToken(t)

	w := s.admin(t, http.MethodPost, "/api/v1/admin/inventory", map[string]interface{}{
		"plan": "plus", "credentials": []string{"p1", "p2", "p3", "p4", "p5"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.admin(t, http.MethodPost, "/api/v1/admin/wallets/gift", map[string]interface{}{"owner_id": "42", "amount": 120000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	const buyers = 5
	codes := make([]int, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := s.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]string{
				"owner_id": "42", "plan": "plus", "external_ref": fmt.Sprintf("buy-%d", i),
			})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	var created, refused int
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusPaymentRequired:
			refused++
		}
	}
	assert.Equal(t, 2, created)
	assert.Equal(t, 3, refused)

	w = s.do(t, http.MethodGet, "/api/v1/wallets/42", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wallet := decodeData(t, w)["wallet"].(map[string]interface{})
	assert.Equal(t, float64(20000), wallet["balance"])
}
