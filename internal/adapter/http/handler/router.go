package handler

import (
	"vending-gateway/internal/adapter/http/middleware"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TokenSvc       ports.TokenService
	Intake         ports.WebhookIntake
	Ledger         ports.WalletLedger
	Inventory      ports.InventoryAllocator
	Verifier       ports.PaymentVerifier
	Checkout       ports.CheckoutService
	ReportingSvc   ports.ReportingService
	Maintenance    ports.MaintenanceGate
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	MaxBodyBytes   int64
	APIDocument    []byte // nil = /swagger/spec returns 404
	Mode           string // gin mode; defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: storage + redis)
	r.GET("/health", HealthCheck(deps.Maintenance, deps.HealthCheckers...))

	docs := NewDocsHandler(deps.APIDocument)
	r.GET("/swagger", docs.Viewer)
	r.GET("/swagger/spec", docs.Document)

	rl := func() gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, deps.Logger)
	}
	gate := middleware.Maintenance(deps.Maintenance)

	// --- Gateway callbacks (API key, ack-shaped errors) ---
	paymentHandler := NewPaymentHandler(deps.Intake)
	r.POST("/webhook/payment",
		middleware.MaxBodySize(maxBody, response.AckError),
		middleware.APIKeyAuth(deps.AuthSvc, response.AckError, deps.Logger),
		gate,
		paymentHandler.Webhook,
	)

	v1 := r.Group("/api/v1", middleware.MaxBodySize(maxBody, response.Error))

	// --- Wallet API (client token) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.Ledger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout)
	limitsHandler := NewLimitsHandler(deps.RateLimiter)

	client := v1.Group("", jwtAuth, gate)
	{
		client.GET("/wallets/:owner_id", rl(), walletHandler.Get)
		client.POST("/wallets/deposit", rl(), walletHandler.Deposit)
		client.POST("/wallets/deduct", rl(), walletHandler.Deduct)
		client.POST("/checkout", rl(), checkoutHandler.Checkout)
		client.POST("/purchases", rl(), checkoutHandler.Purchase)
	}
	if deps.RateLimiter != nil {
		v1.POST("/limits/check", jwtAuth, limitsHandler.Check)
	}

	// --- Admin (API key) ---
	adminHandler := NewAdminHandler(deps.Maintenance, deps.Ledger, deps.Verifier, deps.RateLimiter)
	inventoryHandler := NewInventoryHandler(deps.Inventory)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc, deps.Ledger)
	authHandler := NewAuthHandler(deps.AuthSvc)

	admin := v1.Group("/admin", middleware.APIKeyAuth(deps.AuthSvc, response.Error, deps.Logger))
	{
		admin.GET("/maintenance", adminHandler.GetMaintenance)
		admin.POST("/maintenance", adminHandler.SetMaintenance)
		admin.POST("/wallets/gift", adminHandler.Gift)
		admin.POST("/verify", adminHandler.Verify)
		admin.POST("/inventory", inventoryHandler.Import)
		admin.GET("/inventory", inventoryHandler.List)
		admin.GET("/inventory/stats", inventoryHandler.Stats)
		admin.GET("/owners", dashboardHandler.ListOwners)
		admin.GET("/payments", dashboardHandler.ListPayments)
		admin.POST("/payments/:external_ref/fulfil", paymentHandler.Fulfil)
		admin.GET("/overview", dashboardHandler.Overview)
		admin.POST("/tokens", authHandler.IssueToken)
		if deps.RateLimiter != nil {
			admin.POST("/limits/reset", adminHandler.ResetLimit)
		}
	}

	return r
}
