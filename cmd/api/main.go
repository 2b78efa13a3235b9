package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vending-gateway/config"
	httpHandler "vending-gateway/internal/adapter/http/handler"
	"vending-gateway/internal/core/ports"
	"vending-gateway/internal/service"
	"vending-gateway/pkg/logger"
)

func main() {
	// Load .env (if any) then configuration
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Vending Gateway")

	ctx := context.Background()

	// Storage and caches
	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	stores, err := openCaches(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer stores.close()

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	verifier, err := service.NewVerifierService(cfg.Payment)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid payment policy")
	}
	auditSvc := service.NewAuditService(repos.audit, log)

	authSvc, err := service.NewAuthService(cfg.Auth.APIKey, cfg.Auth.APIKeyHash, hashSvc, tokenSvc, auditSvc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth service")
	}

	// Notifications and QR rendering
	notifiers, closeNotifiers, err := buildNotifiers(cfg.Notify, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize notifiers")
	}
	defer closeNotifiers()
	notifySvc := service.NewNotificationService(notifiers, stores.guard, cfg.Notify.MaxAttempts, cfg.Notify.RetryBackoff, log)

	qrProvider, err := buildQR(cfg.QR, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize QR providers")
	}

	// Initialize business services
	ledgerSvc := service.NewLedgerService(repos.owners, repos.wallets, repos.ledger, repos.events, stores.ack, repos.transactor, log)
	inventorySvc := service.NewInventoryService(repos.units, encSvc, repos.transactor, log)
	intakeSvc := service.NewIntakeService(verifier, ledgerSvc, inventorySvc, repos.events, stores.ack,
		repos.transactor, auditSvc, notifySvc, cfg.Payment.AckCacheTTL, log)
	checkoutSvc := service.NewCheckoutService(verifier, ledgerSvc, inventorySvc, repos.transactor, qrProvider,
		cfg.Payment.ReceivingAccount, auditSvc, notifySvc, log)
	reportingSvc := service.NewReportingService(repos.events, repos.owners, repos.units)
	maintenanceSvc := service.NewMaintenanceService(cfg.Maintenance.Enabled, cfg.Maintenance.Message, log)
	rateLimitSvc := service.NewRateLimitService(stores.rateLimit, ports.RateLimitPolicy{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
		Ban:    cfg.RateLimit.Ban,
	}, time.Now, log)

	apiDoc, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("api document missing, /swagger/spec disabled")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		Intake:         intakeSvc,
		Ledger:         ledgerSvc,
		Inventory:      inventorySvc,
		Verifier:       verifier,
		Checkout:       checkoutSvc,
		ReportingSvc:   reportingSvc,
		Maintenance:    maintenanceSvc,
		RateLimiter:    rateLimitSvc,
		HealthCheckers: append(repos.health, stores.health...),
		AuditSvc:       auditSvc,
		APIDocument:    apiDoc,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let queued notifications finish before closing their transports.
	notifySvc.Wait()

	log.Info().Msg("Server exited")
}
