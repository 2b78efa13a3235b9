package main

import (
	"context"
	"fmt"
	"net/http"

	"vending-gateway/config"
	"vending-gateway/internal/adapter/notify"
	"vending-gateway/internal/adapter/qr"
	"vending-gateway/internal/adapter/storage/memory"
	pgStorage "vending-gateway/internal/adapter/storage/postgres"
	redisStorage "vending-gateway/internal/adapter/storage/redis"
	"vending-gateway/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// repositories is the storage driver chosen by storage.driver.
type repositories struct {
	owners     ports.OwnerRepository
	wallets    ports.WalletRepository
	ledger     ports.LedgerRepository
	units      ports.InventoryRepository
	events     ports.PaymentEventRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func openRepositories(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			owners:     memory.NewOwnerRepo(store),
			wallets:    memory.NewWalletRepo(store),
			ledger:     memory.NewLedgerRepo(store),
			units:      memory.NewInventoryRepo(store),
			events:     memory.NewPaymentEventRepo(store),
			audit:      memory.NewAuditRepo(store),
			transactor: memory.NewTransactor(store),
			health:     []ports.HealthChecker{memory.HealthCheck{}},
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := pgStorage.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &repositories{
		owners:     pgStorage.NewOwnerRepo(pool),
		wallets:    pgStorage.NewWalletRepo(pool),
		ledger:     pgStorage.NewLedgerRepo(pool),
		units:      pgStorage.NewInventoryRepo(pool),
		events:     pgStorage.NewPaymentEventRepo(pool),
		audit:      pgStorage.NewAuditRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:      pool.Close,
	}, nil
}

// caches holds the Redis-backed stores, or their in-process fallbacks.
type caches struct {
	ack       ports.IdempotencyCache
	rateLimit ports.RateLimitStore
	guard     ports.NotificationGuard // nil without Redis
	health    []ports.HealthChecker
	close     func()
}

func openCaches(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*caches, error) {
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		client, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		rdb = client
	}

	if rdb == nil {
		if cfg.RateLimit.Store == "redis" {
			log.Warn().Msg("Redis disabled, rate limiting falls back to in-memory store")
		}
		return &caches{
			ack:       memory.NewCache(),
			rateLimit: memory.NewRateLimitStore(),
			close:     func() {},
		}, nil
	}

	c := &caches{
		ack:    redisStorage.NewAckCache(rdb),
		guard:  redisStorage.NewSentMarker(rdb),
		health: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		close:  func() { _ = rdb.Close() },
	}
	if cfg.RateLimit.Store == "redis" {
		c.rateLimit = redisStorage.NewRateLimitStore(rdb)
	} else {
		c.rateLimit = memory.NewRateLimitStore()
	}
	return c, nil
}

// buildNotifiers returns one notifier per configured driver and a closer
// for the ones that hold connections.
func buildNotifiers(cfg config.NotifyConfig, log zerolog.Logger) ([]ports.Notifier, func(), error) {
	var (
		notifiers []ports.Notifier
		closers   []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("closing notifier")
			}
		}
	}

	for _, driver := range cfg.Drivers {
		switch driver {
		case "log":
			notifiers = append(notifiers, notify.NewLogNotifier(log))
		case "telegram":
			tg, err := notify.NewTelegramNotifier(notify.TelegramConfig{
				BotToken:    cfg.Telegram.BotToken,
				AdminChatID: cfg.Telegram.AdminChatID,
				APIBase:     cfg.Telegram.APIBase,
			}, &http.Client{Timeout: cfg.Telegram.Timeout}, log)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			notifiers = append(notifiers, tg)
		case "kafka":
			producer, err := notify.NewKafkaProducer(cfg.Kafka.Brokers)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			kn := notify.NewKafkaNotifier(producer, cfg.Kafka.Topic)
			notifiers = append(notifiers, kn)
			closers = append(closers, kn.Close)
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown notify driver %q", driver)
		}
	}
	return notifiers, closeAll, nil
}

// buildQR returns the QR provider chain, or nil when no provider is configured.
func buildQR(cfg config.QRConfig, log zerolog.Logger) (ports.QRProvider, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var providers []ports.QRProvider
	for _, name := range cfg.Providers {
		switch name {
		case "sepay":
			if cfg.SePay.APIKey == "" {
				log.Warn().Msg("qr.sepay.api_key not set, skipping SePay QR provider")
				continue
			}
			p, err := qr.NewSePayProvider(cfg.SePay.APIBase, cfg.SePay.APIKey, client)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		case "vietqr":
			p, err := qr.NewVietQRProvider(cfg.VietQR.BankBin, cfg.VietQR.Template, cfg.VietQR.AccountName)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown qr provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, nil
	}
	return qr.NewChain(providers, log), nil
}
