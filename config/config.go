package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	AES         AESConfig         `mapstructure:"aes"`
	Log         LogConfig         `mapstructure:"log"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	QR          QRConfig          `mapstructure:"qr"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig holds the shared webhook/admin secret. APIKeyHash, when set,
// is an argon2id PHC string ($argon2id$v=19$...) and takes precedence over APIKey.
type AuthConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APIKeyHash string `mapstructure:"api_key_hash"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// PaymentConfig is the verification policy. Map keys are lowercased by viper.
type PaymentConfig struct {
	RequiredKeywords []string          `mapstructure:"required_keywords"`
	ExcludedKeywords []string          `mapstructure:"excluded_keywords"`
	MinAmount        int64             `mapstructure:"min_amount"`
	CodePrefixes     map[string]string `mapstructure:"code_prefixes"` // prefix -> plan
	PriceList        map[string]int64  `mapstructure:"price_list"`    // plan -> price
	EnforcePlanPrice bool              `mapstructure:"enforce_plan_price"`
	AckCacheTTL      time.Duration     `mapstructure:"ack_cache_ttl"`
	ReceivingAccount string            `mapstructure:"receiving_account"`
}

type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Limit  int           `mapstructure:"limit"`
	Ban    time.Duration `mapstructure:"ban"`
	Store  string        `mapstructure:"store"` // redis, memory
}

type MaintenanceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Message string `mapstructure:"message"`
}

type NotifyConfig struct {
	Drivers      []string       `mapstructure:"drivers"` // log, telegram, kafka
	MaxAttempts  int            `mapstructure:"max_attempts"`
	RetryBackoff time.Duration  `mapstructure:"retry_backoff"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Kafka        KafkaConfig    `mapstructure:"kafka"`
}

type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	AdminChatID string        `mapstructure:"admin_chat_id"`
	APIBase     string        `mapstructure:"api_base"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type QRConfig struct {
	Providers []string      `mapstructure:"providers"` // tried in order: sepay, vietqr
	Timeout   time.Duration `mapstructure:"timeout"`
	SePay     SePayConfig   `mapstructure:"sepay"`
	VietQR    VietQRConfig  `mapstructure:"vietqr"`
}

type SePayConfig struct {
	APIBase string `mapstructure:"api_base"`
	APIKey  string `mapstructure:"api_key"`
}

type VietQRConfig struct {
	BankBin     string `mapstructure:"bank_bin"`
	Template    string `mapstructure:"template"`
	AccountName string `mapstructure:"account_name"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: VGW_.
// Nested keys use underscore: VGW_DATABASE_HOST, VGW_AUTH_API_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "vending_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "720h")
	v.SetDefault("jwt.issuer", "vending-gateway")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("payment.required_keywords", []string{})
	v.SetDefault("payment.excluded_keywords", []string{})
	v.SetDefault("payment.min_amount", 10000)
	v.SetDefault("payment.code_prefixes", map[string]string{
		"free": "free",
		"plus": "plus",
		"team": "team",
		"nap":  "deposit",
	})
	v.SetDefault("payment.price_list", map[string]int64{
		"free": 0,
		"plus": 50000,
		"team": 100000,
	})
	v.SetDefault("payment.enforce_plan_price", false)
	v.SetDefault("payment.ack_cache_ttl", "24h")
	v.SetDefault("payment.receiving_account", "")

	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.limit", 10)
	v.SetDefault("ratelimit.ban", "5m")
	v.SetDefault("ratelimit.store", "redis")

	v.SetDefault("maintenance.enabled", false)
	v.SetDefault("maintenance.message", "System is under maintenance. Please try again later.")

	v.SetDefault("notify.drivers", []string{"log"})
	v.SetDefault("notify.max_attempts", 3)
	v.SetDefault("notify.retry_backoff", "2s")
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("notify.telegram.timeout", "10s")
	v.SetDefault("notify.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("notify.kafka.topic", "vending.events")

	v.SetDefault("qr.providers", []string{"sepay", "vietqr"})
	v.SetDefault("qr.timeout", "5s")
	v.SetDefault("qr.sepay.api_base", "https://my.sepay.vn/userapi/qr/create")
	v.SetDefault("qr.vietqr.bank_bin", "970422")
	v.SetDefault("qr.vietqr.template", "compact2")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// VGW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("VGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.RateLimit.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("ratelimit.store must be redis or memory, got %q", c.RateLimit.Store)
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.limit and ratelimit.window must be positive")
	}
	if c.Payment.MinAmount < 0 {
		return fmt.Errorf("payment.min_amount must not be negative")
	}
	for plan, price := range c.Payment.PriceList {
		if price < 0 {
			return fmt.Errorf("payment.price_list.%s must not be negative", plan)
		}
	}
	return nil
}
