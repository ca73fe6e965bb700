package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded migrations on startup
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type GatewayConfig struct {
	Provider      string        `yaml:"provider"` // card | noop
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
	// SignatureTolerance bounds the age of a signed notification.
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
}

type LedgerConfig struct {
	Currency       string `yaml:"currency"`
	TaxRate        string `yaml:"tax_rate"` // decimal fraction, e.g. "0.15"
	InvoiceDueDays int    `yaml:"invoice_due_days"`
}

// Tax parses TaxRate; LoadConfig has already validated it.
func (l LedgerConfig) Tax() decimal.Decimal {
	d, err := decimal.NewFromString(l.TaxRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	// Empty brokers route outbox events to the log instead of Kafka.
	BatchSize int `yaml:"batch_size"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	OutboxInterval    time.Duration `yaml:"outbox_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, overlays secrets from the
// environment and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.LockTTL = normalizeTTL(cfg.Redis.LockTTL, 10*time.Second)
	if cfg.Gateway.Provider == "" {
		cfg.Gateway.Provider = "noop"
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	cfg.Gateway.SignatureTolerance = normalizeTTL(cfg.Gateway.SignatureTolerance, 5*time.Minute)
	if cfg.Ledger.Currency == "" {
		cfg.Ledger.Currency = "GHS"
	}
	cfg.Ledger.Currency = strings.ToUpper(cfg.Ledger.Currency)
	if cfg.Ledger.TaxRate == "" {
		cfg.Ledger.TaxRate = "0"
	}
	if cfg.Ledger.InvoiceDueDays <= 0 {
		cfg.Ledger.InvoiceDueDays = 30
	}
	if cfg.Kafka.BatchSize <= 0 {
		cfg.Kafka.BatchSize = 100
	}
	cfg.Scheduler.ReconcileInterval = normalizeTTL(cfg.Scheduler.ReconcileInterval, time.Minute)
	cfg.Scheduler.StaleAfter = normalizeTTL(cfg.Scheduler.StaleAfter, 15*time.Minute)
	cfg.Scheduler.ExpiryInterval = normalizeTTL(cfg.Scheduler.ExpiryInterval, time.Hour)
	cfg.Scheduler.OutboxInterval = normalizeTTL(cfg.Scheduler.OutboxInterval, 2*time.Second)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if len(cfg.Ledger.Currency) != 3 {
		return nil, fmt.Errorf("ledger.currency must be a 3-letter code, got %q", cfg.Ledger.Currency)
	}
	rate, err := decimal.NewFromString(cfg.Ledger.TaxRate)
	if err != nil || rate.IsNegative() {
		return nil, fmt.Errorf("ledger.tax_rate must be a non-negative decimal, got %q", cfg.Ledger.TaxRate)
	}
	switch cfg.Gateway.Provider {
	case "noop":
	case "card":
		if cfg.Gateway.BaseURL == "" || cfg.Gateway.APIKey == "" {
			return nil, errors.New("gateway.base_url and gateway.api_key are required for the card provider")
		}
		if cfg.Gateway.WebhookSecret == "" {
			return nil, errors.New("gateway.webhook_secret is required for the card provider")
		}
	default:
		return nil, fmt.Errorf("unknown gateway.provider %q", cfg.Gateway.Provider)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("GATEWAY_WEBHOOK_SECRET"); v != "" {
		cfg.Gateway.WebhookSecret = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
