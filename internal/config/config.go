// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres|mongo|memory
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GatewayConfig struct {
	Mode            string        `yaml:"mode"` // live|mock; empty picks mock without credentials
	BaseURL         string        `yaml:"base_url"`
	KeyID           string        `yaml:"key_id"`
	KeySecret       string        `yaml:"key_secret"`
	WebhookSecret   string        `yaml:"webhook_secret"`
	SignatureHeader string        `yaml:"signature_header"`
	Timeout         time.Duration `yaml:"timeout"`
	// circuit breaker
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type PaymentConfig struct {
	Currency string                     `yaml:"currency"`
	Plans    map[string]decimal.Decimal `yaml:"plans"`
	Gateway  GatewayConfig              `yaml:"gateway"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type SchedulerConfig struct {
	ReconcileCron string        `yaml:"reconcile_cron"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	BatchSize     int           `yaml:"batch_size"`
	Workers       int           `yaml:"workers"`
	ExpiryCron    string        `yaml:"expiry_cron"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, applies environment overrides
// (a .env file next to the binary is loaded first when present) and defaults.
// A missing file is allowed; the environment alone may configure the service.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Payment.Gateway.KeyID, "GATEWAY_KEY_ID")
	setFromEnv(&cfg.Payment.Gateway.KeySecret, "GATEWAY_KEY_SECRET")
	setFromEnv(&cfg.Payment.Gateway.WebhookSecret, "GATEWAY_WEBHOOK_SECRET")
	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Mongo.URI, "MONGO_URI")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "propertyhub"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if len(cfg.Payment.Plans) == 0 {
		cfg.Payment.Plans = map[string]decimal.Decimal{
			"Basic":      decimal.NewFromInt(499),
			"Pro":        decimal.NewFromInt(1499),
			"Enterprise": decimal.NewFromInt(4999),
		}
	}
	gw := &cfg.Payment.Gateway
	if gw.Mode == "" {
		if gw.KeyID != "" && gw.KeySecret != "" {
			gw.Mode = "live"
		} else {
			gw.Mode = "mock"
		}
	}
	gw.Mode = strings.ToLower(gw.Mode)
	if gw.BaseURL == "" {
		gw.BaseURL = "https://api.razorpay.com"
	}
	if gw.SignatureHeader == "" {
		gw.SignatureHeader = "X-Razorpay-Signature"
	}
	if gw.Timeout <= 0 {
		gw.Timeout = 15 * time.Second
	}
	if gw.BreakerFailures == 0 {
		gw.BreakerFailures = 5
	}
	if gw.BreakerCooldown <= 0 {
		gw.BreakerCooldown = 30 * time.Second
	}
	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 30
	}
	s := &cfg.Scheduler
	if s.ReconcileCron == "" {
		s.ReconcileCron = "@every 1m"
	}
	if s.StaleAfter <= 0 {
		s.StaleAfter = 5 * time.Minute
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.ExpiryCron == "" {
		s.ExpiryCron = "@every 1h"
	}
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required")
		}
	case "memory":
		if !c.Runtime.Dev && c.Payment.Gateway.Mode == "live" {
			return errors.New("storage.driver=memory is only allowed in dev or with the mock gateway")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	switch c.Payment.Gateway.Mode {
	case "live":
		if c.Payment.Gateway.KeyID == "" || c.Payment.Gateway.KeySecret == "" {
			return errors.New("payment.gateway.key_id and key_secret are required in live mode")
		}
		if c.Payment.Gateway.WebhookSecret == "" {
			return errors.New("payment.gateway.webhook_secret is required in live mode")
		}
	case "mock":
	default:
		return fmt.Errorf("payment.gateway.mode %q is not supported", c.Payment.Gateway.Mode)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	for name, price := range c.Payment.Plans {
		if !price.IsPositive() {
			return fmt.Errorf("payment.plans.%s must be positive", name)
		}
	}
	return nil
}
