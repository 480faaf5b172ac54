package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"

	HistoryNone     = "none"
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL"`
	LogFile  string `env:"LOG_FILE"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"memory"`
	BoltPath      string `env:"BOLT_PATH" envDefault:"data/sessions.db"`
	DatabaseURL   string `env:"DATABASE_URL"`
	HistoryDriver string `env:"HISTORY_DRIVER" envDefault:"none"`
	HistoryDSN    string `env:"HISTORY_DSN"`

	LockTimeout     time.Duration `env:"LOCK_TIMEOUT" envDefault:"2s"`
	RetentionPeriod time.Duration `env:"RETENTION_PERIOD" envDefault:"1h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`

	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	StatusPushInterval time.Duration `env:"STATUS_PUSH_INTERVAL" envDefault:"1s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required when STORE_DRIVER=bolt")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, bolt, postgres, got %q", c.StoreDriver)
	}

	switch c.HistoryDriver {
	case HistoryNone:
	case HistorySQLite, HistoryPostgres:
		if c.HistoryDSN == "" {
			return fmt.Errorf("HISTORY_DSN is required when HISTORY_DRIVER=%s", c.HistoryDriver)
		}
	default:
		return fmt.Errorf("HISTORY_DRIVER must be one of none, sqlite, postgres, got %q", c.HistoryDriver)
	}

	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", c.LockTimeout)
	}
	if c.RetentionPeriod < 0 {
		return fmt.Errorf("RETENTION_PERIOD must not be negative, got %s", c.RetentionPeriod)
	}
	if c.RetentionPeriod > 0 && c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %s", c.WebhookTimeout)
	}
	if c.StatusPushInterval <= 0 {
		return fmt.Errorf("STATUS_PUSH_INTERVAL must be positive, got %s", c.StatusPushInterval)
	}
	return nil
}

// Level resolves LOG_LEVEL, falling back to debug in development and info
// everywhere else.
func (c *Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		if c.IsDevelopment() {
			return slog.LevelDebug, nil
		}
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
