package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/hperssn/interviewclock/internal/config"
)

const connectTimeout = 10 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		backend, err := openBackend(cfg)
		if err != nil {
			return nil, err
		}
		return NewStore(backend, cfg.LockTimeout), nil
	})
	do.Provide(injector, func(i do.Injector) (Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return openRepository(cfg)
	})
}

func openBackend(cfg *config.Config) (Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		b, err := NewBoltBackend(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return b, nil
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		b, err := NewPgxBackend(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return b, nil
	default:
		return NewMemoryBackend(), nil
	}
}

// openRepository returns a nil Repository when history is disabled.
func openRepository(cfg *config.Config) (Repository, error) {
	switch cfg.HistoryDriver {
	case config.HistorySQLite:
		r, err := NewSQLiteRepository(cfg.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		return r, nil
	case config.HistoryPostgres:
		r, err := NewPostgresRepository(cfg.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres history: %w", err)
		}
		return r, nil
	default:
		return nil, nil
	}
}
