package runner

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/hperssn/interviewclock/internal/config"
	"github.com/hperssn/interviewclock/internal/storage"
	"github.com/hperssn/interviewclock/internal/webhook"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*SessionManager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[storage.Store](i)
		logger := do.MustInvoke[*slog.Logger](i)

		opts := Options{
			Logger:          logger,
			Retention:       cfg.RetentionPeriod,
			CleanupInterval: cfg.CleanupInterval,
			NotifyTimeout:   cfg.WebhookTimeout,
		}
		if cfg.HistoryDriver != config.HistoryNone {
			opts.History = do.MustInvoke[storage.Repository](i)
		}
		if cfg.WebhookURL != "" {
			opts.Notifier = do.MustInvoke[webhook.Sender](i)
		}
		return NewSessionManager(store, opts), nil
	})
}
