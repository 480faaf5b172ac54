package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/hperssn/interviewclock/internal/config"
	"github.com/hperssn/interviewclock/internal/runner"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (http.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*runner.SessionManager](i)
		logger := do.MustInvoke[*slog.Logger](i)
		return NewRouter(cfg, manager, logger), nil
	})
}
