package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hperssn/interviewclock/internal/config"
	"github.com/hperssn/interviewclock/internal/runner"
)

func NewRouter(cfg *config.Config, manager *runner.SessionManager, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Auth-User", "X-Forwarded-User", "Remote-User"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(ExtractUserMiddleware(cfg.IsDevelopment()))

		r.Get("/interview/schedule/default", getDefaultSchedule)
		r.Post("/interview/start", startInterview(manager))

		r.Route("/interview/{id}", func(r chi.Router) {
			r.Use(RequireSessionOwner(manager))

			r.Get("/", getInterview(manager))
			r.Get("/status", getStatus(manager))
			r.Post("/pause", pauseInterview(manager))
			r.Post("/resume", resumeInterview(manager))
			r.Post("/skip", skipPhase(manager))
			r.Post("/phases/{index}/shorten", shortenPhase(manager))
			r.Get("/warnings", getWarnings(manager))
			r.Get("/events", StreamSessionEvents(manager))
			r.Get("/ws", StreamSessionStatus(manager, cfg.StatusPushInterval, cfg.CORSAllowedOrigins))
		})

		r.Get("/interviews/history", getHistory(manager))
		r.Get("/interviews/stats", getStats(manager))
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
