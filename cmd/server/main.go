package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/hperssn/interviewclock/internal/config"
	httpapi "github.com/hperssn/interviewclock/internal/http"
	"github.com/hperssn/interviewclock/internal/logging"
	"github.com/hperssn/interviewclock/internal/runner"
	"github.com/hperssn/interviewclock/internal/storage"
	"github.com/hperssn/interviewclock/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()

	logger, closeLog := logging.New(cfg)
	slog.SetDefault(logger)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "store", cfg.StoreDriver, "history", cfg.HistoryDriver)

	injector := setupDI(cfg, logger)
	code := run(cfg, injector)

	_ = closeLog()
	os.Exit(code)
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupDI(cfg *config.Config, logger *slog.Logger) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	storage.RegisterDI(injector)
	webhook.RegisterDI(injector)
	runner.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) int {
	store, err := do.Invoke[storage.Store](injector)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		return 1
	}
	defer closeQuietly("session store", store.Close)

	if cfg.HistoryDriver != config.HistoryNone {
		history, err := do.Invoke[storage.Repository](injector)
		if err != nil {
			slog.Error("failed to open interview history", "error", err)
			return 1
		}
		defer closeQuietly("interview history", history.Close)
	}

	manager, err := do.Invoke[*runner.SessionManager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		return 1
	}
	handler, err := do.Invoke[http.Handler](injector)
	if err != nil {
		slog.Error("failed to build router", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	manager.Wait()

	return code
}

func closeQuietly(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		slog.Error("close failed", "resource", name, "error", err)
	}
}
