// Package app owns process lifecycle. It wires the stores, caches, embedding
// index, correlation engine, blob exporter, and pipelines into a dependency
// graph and runs the goroutines the configured mode calls for.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unipredhq/unipred/internal/config"
)

// App holds the configuration, logger, and cleanup functions accumulated while
// wiring. Cleanups run in reverse order on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New builds an App around the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, dispatches to the configured operating mode, and
// blocks until the context is cancelled or the mode returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("storage", a.cfg.Storage),
		slog.String("log_level", a.cfg.LogLevel),
	)
	a.logger.DebugContext(ctx, "effective configuration", slog.Any("config", a.cfg.Redacted()))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	run, ok := a.modeFunc(strings.ToLower(a.cfg.Mode))
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	return run(ctx, deps)
}

func (a *App) modeFunc(mode string) (func(context.Context, *Dependencies) error, bool) {
	switch mode {
	case "full":
		return a.FullMode, true
	case "ingest":
		return a.IngestMode, true
	case "correlate":
		return a.CorrelateMode, true
	case "sync":
		return a.SyncMode, true
	case "recompute":
		return a.RecomputeMode, true
	case "export":
		return a.ExportMode, true
	default:
		return nil, false
	}
}

// Close runs the registered cleanups newest-first. Subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
