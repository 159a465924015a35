package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/index"
	"github.com/unipredhq/unipred/internal/pipeline"
)

// FullMode runs everything: the ingest loop, the signal-driven recompute loop,
// and the export cron when object storage is configured.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	var exportJob *pipeline.ExportJob
	if deps.Exporter != nil {
		exportJob = pipeline.NewExportJob(deps.Exporter, a.logger)
	}

	orch := pipeline.NewOrchestrator(
		a.buildIngestor(deps),
		a.buildRecomputer(deps),
		exportJob,
		a.cfg.Pipeline.IngestInterval.Duration,
		a.cfg.Pipeline.RecomputeInterval.Duration,
		a.cfg.Pipeline.ExportCron,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	a.startQuoteFeed(ctx, g, deps)
	return g.Wait()
}

// IngestMode runs only the market ingest loop plus the live quote feed when
// one is configured.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.buildIngestor(deps).RunLoop(ctx, a.cfg.Pipeline.IngestInterval.Duration)
	})
	a.startQuoteFeed(ctx, g, deps)
	return g.Wait()
}

// CorrelateMode runs only the recompute loop, reacting to ingest signals
// published by a separate ingest process.
func (a *App) CorrelateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting correlate mode")
	return a.buildRecomputer(deps).RunLoop(ctx, a.cfg.Pipeline.RecomputeInterval.Duration)
}

// SyncMode performs one ingest sweep across all enabled exchanges and exits.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting one-shot sync")
	return a.buildIngestor(deps).Run(ctx)
}

// RecomputeMode performs one full correlation recompute and exits.
func (a *App) RecomputeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting one-shot recompute")
	return a.buildRecomputer(deps).Run(ctx)
}

// ExportMode uploads the catalog and edge datasets once and exits.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	if deps.Exporter == nil {
		return fmt.Errorf("app: export mode requires s3.enabled")
	}
	a.logger.InfoContext(ctx, "starting one-shot export")
	return pipeline.NewExportJob(deps.Exporter, a.logger).Run(ctx)
}

// startQuoteFeed adds the Kalshi ticker stream to the errgroup when a
// WebSocket endpoint is configured. Stream failures reconnect internally, so
// the feed only exits on context cancellation.
func (a *App) startQuoteFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Kalshi.Enabled || a.cfg.Kalshi.WsURL == "" {
		return
	}
	feed := pipeline.NewQuoteFeed(
		a.cfg.Kalshi.WsURL,
		deps.MarketStore,
		deps.SnapshotStore,
		deps.QuoteCache,
		deps.LockManager,
		a.logger,
	)
	g.Go(func() error {
		defer feed.Close()
		err := feed.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

func (a *App) buildIngestor(deps *Dependencies) *pipeline.Ingestor {
	exchanges := make([]domain.Exchange, 0, len(deps.Adapters))
	for _, ad := range deps.Adapters {
		exchanges = append(exchanges, ad.Exchange())
	}
	if len(exchanges) == 0 {
		a.logger.Warn("no exchange adapters enabled, ingest will be a no-op")
	}
	return pipeline.NewIngestor(deps.Broker, pipeline.IngestorConfig{
		Exchanges:  exchanges,
		Limiter:    deps.RateLimiter,
		RateLimit:  a.cfg.Pipeline.RateLimit,
		RateWindow: a.cfg.Pipeline.RateWindow.Duration,
		PageLimit:  a.cfg.Pipeline.PageLimit,
		MaxRetries: a.cfg.Pipeline.MaxRetries,
	}, a.logger)
}

func (a *App) buildRecomputer(deps *Dependencies) *pipeline.Recomputer {
	k := a.cfg.Index.K
	if k <= 0 {
		a.logger.Warn("index.k not set, using default neighborhood size",
			slog.Int("k", index.DefaultK),
		)
		k = index.DefaultK
	}
	return pipeline.NewRecomputer(deps.Broker, deps.SignalBus, k, a.logger)
}
