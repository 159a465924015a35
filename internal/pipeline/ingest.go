// Package pipeline runs the long-lived loops: market ingestion, correlation
// recompute, and dataset export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/broker"
	"github.com/unipredhq/unipred/internal/domain"
)

const (
	defaultPageLimit  = 200
	defaultMaxRetries = 5
	retryBaseDelay    = time.Second
)

// Ingestor sweeps the configured exchanges, paging through each catalog and
// landing markets through the broker. Transient upstream failures are
// retried with exponential backoff; a page that keeps failing aborts the
// sweep for that exchange.
type Ingestor struct {
	broker     *broker.Broker
	exchanges  []domain.Exchange
	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
	pageLimit  int
	maxRetries int
	logger     *slog.Logger
}

// IngestorConfig tunes a sweep. Zero values fall back to defaults; a nil
// Limiter disables client-side pacing.
type IngestorConfig struct {
	Exchanges  []domain.Exchange
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
	PageLimit  int
	MaxRetries int
}

// NewIngestor creates an Ingestor over the given broker.
func NewIngestor(b *broker.Broker, cfg IngestorConfig, logger *slog.Logger) *Ingestor {
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Ingestor{
		broker:     b,
		exchanges:  cfg.Exchanges,
		limiter:    cfg.Limiter,
		rateLimit:  cfg.RateLimit,
		rateWindow: cfg.RateWindow,
		pageLimit:  pageLimit,
		maxRetries: maxRetries,
		logger:     logger.With("component", "ingest"),
	}
}

// Run executes one full sweep over every configured exchange.
func (in *Ingestor) Run(ctx context.Context) error {
	for _, exchange := range in.exchanges {
		if err := in.syncExchange(ctx, exchange); err != nil {
			return fmt.Errorf("pipeline: sync %s: %w", exchange, err)
		}
	}
	return nil
}

func (in *Ingestor) syncExchange(ctx context.Context, exchange domain.Exchange) error {
	var total broker.IngestReport
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if in.limiter != nil && in.rateLimit > 0 {
			if err := in.limiter.Wait(ctx, "api:"+string(exchange), in.rateLimit, in.rateWindow); err != nil {
				return err
			}
		}

		report, err := in.fetchPage(ctx, exchange, cursor)
		if err != nil {
			return err
		}

		total.Fetched += report.Fetched
		total.Upserted += report.Upserted
		total.SkippedInvalid += report.SkippedInvalid
		total.StaleDropped += report.StaleDropped
		total.IndexFailures += report.IndexFailures
		total.LockContention += report.LockContention

		if report.Cursor == "" {
			break
		}
		cursor = report.Cursor
	}

	in.logger.InfoContext(ctx, "exchange sweep complete",
		"exchange", string(exchange),
		"fetched", total.Fetched,
		"upserted", total.Upserted,
		"skipped", total.SkippedInvalid,
		"stale", total.StaleDropped,
		"index_failures", total.IndexFailures,
	)
	return nil
}

// fetchPage pulls one page, retrying transient upstream failures with
// exponential backoff.
func (in *Ingestor) fetchPage(ctx context.Context, exchange domain.Exchange, cursor string) (broker.IngestReport, error) {
	filters := adapter.Filters{
		Status: string(domain.MarketStatusOpen),
		Limit:  in.pageLimit,
		Cursor: cursor,
	}

	delay := retryBaseDelay
	var lastErr error

	for attempt := 0; attempt < in.maxRetries; attempt++ {
		report, err := in.broker.FetchMarkets(ctx, exchange, filters)
		if err == nil {
			return report, nil
		}

		var upstream *domain.UpstreamError
		if !errors.As(err, &upstream) {
			return broker.IngestReport{}, err
		}
		lastErr = err

		in.logger.WarnContext(ctx, "upstream fetch failed, retrying",
			"exchange", string(exchange),
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return broker.IngestReport{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return broker.IngestReport{}, fmt.Errorf("pipeline: %s page fetch exhausted %d retries: %w",
		exchange, in.maxRetries, lastErr)
}

// RunLoop runs sweeps on a repeating interval until the context is
// cancelled. The first sweep starts immediately.
func (in *Ingestor) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := in.Run(ctx); err != nil {
		in.logger.ErrorContext(ctx, "ingest sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.InfoContext(ctx, "ingest loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := in.Run(ctx); err != nil {
				in.logger.ErrorContext(ctx, "ingest sweep failed", "error", err)
			}
		}
	}
}
