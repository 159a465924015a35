package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DatasetExporter uploads the catalog and edge datasets to object storage.
type DatasetExporter interface {
	ExportMarkets(ctx context.Context) (int, error)
	ExportEdges(ctx context.Context) (int, error)
}

// ExportJob runs dataset exports on a cron schedule.
type ExportJob struct {
	exporter DatasetExporter
	logger   *slog.Logger
}

// NewExportJob creates an ExportJob.
func NewExportJob(exporter DatasetExporter, logger *slog.Logger) *ExportJob {
	return &ExportJob{
		exporter: exporter,
		logger:   logger.With("component", "export"),
	}
}

// Run executes one export of both datasets.
func (j *ExportJob) Run(ctx context.Context) error {
	markets, err := j.exporter.ExportMarkets(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: export markets: %w", err)
	}

	edges, err := j.exporter.ExportEdges(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: export edges: %w", err)
	}

	j.logger.InfoContext(ctx, "export complete", "markets", markets, "edges", edges)
	return nil
}

// RunCron runs exports on a cron schedule until the context is cancelled.
// It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week".
func (j *ExportJob) RunCron(ctx context.Context, cronExpr string) error {
	j.logger.InfoContext(ctx, "export cron started", "cron", cronExpr)

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: parse cron expression %q: %w", cronExpr, err)
		}

		j.logger.InfoContext(ctx, "export waiting for next trigger",
			"next_run", next, "wait", time.Until(next).String())

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.InfoContext(ctx, "export cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := j.Run(ctx); err != nil {
				j.logger.ErrorContext(ctx, "export run failed", "error", err)
			}
		}
	}
}
