package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the pipeline goroutines. Any component may be nil,
// which skips its loop; split deployments run ingest and recompute in
// separate processes.
type Orchestrator struct {
	ingestor          *Ingestor
	recomputer        *Recomputer
	exportJob         *ExportJob
	ingestInterval    time.Duration
	recomputeInterval time.Duration
	exportCron        string
	logger            *slog.Logger
}

// NewOrchestrator creates an Orchestrator coordinating the given loops.
func NewOrchestrator(
	ingestor *Ingestor,
	recomputer *Recomputer,
	exportJob *ExportJob,
	ingestInterval time.Duration,
	recomputeInterval time.Duration,
	exportCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		ingestor:          ingestor,
		recomputer:        recomputer,
		exportJob:         exportJob,
		ingestInterval:    ingestInterval,
		recomputeInterval: recomputeInterval,
		exportCron:        exportCron,
		logger:            logger.With("component", "orchestrator"),
	}
}

// Run starts the configured loops as concurrent goroutines using an
// errgroup. Each respects ctx cancellation; a non-context error from any
// loop cancels the rest and Run returns it.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "pipeline starting",
		"ingest_interval", o.ingestInterval.String(),
		"recompute_interval", o.recomputeInterval.String(),
		"export_cron", o.exportCron,
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.ingestor != nil {
		g.Go(func() error {
			err := o.ingestor.RunLoop(ctx, o.ingestInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingest loop: %w", err)
		})
	}

	if o.recomputer != nil {
		g.Go(func() error {
			err := o.recomputer.RunLoop(ctx, o.recomputeInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("recompute loop: %w", err)
		})
	}

	if o.exportJob != nil && o.exportCron != "" {
		g.Go(func() error {
			err := o.exportJob.RunCron(ctx, o.exportCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("export cron: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.ErrorContext(ctx, "pipeline stopped with error", "error", err)
		return err
	}

	o.logger.InfoContext(ctx, "pipeline stopped cleanly")
	return nil
}
