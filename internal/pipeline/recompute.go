package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/unipredhq/unipred/internal/broker"
	"github.com/unipredhq/unipred/internal/domain"
)

// signalDebounce batches bursts of market-updated signals into one recompute.
const signalDebounce = 30 * time.Second

// Recomputer periodically rescans the catalog for correlated pairs. When a
// signal bus is wired, fresh-market notifications from the ingest half also
// trigger a pass, debounced so a paginated sweep does not cause one
// recompute per page.
type Recomputer struct {
	broker *broker.Broker
	bus    domain.SignalBus
	k      int
	logger *slog.Logger
}

// NewRecomputer creates a Recomputer. A nil bus disables signal-triggered
// passes.
func NewRecomputer(b *broker.Broker, bus domain.SignalBus, k int, logger *slog.Logger) *Recomputer {
	return &Recomputer{
		broker: b,
		bus:    bus,
		k:      k,
		logger: logger.With("component", "recompute"),
	}
}

// Run executes one full recompute pass.
func (r *Recomputer) Run(ctx context.Context) error {
	start := time.Now()
	stats, err := r.broker.RecomputeCorrelations(ctx, broker.Scope{K: r.k})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "recompute pass complete",
		"considered", stats.Considered,
		"persisted", stats.Persisted,
		"below_cutoff", stats.BelowCutoff,
		"incomparable", stats.Incomparable,
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// RunLoop runs passes on a repeating interval, plus whenever the ingest half
// signals fresh markets, until the context is cancelled.
func (r *Recomputer) RunLoop(ctx context.Context, interval time.Duration) error {
	var signals <-chan []byte
	if r.bus != nil {
		ch, err := r.bus.Subscribe(ctx, broker.MarketsUpdatedChannel)
		if err != nil {
			r.logger.WarnContext(ctx, "signal subscribe failed, interval only", "error", err)
		} else {
			signals = ch
		}
	}

	if err := r.Run(ctx); err != nil {
		r.logger.ErrorContext(ctx, "recompute pass failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "recompute loop stopped")
			return ctx.Err()

		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.ErrorContext(ctx, "recompute pass failed", "error", err)
			}

		case _, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(signalDebounce)
				debounceC = debounce.C
			}

		case <-debounceC:
			debounce = nil
			debounceC = nil
			if err := r.Run(ctx); err != nil {
				r.logger.ErrorContext(ctx, "recompute pass failed", "error", err)
			}
		}
	}
}
