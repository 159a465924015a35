package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/feature"
	"github.com/unipredhq/unipred/internal/index"
)

// defaultParallelism bounds concurrent pair computations during a batch
// recompute.
const defaultParallelism = 8

// Stats summarizes one recompute pass.
type Stats struct {
	Considered   int
	Persisted    int
	BelowCutoff  int
	Incomparable int
	Busy         int
}

func (s *Stats) add(other Stats) {
	s.Considered += other.Considered
	s.Persisted += other.Persisted
	s.BelowCutoff += other.BelowCutoff
	s.Incomparable += other.Incomparable
	s.Busy += other.Busy
}

// Engine scores cross-exchange market pairs and maintains the edge set.
// Recomputing an unchanged pair writes nothing; pairs below the threshold
// leave no edge at all.
type Engine struct {
	markets     domain.MarketStore
	edges       domain.EdgeStore
	idx         *index.Index
	extractor   *feature.Extractor
	weights     Weights
	step        time.Duration
	parallelism int
	logger      *slog.Logger
	now         func() time.Time
	busy        *inflight
}

// NewEngine creates an Engine with the given scoring policy.
func NewEngine(
	markets domain.MarketStore,
	edges domain.EdgeStore,
	idx *index.Index,
	extractor *feature.Extractor,
	weights Weights,
	logger *slog.Logger,
) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		markets:     markets,
		edges:       edges,
		idx:         idx,
		extractor:   extractor,
		weights:     weights,
		step:        feature.DefaultResampleStep,
		parallelism: defaultParallelism,
		logger:      logger.With("component", "correlate"),
		now:         time.Now,
		busy:        newInflight(),
	}, nil
}

// Compute scores one pair and persists the edge when it clears the
// threshold. The returned bool reports whether an edge is stored. Compute is
// symmetric in its arguments and idempotent over unchanged inputs. It
// returns domain.ErrLockHeld when the pair is already being computed.
func (e *Engine) Compute(ctx context.Context, a, b domain.MarketKey) (domain.CorrelationEdge, bool, error) {
	pair := domain.NewPairKey(a, b)
	if !pair.CrossExchange() {
		return domain.CorrelationEdge{}, false, domain.ErrSameExchange
	}

	if !e.busy.tryAcquire(pair) {
		return domain.CorrelationEdge{}, false, domain.ErrLockHeld
	}
	defer e.busy.release(pair)

	ma, err := e.markets.Get(ctx, pair.A)
	if err != nil {
		return domain.CorrelationEdge{}, false, fmt.Errorf("correlate: load %s: %w", pair.A, err)
	}
	mb, err := e.markets.Get(ctx, pair.B)
	if err != nil {
		return domain.CorrelationEdge{}, false, fmt.Errorf("correlate: load %s: %w", pair.B, err)
	}

	// Content-hash checks make these cheap when the markets are unchanged.
	if err := e.idx.Upsert(ctx, ma); err != nil {
		return domain.CorrelationEdge{}, false, err
	}
	if err := e.idx.Upsert(ctx, mb); err != nil {
		return domain.CorrelationEdge{}, false, err
	}

	text, err := e.idx.Similarity(pair.A, pair.B)
	if err != nil {
		return domain.CorrelationEdge{}, false, err
	}

	fa, err := e.extractor.Extract(ctx, ma)
	if err != nil {
		return domain.CorrelationEdge{}, false, err
	}
	fb, err := e.extractor.Extract(ctx, mb)
	if err != nil {
		return domain.CorrelationEdge{}, false, err
	}
	structural := feature.Compare(fa, fb, e.step)

	edge := domain.CorrelationEdge{
		Pair:            pair,
		TextScore:       text,
		StructuralScore: structural,
		CompositeScore:  e.weights.Composite(text, structural),
		ComputedAt:      e.now().UTC(),
	}

	if edge.CompositeScore < e.weights.Threshold {
		return edge, false, nil
	}

	// Skip the write when nothing changed since the last compute.
	existing, err := e.edges.Get(ctx, pair)
	if err == nil && existing.Equal(edge) {
		return existing, true, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.CorrelationEdge{}, false, err
	}

	if err := e.edges.Upsert(ctx, edge); err != nil {
		return domain.CorrelationEdge{}, false, err
	}
	return edge, true, nil
}

// RecomputeMarket rescans one market against its k nearest cross-exchange
// neighbors.
func (e *Engine) RecomputeMarket(ctx context.Context, key domain.MarketKey, k int) (Stats, error) {
	m, err := e.markets.Get(ctx, key)
	if err != nil {
		return Stats{}, fmt.Errorf("correlate: load %s: %w", key, err)
	}
	if err := e.idx.Upsert(ctx, m); err != nil {
		return Stats{}, err
	}

	neighbors, err := e.idx.Nearest(ctx, key, k)
	if err != nil {
		return Stats{}, err
	}

	var (
		stats   Stats
		g, gctx = errgroup.WithContext(ctx)
		results = make([]Stats, len(neighbors))
	)
	g.SetLimit(e.parallelism)

	for i, neighbor := range neighbors {
		g.Go(func() error {
			edge, persisted, err := e.Compute(gctx, key, neighbor.Key)
			switch {
			case errors.Is(err, domain.ErrLockHeld):
				results[i] = Stats{Considered: 1, Busy: 1}
				return nil
			case err != nil:
				return err
			}

			s := Stats{Considered: 1}
			if persisted {
				s.Persisted = 1
			} else {
				s.BelowCutoff = 1
			}
			if edge.StructuralScore == nil {
				s.Incomparable = 1
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	for _, s := range results {
		stats.add(s)
	}
	e.logger.InfoContext(ctx, "market recomputed",
		"market", key.String(),
		"considered", stats.Considered,
		"persisted", stats.Persisted,
	)
	return stats, nil
}

// RecomputeExchange rescans every open market on one exchange.
func (e *Engine) RecomputeExchange(ctx context.Context, exchange domain.Exchange, k int) (Stats, error) {
	var stats Stats
	const page = 500

	for offset := 0; ; offset += page {
		markets, err := e.markets.ListOpen(ctx, exchange, domain.ListOpts{Limit: page, Offset: offset})
		if err != nil {
			return stats, fmt.Errorf("correlate: list %s markets: %w", exchange, err)
		}
		if len(markets) == 0 {
			return stats, nil
		}

		for _, m := range markets {
			s, err := e.RecomputeMarket(ctx, m.Key, k)
			if err != nil {
				return stats, err
			}
			stats.add(s)
		}

		if len(markets) < page {
			return stats, nil
		}
	}
}

// RecomputeAll rescans every exchange's open markets.
func (e *Engine) RecomputeAll(ctx context.Context, k int) (Stats, error) {
	var stats Stats
	for _, exchange := range []domain.Exchange{domain.ExchangeKalshi, domain.ExchangePolymarket} {
		s, err := e.RecomputeExchange(ctx, exchange, k)
		if err != nil {
			return stats, err
		}
		stats.add(s)
	}
	return stats, nil
}
