// Package broker exposes the system's operations: market ingestion, quote
// lookup, and correlation recompute. It owns the cross-cutting concerns the
// lower layers do not: per-market locking, cache fill, and skip accounting.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/correlate"
	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/index"
)

// MarketsUpdatedChannel is the signal bus channel nudged after an ingest pass
// lands fresh markets.
const MarketsUpdatedChannel = "signals:markets_updated"

// marketLockTTL bounds how long one ingest can hold a market's write lock.
const marketLockTTL = 30 * time.Second

// IngestReport accounts for one ingest page: what was fetched, what was
// stored, and what was skipped and why.
type IngestReport struct {
	Exchange       domain.Exchange
	Fetched        int
	Upserted       int
	SkippedInvalid int
	StaleDropped   int
	IndexFailures  int
	LockContention int
	Cursor         string
}

// Broker wires adapters, stores, the index, and the correlation engine into
// the operations callers actually invoke.
type Broker struct {
	adapters  map[domain.Exchange]adapter.Adapter
	markets   domain.MarketStore
	snapshots domain.SnapshotStore
	edges     domain.EdgeStore
	engine    *correlate.Engine
	idx       *index.Index
	quotes    domain.QuoteCache
	locks     domain.LockManager
	bus       domain.SignalBus
	logger    *slog.Logger
}

// New creates a Broker. The signal bus is optional; without one, ingest
// simply skips the update notification.
func New(
	adapters []adapter.Adapter,
	markets domain.MarketStore,
	snapshots domain.SnapshotStore,
	edges domain.EdgeStore,
	engine *correlate.Engine,
	idx *index.Index,
	quotes domain.QuoteCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Broker {
	byExchange := make(map[domain.Exchange]adapter.Adapter, len(adapters))
	for _, a := range adapters {
		byExchange[a.Exchange()] = a
	}
	return &Broker{
		adapters:  byExchange,
		markets:   markets,
		snapshots: snapshots,
		edges:     edges,
		engine:    engine,
		idx:       idx,
		quotes:    quotes,
		locks:     locks,
		bus:       bus,
		logger:    logger.With("component", "broker"),
	}
}

// FetchMarkets pulls one page of markets from an exchange and lands them in
// the canonical store, the index, and the quote series. Invalid upstream
// rows, stale snapshots, and index outages are counted, not fatal; upstream
// transport failures propagate as domain.UpstreamError.
func (b *Broker) FetchMarkets(ctx context.Context, exchange domain.Exchange, filters adapter.Filters) (IngestReport, error) {
	ad, ok := b.adapters[exchange]
	if !ok {
		return IngestReport{}, &domain.ValidationError{Field: "exchange", Reason: fmt.Sprintf("no adapter for %q", exchange)}
	}

	result, err := ad.FetchMarkets(ctx, filters)
	if err != nil {
		return IngestReport{}, err
	}

	report := IngestReport{
		Exchange:       exchange,
		Fetched:        len(result.Markets),
		SkippedInvalid: result.Skipped,
		Cursor:         result.Cursor,
	}

	for _, m := range result.Markets {
		if err := b.ingestMarket(ctx, m, &report); err != nil {
			return report, err
		}
	}

	for _, snap := range result.Snapshots {
		switch err := b.appendSnapshot(ctx, snap); {
		case errors.Is(err, domain.ErrStaleSnapshot):
			report.StaleDropped++
		case errors.Is(err, domain.ErrLockHeld):
			report.LockContention++
		case err != nil:
			return report, err
		default:
			if cacheErr := b.quotes.Set(ctx, snap); cacheErr != nil {
				b.logger.WarnContext(ctx, "quote cache set failed",
					"market", snap.Key.String(), "error", cacheErr)
			}
		}
	}

	if b.bus != nil && report.Upserted > 0 {
		if err := b.bus.Publish(ctx, MarketsUpdatedChannel, []byte(string(exchange))); err != nil {
			b.logger.WarnContext(ctx, "markets-updated publish failed", "error", err)
		}
	}

	b.logger.InfoContext(ctx, "markets ingested",
		"exchange", string(exchange),
		"fetched", report.Fetched,
		"upserted", report.Upserted,
		"skipped", report.SkippedInvalid,
		"stale", report.StaleDropped,
	)
	return report, nil
}

func (b *Broker) ingestMarket(ctx context.Context, m domain.Market, report *IngestReport) error {
	unlock, err := b.locks.Acquire(ctx, "market:"+m.Key.String(), marketLockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		report.LockContention++
		return nil
	}
	if err != nil {
		return err
	}
	defer unlock()

	if err := b.markets.Upsert(ctx, m); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			report.SkippedInvalid++
			b.logger.WarnContext(ctx, "market skipped",
				"market", m.Key.String(), "field", verr.Field, "reason", verr.Reason)
			return nil
		}
		return err
	}
	report.Upserted++

	// Index outages are retryable; the market is stored and will be indexed
	// on the next pass or at compute time.
	if err := b.idx.Upsert(ctx, m); err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			report.IndexFailures++
			b.logger.WarnContext(ctx, "index unavailable",
				"market", m.Key.String(), "error", err)
			return nil
		}
		return err
	}
	return nil
}

// appendSnapshot lands one quote under the market's write lock. The staleness
// check in the snapshot store is check-then-insert, so concurrent writers for
// the same market must be serialized or the series gains out-of-order rows.
func (b *Broker) appendSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	unlock, err := b.locks.Acquire(ctx, "market:"+snap.Key.String(), marketLockTTL)
	if err != nil {
		return err
	}
	defer unlock()
	return b.snapshots.Append(ctx, snap)
}

// GetQuote returns the latest quote for a ticker, serving from cache when
// possible and falling back to the exchange. An explicit exchange wins; when
// it is unset the exchange is inferred from the ticker prefix. A fresh
// upstream quote is appended to the series and cached.
func (b *Broker) GetQuote(ctx context.Context, ticker string, exchange domain.Exchange) (domain.QuoteSnapshot, error) {
	if exchange == "" || exchange == domain.ExchangeUnknown {
		exchange = domain.DetectExchange(ticker)
	}
	if exchange == domain.ExchangeUnknown {
		return domain.QuoteSnapshot{}, &domain.ValidationError{
			Field:  "ticker",
			Reason: fmt.Sprintf("cannot infer exchange for ticker %q", ticker),
		}
	}

	key := domain.MarketKey{Exchange: exchange, NativeID: ticker}
	if snap, err := b.quotes.Get(ctx, key); err == nil {
		return snap, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		b.logger.WarnContext(ctx, "quote cache get failed", "market", key.String(), "error", err)
	}

	ad, ok := b.adapters[exchange]
	if !ok {
		return domain.QuoteSnapshot{}, &domain.ValidationError{
			Field:  "exchange",
			Reason: fmt.Sprintf("no adapter for %q", exchange),
		}
	}

	snap, err := ad.FetchQuote(ctx, ticker)
	if err != nil {
		return domain.QuoteSnapshot{}, err
	}

	// A stale or contended append only means another writer landed this
	// market first; the fetched quote is still the answer.
	switch err := b.appendSnapshot(ctx, snap); {
	case errors.Is(err, domain.ErrStaleSnapshot), errors.Is(err, domain.ErrLockHeld):
	case err != nil:
		return domain.QuoteSnapshot{}, err
	}
	if err := b.quotes.Set(ctx, snap); err != nil {
		b.logger.WarnContext(ctx, "quote cache set failed", "market", key.String(), "error", err)
	}
	return snap, nil
}

// Scope selects what a recompute pass covers.
type Scope struct {
	Market   *domain.MarketKey
	Exchange domain.Exchange
	K        int
}

// RecomputeCorrelations recomputes edges for one market, one exchange, or
// the whole catalog, in that order of precedence.
func (b *Broker) RecomputeCorrelations(ctx context.Context, scope Scope) (correlate.Stats, error) {
	switch {
	case scope.Market != nil:
		return b.engine.RecomputeMarket(ctx, *scope.Market, scope.K)
	case scope.Exchange != "" && scope.Exchange != domain.ExchangeUnknown:
		return b.engine.RecomputeExchange(ctx, scope.Exchange, scope.K)
	default:
		return b.engine.RecomputeAll(ctx, scope.K)
	}
}

// Edges returns the stored edges at or above minComposite, best first.
func (b *Broker) Edges(ctx context.Context, minComposite float64, opts domain.ListOpts) ([]domain.CorrelationEdge, error) {
	return b.edges.List(ctx, minComposite, opts)
}

// EdgesForMarket returns every stored edge touching one market.
func (b *Broker) EdgesForMarket(ctx context.Context, key domain.MarketKey) ([]domain.CorrelationEdge, error) {
	return b.edges.ListForMarket(ctx, key)
}
