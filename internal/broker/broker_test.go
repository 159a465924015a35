package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/correlate"
	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/feature"
	"github.com/unipredhq/unipred/internal/index"
	"github.com/unipredhq/unipred/internal/store/memory"
)

// fakeAdapter serves canned results for one exchange.
type fakeAdapter struct {
	exchange    domain.Exchange
	result      adapter.Result
	fetchErr    error
	quote       domain.QuoteSnapshot
	quoteErr    error
	quoteCalls  int
	marketCalls int
}

func (f *fakeAdapter) Exchange() domain.Exchange { return f.exchange }

func (f *fakeAdapter) FetchMarkets(context.Context, adapter.Filters) (adapter.Result, error) {
	f.marketCalls++
	if f.fetchErr != nil {
		return adapter.Result{}, f.fetchErr
	}
	return f.result, nil
}

func (f *fakeAdapter) FetchQuote(_ context.Context, nativeID string) (domain.QuoteSnapshot, error) {
	f.quoteCalls++
	if f.quoteErr != nil {
		return domain.QuoteSnapshot{}, f.quoteErr
	}
	snap := f.quote
	snap.Key = domain.MarketKey{Exchange: f.exchange, NativeID: nativeID}
	return snap, nil
}

// fakeBus records published signals.
type fakeBus struct {
	published []string
}

func (f *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

type brokerFixture struct {
	broker    *Broker
	kalshi    *fakeAdapter
	poly      *fakeAdapter
	bus       *fakeBus
	markets   *memory.MarketStore
	snapshots *memory.SnapshotStore
	edges     *memory.EdgeStore
	quotes    *memory.QuoteCache
	locks     *memory.LockManager
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &brokerFixture{
		kalshi:    &fakeAdapter{exchange: domain.ExchangeKalshi},
		poly:      &fakeAdapter{exchange: domain.ExchangePolymarket},
		bus:       &fakeBus{},
		markets:   memory.NewMarketStore(),
		snapshots: memory.NewSnapshotStore(),
		edges:     memory.NewEdgeStore(),
		quotes:    memory.NewQuoteCache(),
		locks:     memory.NewLockManager(),
	}

	ix := index.New(index.NewHashingEmbedder(index.DefaultDim), memory.NewVectorCache(), logger)
	extractor := feature.NewExtractor(f.snapshots, 0, logger)
	engine, err := correlate.NewEngine(f.markets, f.edges, ix, extractor, correlate.DefaultWeights(), logger)
	require.NoError(t, err)

	f.broker = New(
		[]adapter.Adapter{f.kalshi, f.poly},
		f.markets,
		f.snapshots,
		f.edges,
		engine,
		ix,
		f.quotes,
		f.locks,
		f.bus,
		logger,
	)
	return f
}

func marketFixture(exchange domain.Exchange, id, title string) domain.Market {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Market{
		Key:       domain.MarketKey{Exchange: exchange, NativeID: id},
		Title:     title,
		Status:    domain.MarketStatusOpen,
		OpenTime:  now.Add(-24 * time.Hour),
		CloseTime: now.Add(24 * time.Hour),
	}
}

func TestFetchMarketsIngestsPage(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.kalshi.result = adapter.Result{
		Markets: []domain.Market{
			marketFixture(domain.ExchangeKalshi, "KXBTC", "Will Bitcoin exceed 100k?"),
			marketFixture(domain.ExchangeKalshi, "KXETH", "Will Ethereum exceed 5k?"),
		},
		Snapshots: []domain.QuoteSnapshot{
			{Key: domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"}, Timestamp: now, MidPrice: 0.42},
		},
		Cursor:  "next-page",
		Skipped: 1,
	}

	report, err := f.broker.FetchMarkets(ctx, domain.ExchangeKalshi, adapter.Filters{Limit: 100})
	require.NoError(t, err)

	assert.Equal(t, domain.ExchangeKalshi, report.Exchange)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Upserted)
	assert.Equal(t, 1, report.SkippedInvalid)
	assert.Equal(t, "next-page", report.Cursor)
	assert.Zero(t, report.StaleDropped)

	count, err := f.markets.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// The snapshot landed in both the series and the cache.
	cached, err := f.quotes.Get(ctx, domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"})
	require.NoError(t, err)
	assert.Equal(t, 0.42, cached.MidPrice)

	assert.Equal(t, []string{MarketsUpdatedChannel}, f.bus.published)
}

func TestFetchMarketsCountsInvalidRows(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	bad := marketFixture(domain.ExchangeKalshi, "", "missing id")
	f.kalshi.result = adapter.Result{Markets: []domain.Market{bad}}

	report, err := f.broker.FetchMarkets(ctx, domain.ExchangeKalshi, adapter.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Zero(t, report.Upserted)
	assert.Equal(t, 1, report.SkippedInvalid)
	assert.Empty(t, f.bus.published, "no update signal without upserts")
}

func TestFetchMarketsDropsStaleSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"}

	require.NoError(t, f.snapshots.Append(ctx, domain.QuoteSnapshot{Key: key, Timestamp: now, MidPrice: 0.5}))

	f.kalshi.result = adapter.Result{
		Snapshots: []domain.QuoteSnapshot{
			{Key: key, Timestamp: now.Add(-time.Minute), MidPrice: 0.4},
		},
	}

	report, err := f.broker.FetchMarkets(ctx, domain.ExchangeKalshi, adapter.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.StaleDropped)
}

func TestFetchMarketsSnapshotUnderContendedLock(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"}

	// Another writer holds the market's write lock, so the append must be
	// skipped rather than raced past the staleness check.
	unlock, err := f.locks.Acquire(ctx, "market:"+key.String(), time.Minute)
	require.NoError(t, err)
	defer unlock()

	f.kalshi.result = adapter.Result{
		Snapshots: []domain.QuoteSnapshot{
			{Key: key, Timestamp: now, MidPrice: 0.42},
		},
	}

	report, err := f.broker.FetchMarkets(ctx, domain.ExchangeKalshi, adapter.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.LockContention)
	assert.Zero(t, report.StaleDropped)

	_, err = f.snapshots.Latest(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchMarketsUnknownExchange(t *testing.T) {
	f := newBrokerFixture(t)

	_, err := f.broker.FetchMarkets(context.Background(), domain.Exchange("nyse"), adapter.Filters{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "exchange", verr.Field)
}

func TestFetchMarketsUpstreamFailure(t *testing.T) {
	f := newBrokerFixture(t)
	f.kalshi.fetchErr = &domain.UpstreamError{Exchange: domain.ExchangeKalshi, Err: errors.New("status 502")}

	_, err := f.broker.FetchMarkets(context.Background(), domain.ExchangeKalshi, adapter.Filters{})
	var uerr *domain.UpstreamError
	assert.ErrorAs(t, err, &uerr)
}

func TestGetQuoteCacheMiss(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.kalshi.quote = domain.QuoteSnapshot{Timestamp: now, Bid: 0.41, Ask: 0.43, MidPrice: 0.42}

	snap, err := f.broker.GetQuote(ctx, "KXBTC-26DEC31", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeKalshi, snap.Key.Exchange)
	assert.Equal(t, 0.42, snap.MidPrice)
	assert.Equal(t, 1, f.kalshi.quoteCalls)

	// The fetched quote is now in the series and the cache.
	latest, err := f.snapshots.Latest(ctx, snap.Key)
	require.NoError(t, err)
	assert.Equal(t, 0.42, latest.MidPrice)

	_, err = f.quotes.Get(ctx, snap.Key)
	assert.NoError(t, err)
}

func TestGetQuoteCacheHit(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: "0xdeadbeef"}

	require.NoError(t, f.quotes.Set(ctx, domain.QuoteSnapshot{Key: key, Timestamp: now, MidPrice: 0.7}))

	snap, err := f.broker.GetQuote(ctx, "0xdeadbeef", "")
	require.NoError(t, err)
	assert.Equal(t, 0.7, snap.MidPrice)
	assert.Zero(t, f.poly.quoteCalls, "cache hit must not reach the exchange")
}

func TestGetQuoteUnrecognizedTicker(t *testing.T) {
	f := newBrokerFixture(t)

	_, err := f.broker.GetQuote(context.Background(), "SPY", "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ticker", verr.Field)
}

func TestGetQuoteExplicitExchange(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.kalshi.quote = domain.QuoteSnapshot{Timestamp: now, Bid: 0.30, Ask: 0.34, MidPrice: 0.32}

	// INXD-26DEC31 has no recognizable prefix, so the caller names the venue.
	snap, err := f.broker.GetQuote(ctx, "INXD-26DEC31", domain.ExchangeKalshi)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeKalshi, snap.Key.Exchange)
	assert.Equal(t, "INXD-26DEC31", snap.Key.NativeID)
	assert.Equal(t, 1, f.kalshi.quoteCalls)
}

func TestRecomputeCorrelationsScopes(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	a := marketFixture(domain.ExchangeKalshi, "KXBTC", "Will Bitcoin exceed 100k by December?")
	b := marketFixture(domain.ExchangePolymarket, "0xbtc", "Will Bitcoin exceed 100k by December?")

	f.kalshi.result = adapter.Result{Markets: []domain.Market{a}}
	f.poly.result = adapter.Result{Markets: []domain.Market{b}}
	_, err := f.broker.FetchMarkets(ctx, domain.ExchangeKalshi, adapter.Filters{})
	require.NoError(t, err)
	_, err = f.broker.FetchMarkets(ctx, domain.ExchangePolymarket, adapter.Filters{})
	require.NoError(t, err)

	t.Run("single market", func(t *testing.T) {
		stats, err := f.broker.RecomputeCorrelations(ctx, Scope{Market: &a.Key})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Considered)
		assert.Equal(t, 1, stats.Persisted)
	})

	t.Run("one exchange", func(t *testing.T) {
		stats, err := f.broker.RecomputeCorrelations(ctx, Scope{Exchange: domain.ExchangeKalshi})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Considered)
	})

	t.Run("everything", func(t *testing.T) {
		stats, err := f.broker.RecomputeCorrelations(ctx, Scope{})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Considered)
	})

	edges, err := f.broker.Edges(ctx, 0, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, edges, 1)

	forMarket, err := f.broker.EdgesForMarket(ctx, a.Key)
	require.NoError(t, err)
	assert.Len(t, forMarket, 1)
}
