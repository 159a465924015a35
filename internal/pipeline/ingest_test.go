package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/broker"
	"github.com/unipredhq/unipred/internal/correlate"
	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/feature"
	"github.com/unipredhq/unipred/internal/index"
	"github.com/unipredhq/unipred/internal/store/memory"
)

// capturingAdapter records the filters of every page fetch and serves one
// canned page per call.
type capturingAdapter struct {
	exchange domain.Exchange
	pages    []adapter.Result
	filters  []adapter.Filters
}

func (c *capturingAdapter) Exchange() domain.Exchange { return c.exchange }

func (c *capturingAdapter) FetchMarkets(_ context.Context, f adapter.Filters) (adapter.Result, error) {
	c.filters = append(c.filters, f)
	if len(c.filters) > len(c.pages) {
		return adapter.Result{}, nil
	}
	return c.pages[len(c.filters)-1], nil
}

func (c *capturingAdapter) FetchQuote(context.Context, string) (domain.QuoteSnapshot, error) {
	return domain.QuoteSnapshot{}, domain.ErrNotFound
}

func newIngestBroker(t *testing.T, ad adapter.Adapter) *broker.Broker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	markets := memory.NewMarketStore()
	snapshots := memory.NewSnapshotStore()
	edges := memory.NewEdgeStore()
	ix := index.New(index.NewHashingEmbedder(index.DefaultDim), memory.NewVectorCache(), logger)
	extractor := feature.NewExtractor(snapshots, 0, logger)
	engine, err := correlate.NewEngine(markets, edges, ix, extractor, correlate.DefaultWeights(), logger)
	require.NoError(t, err)

	return broker.New(
		[]adapter.Adapter{ad},
		markets, snapshots, edges, engine, ix,
		memory.NewQuoteCache(), memory.NewLockManager(), nil, logger,
	)
}

func TestIngestorSweepsOpenMarkets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	market := func(id, cursor string) adapter.Result {
		return adapter.Result{
			Markets: []domain.Market{{
				Key:       domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: id},
				Title:     "Will Bitcoin exceed 100k by December?",
				Status:    domain.MarketStatusOpen,
				OpenTime:  now.Add(-24 * time.Hour),
				CloseTime: now.Add(24 * time.Hour),
			}},
			Cursor: cursor,
		}
	}

	ad := &capturingAdapter{
		exchange: domain.ExchangeKalshi,
		pages:    []adapter.Result{market("KXBTC", "next"), market("KXETH", "")},
	}
	in := NewIngestor(newIngestBroker(t, ad), IngestorConfig{
		Exchanges: []domain.Exchange{domain.ExchangeKalshi},
		PageLimit: 50,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, in.Run(context.Background()))

	require.Len(t, ad.filters, 2)
	for _, f := range ad.filters {
		assert.Equal(t, string(domain.MarketStatusOpen), f.Status)
		assert.Equal(t, 50, f.Limit)
	}
	assert.Equal(t, "", ad.filters[0].Cursor)
	assert.Equal(t, "next", ad.filters[1].Cursor)
}
