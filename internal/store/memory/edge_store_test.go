package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/domain"
)

func testEdge(aID, bID string, composite float64) domain.CorrelationEdge {
	return domain.CorrelationEdge{
		Pair: domain.NewPairKey(
			domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: aID},
			domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: bID},
		),
		TextScore:      composite,
		CompositeScore: composite,
		ComputedAt:     time.Now().UTC(),
	}
}

func TestEdgeStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewEdgeStore()

	edge := testEdge("KXA", "0xa", 0.70)
	require.NoError(t, store.Upsert(ctx, edge))

	edge.CompositeScore = 0.85
	require.NoError(t, store.Upsert(ctx, edge))

	got, err := store.Get(ctx, edge.Pair)
	require.NoError(t, err)
	assert.Equal(t, 0.85, got.CompositeScore)

	all, err := store.List(ctx, 0, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert replaces, never appends")
}

func TestEdgeStoreRejectsSameExchange(t *testing.T) {
	store := NewEdgeStore()
	edge := domain.CorrelationEdge{
		Pair: domain.NewPairKey(
			domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXA"},
			domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXB"},
		),
	}
	assert.ErrorIs(t, store.Upsert(context.Background(), edge), domain.ErrSameExchange)
}

func TestEdgeStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewEdgeStore()

	require.NoError(t, store.Upsert(ctx, testEdge("KXA", "0xa", 0.70)))
	require.NoError(t, store.Upsert(ctx, testEdge("KXB", "0xb", 0.90)))
	require.NoError(t, store.Upsert(ctx, testEdge("KXC", "0xc", 0.66)))

	t.Run("best first", func(t *testing.T) {
		got, err := store.List(ctx, 0, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 0.90, got[0].CompositeScore)
		assert.Equal(t, 0.66, got[2].CompositeScore)
	})

	t.Run("min composite filter", func(t *testing.T) {
		got, err := store.List(ctx, 0.7, domain.ListOpts{})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.List(ctx, 0, domain.ListOpts{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 0.90, got[0].CompositeScore)
	})
}

func TestEdgeStoreListForMarket(t *testing.T) {
	ctx := context.Background()
	store := NewEdgeStore()

	require.NoError(t, store.Upsert(ctx, testEdge("KXA", "0xa", 0.70)))
	require.NoError(t, store.Upsert(ctx, testEdge("KXA", "0xb", 0.80)))
	require.NoError(t, store.Upsert(ctx, testEdge("KXB", "0xa", 0.75)))

	got, err := store.ListForMarket(ctx, domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXA"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.80, got[0].CompositeScore, "best edge first")
}

func TestEdgeStoreGetNotFound(t *testing.T) {
	store := NewEdgeStore()
	_, err := store.Get(context.Background(), testEdge("KXA", "0xa", 0).Pair)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
