package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingEmbedder wraps an Embedder and counts Embed calls.
type countingEmbedder struct {
	Embedder
	calls int
	fail  error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Embedder.Embed(ctx, text)
}

func kalshiMarket(id, title string) domain.Market {
	return domain.Market{
		Key:   domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: id},
		Title: title,
	}
}

func polyMarket(id, title string) domain.Market {
	return domain.Market{
		Key:   domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: id},
		Title: title,
	}
}

func TestIndexUpsertSkipsUnchangedText(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{Embedder: NewHashingEmbedder(DefaultDim)}
	ix := New(emb, memory.NewVectorCache(), testLogger())

	m := kalshiMarket("KXBTC", "Will Bitcoin exceed 100k?")
	require.NoError(t, ix.Upsert(ctx, m))
	require.NoError(t, ix.Upsert(ctx, m))
	assert.Equal(t, 1, emb.calls, "unchanged text must not re-embed")

	m.Title = "Will Bitcoin exceed $100,000?"
	require.NoError(t, ix.Upsert(ctx, m))
	assert.Equal(t, 2, emb.calls)
	assert.Equal(t, 1, ix.Len())
}

func TestIndexUpsertEmbedderFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{Embedder: NewHashingEmbedder(DefaultDim), fail: errors.New("model down")}
	ix := New(emb, memory.NewVectorCache(), testLogger())

	err := ix.Upsert(ctx, kalshiMarket("KXBTC", "title"))
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Zero(t, ix.Len())

	// Recovery: the same market indexes fine once the embedder is back.
	emb.fail = nil
	require.NoError(t, ix.Upsert(ctx, kalshiMarket("KXBTC", "title")))
	assert.Equal(t, 1, ix.Len())
}

func TestIndexNearestExcludesSameExchange(t *testing.T) {
	ctx := context.Background()
	ix := New(NewHashingEmbedder(DefaultDim), memory.NewVectorCache(), testLogger())

	query := kalshiMarket("KXBTC", "will bitcoin exceed 100k by december")
	require.NoError(t, ix.Upsert(ctx, query))
	require.NoError(t, ix.Upsert(ctx, kalshiMarket("KXTWIN", "will bitcoin exceed 100k by december")))
	require.NoError(t, ix.Upsert(ctx, polyMarket("0xbtc", "will bitcoin pass 100k by december")))
	require.NoError(t, ix.Upsert(ctx, polyMarket("0xsenate", "senate confirms nominee before march")))

	got, err := ix.Nearest(ctx, query.Key, 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "same-exchange twin must be excluded")
	assert.Equal(t, "0xbtc", got[0].Key.NativeID, "closest title first")
	assert.Equal(t, "0xsenate", got[1].Key.NativeID)
	assert.Greater(t, got[0].TextScore, got[1].TextScore)
}

func TestIndexNearestTruncatesToK(t *testing.T) {
	ctx := context.Background()
	ix := New(NewHashingEmbedder(DefaultDim), memory.NewVectorCache(), testLogger())

	query := kalshiMarket("KXQ", "alpha beta gamma")
	require.NoError(t, ix.Upsert(ctx, query))
	require.NoError(t, ix.Upsert(ctx, polyMarket("0xa", "alpha beta gamma")))
	require.NoError(t, ix.Upsert(ctx, polyMarket("0xb", "alpha beta delta")))
	require.NoError(t, ix.Upsert(ctx, polyMarket("0xc", "unrelated words entirely")))

	got, err := ix.Nearest(ctx, query.Key, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIndexNearestUnknownQuery(t *testing.T) {
	ix := New(NewHashingEmbedder(DefaultDim), memory.NewVectorCache(), testLogger())
	_, err := ix.Nearest(context.Background(), domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXNOPE"}, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexLoadRestoresFromCache(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewVectorCache()

	first := New(NewHashingEmbedder(DefaultDim), cache, testLogger())
	require.NoError(t, first.Upsert(ctx, kalshiMarket("KXBTC", "will bitcoin exceed 100k")))
	require.NoError(t, first.Upsert(ctx, polyMarket("0xbtc", "will bitcoin pass 100k")))

	// A fresh index over the same cache sees the persisted vectors.
	emb := &countingEmbedder{Embedder: NewHashingEmbedder(DefaultDim)}
	second := New(emb, cache, testLogger())
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, 2, second.Len())
	assert.Zero(t, emb.calls, "load must not re-embed")

	score, err := second.Similarity(
		domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"},
		domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: "0xbtc"},
	)
	require.NoError(t, err)
	assert.Greater(t, score, 0.5)
}

func TestIndexLoadDiscardsWrongDimension(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewVectorCache()

	small := New(NewHashingEmbedder(64), cache, testLogger())
	require.NoError(t, small.Upsert(ctx, kalshiMarket("KXBTC", "title")))

	big := New(NewHashingEmbedder(DefaultDim), cache, testLogger())
	require.NoError(t, big.Load(ctx))
	assert.Zero(t, big.Len())
}

func TestIndexRemove(t *testing.T) {
	ctx := context.Background()
	ix := New(NewHashingEmbedder(DefaultDim), memory.NewVectorCache(), testLogger())

	m := kalshiMarket("KXBTC", "title")
	require.NoError(t, ix.Upsert(ctx, m))
	require.NoError(t, ix.Remove(ctx, m.Key))
	assert.Zero(t, ix.Len())
}
