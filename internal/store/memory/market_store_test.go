package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/domain"
)

func TestMarketStoreUpsertPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMarketStore()

	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return t0 }

	key := domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"}
	require.NoError(t, store.Upsert(ctx, domain.Market{
		Key:    key,
		Title:  "Will BTC exceed 100k?",
		Status: domain.MarketStatusOpen,
	}))

	first, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, t0, first.CreatedAt)
	assert.Equal(t, t0, first.UpdatedAt)

	// Re-upsert with new mutable fields at a later time.
	t1 := t0.Add(time.Hour)
	store.now = func() time.Time { return t1 }
	require.NoError(t, store.Upsert(ctx, domain.Market{
		Key:    key,
		Title:  "Will BTC exceed $100,000?",
		Status: domain.MarketStatusClosed,
	}))

	second, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, t0, second.CreatedAt, "created_at never changes")
	assert.Equal(t, t1, second.UpdatedAt)
	assert.Equal(t, "Will BTC exceed $100,000?", second.Title)
	assert.Equal(t, domain.MarketStatusClosed, second.Status)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "re-upsert must not create a second record")
}

func TestMarketStoreUpsertRejectsEmptyID(t *testing.T) {
	store := NewMarketStore()
	err := store.Upsert(context.Background(), domain.Market{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "native_id", verr.Field)
}

func TestMarketStoreGetNotFound(t *testing.T) {
	store := NewMarketStore()
	_, err := store.Get(context.Background(), domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXNOPE"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketStoreListOpen(t *testing.T) {
	ctx := context.Background()
	store := NewMarketStore()

	markets := []domain.Market{
		{Key: domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXB"}, Status: domain.MarketStatusOpen},
		{Key: domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXA"}, Status: domain.MarketStatusOpen},
		{Key: domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXC"}, Status: domain.MarketStatusClosed},
		{Key: domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: "0xa"}, Status: domain.MarketStatusOpen},
	}
	require.NoError(t, store.UpsertBatch(ctx, markets))

	open, err := store.ListOpen(ctx, domain.ExchangeKalshi, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "KXA", open[0].Key.NativeID, "ordered by key")
	assert.Equal(t, "KXB", open[1].Key.NativeID)

	paged, err := store.ListOpen(ctx, domain.ExchangeKalshi, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "KXB", paged[0].Key.NativeID)

	empty, err := store.ListOpen(ctx, domain.ExchangeKalshi, domain.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMarketStoreCloneIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMarketStore()

	key := domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"}
	require.NoError(t, store.Upsert(ctx, domain.Market{
		Key:      key,
		Status:   domain.MarketStatusOpen,
		Outcomes: []string{"Yes", "No"},
		Strikes:  []domain.Strike{{Kind: domain.StrikeKindNumeric, Value: 100_000}},
	}))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	got.Outcomes[0] = "mutated"
	got.Strikes[0].Value = 0

	again, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Yes", again.Outcomes[0])
	assert.Equal(t, 100_000.0, again.Strikes[0].Value)
}
