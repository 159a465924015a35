package feature

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/store/memory"
)

func TestExtractorBuildsFeature(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXBTC"}

	for i, mid := range []float64{0.4, 0.45, 0.5} {
		require.NoError(t, snapshots.Append(ctx, domain.QuoteSnapshot{
			Key:       key,
			Timestamp: now.Add(time.Duration(i-3) * time.Hour),
			MidPrice:  mid,
		}))
	}
	// A snapshot past the lookback horizon must not leak into the series.
	require.NoError(t, snapshots.Append(ctx, domain.QuoteSnapshot{
		Key:       domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXOLD"},
		Timestamp: now.Add(-100 * time.Hour),
		MidPrice:  0.9,
	}))

	market := domain.Market{
		Key:       key,
		Title:     "Will Bitcoin exceed 100k?",
		OpenTime:  now.Add(-24 * time.Hour),
		CloseTime: now.Add(24 * time.Hour),
		Strikes: []domain.Strike{
			{Kind: domain.StrikeKindNumeric, Value: 105000},
			{Kind: domain.StrikeKindNumeric, Value: 100000},
		},
	}

	ex := NewExtractor(snapshots, 72*time.Hour, logger)
	ex.now = func() time.Time { return now }

	feat, err := ex.Extract(ctx, market)
	require.NoError(t, err)

	assert.Equal(t, key, feat.Key)
	assert.Equal(t, domain.StrikeKindNumeric, feat.StrikeKind)
	assert.Equal(t, []float64{100000, 105000}, feat.Strikes, "strikes sorted ascending")
	assert.Equal(t, market.OpenTime, feat.WindowOpen)
	assert.Equal(t, market.CloseTime, feat.WindowClose)
	assert.Equal(t, now, feat.ComputedAt)

	require.Len(t, feat.Series, 3)
	assert.Equal(t, 0.4, feat.Series[0].MidPrice)
	assert.Equal(t, 0.5, feat.Series[2].MidPrice)
}

func TestExtractorLookbackWindow(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: "0xbtc"}

	require.NoError(t, snapshots.Append(ctx, domain.QuoteSnapshot{
		Key:       key,
		Timestamp: now.Add(-10 * time.Hour),
		MidPrice:  0.3,
	}))
	require.NoError(t, snapshots.Append(ctx, domain.QuoteSnapshot{
		Key:       key,
		Timestamp: now.Add(-time.Hour),
		MidPrice:  0.6,
	}))

	ex := NewExtractor(snapshots, 2*time.Hour, logger)
	ex.now = func() time.Time { return now }

	feat, err := ex.Extract(ctx, domain.Market{Key: key, Title: "t"})
	require.NoError(t, err)
	require.Len(t, feat.Series, 1, "only history inside the lookback survives")
	assert.Equal(t, 0.6, feat.Series[0].MidPrice)
}

func TestExtractorNoHistory(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := NewExtractor(memory.NewSnapshotStore(), 0, logger)

	feat, err := ex.Extract(ctx, domain.Market{
		Key:   domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: "KXEMPTY"},
		Title: "quiet market",
	})
	require.NoError(t, err)
	assert.Empty(t, feat.Series)
	assert.Equal(t, domain.StrikeKindNone, feat.StrikeKind)
}
