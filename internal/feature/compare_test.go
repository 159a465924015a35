package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipredhq/unipred/internal/domain"
)

func binaryFeature(exchange domain.Exchange, id string, open, close time.Time) domain.StructuralFeature {
	return domain.StructuralFeature{
		Key:         domain.MarketKey{Exchange: exchange, NativeID: id},
		StrikeKind:  domain.StrikeKindNone,
		WindowOpen:  open,
		WindowClose: close,
	}
}

func TestCompareDisjointWindows(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := binaryFeature(domain.ExchangeKalshi, "KXA", t0, t0.Add(24*time.Hour))
	b := binaryFeature(domain.ExchangePolymarket, "0xb", t0.Add(48*time.Hour), t0.Add(72*time.Hour))

	assert.Nil(t, Compare(a, b, 0))
}

func TestCompareStrikeKindMismatch(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := binaryFeature(domain.ExchangeKalshi, "KXA", t0, t0.Add(24*time.Hour))
	b := binaryFeature(domain.ExchangePolymarket, "0xb", t0, t0.Add(24*time.Hour))
	a.StrikeKind = domain.StrikeKindNumeric
	a.Strikes = []float64{100000}
	b.StrikeKind = domain.StrikeKindDate
	b.Strikes = []float64{1798761600}

	assert.Nil(t, Compare(a, b, 0))
}

func TestCompareBinaryAgainstLadder(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := binaryFeature(domain.ExchangeKalshi, "KXA", t0, t0.Add(24*time.Hour))
	b := binaryFeature(domain.ExchangePolymarket, "0xb", t0, t0.Add(24*time.Hour))
	a.StrikeKind = domain.StrikeKindNumeric
	a.Strikes = []float64{100000, 105000}

	t.Run("strike component scores zero", func(t *testing.T) {
		got := Compare(a, b, 0)
		require.NotNil(t, got)
		assert.InDelta(t, 0.0, *got, 1e-9)
	})

	t.Run("price series still contributes", func(t *testing.T) {
		start := t0.Add(time.Hour)
		series := make([]domain.SeriesPoint, 5)
		for i := range series {
			series[i] = pt(start.Add(time.Duration(i)*15*time.Minute), 0.2+0.1*float64(i))
		}
		a2, b2 := a, b
		a2.Series = series
		b2.Series = series

		// Strike component 0, series component 1: mean 0.5 with no discount.
		got := Compare(a2, b2, 15*time.Minute)
		require.NotNil(t, got)
		assert.InDelta(t, 0.5, *got, 1e-9)
	})
}

func TestCompareIdenticalBinaryMarkets(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := binaryFeature(domain.ExchangeKalshi, "KXA", t0, t0.Add(24*time.Hour))
	b := binaryFeature(domain.ExchangePolymarket, "0xb", t0, t0.Add(24*time.Hour))

	got := Compare(a, b, 0)
	require.NotNil(t, got)
	assert.InDelta(t, 1.0, *got, 1e-9)
}

func TestComparePartialOverlapDiscount(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := binaryFeature(domain.ExchangeKalshi, "KXA", t0, t0.Add(4*time.Hour))
	b := binaryFeature(domain.ExchangePolymarket, "0xb", t0.Add(2*time.Hour), t0.Add(6*time.Hour))

	// Half of each window overlaps: factor is 0.9 + 0.1*sqrt(0.25).
	got := Compare(a, b, 0)
	require.NotNil(t, got)
	assert.InDelta(t, 0.95, *got, 1e-9)
}

func TestComparePriceSeriesComponent(t *testing.T) {
	open := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	close := open.Add(3 * time.Hour)
	grid := func(vals ...float64) []domain.SeriesPoint {
		start := open.Add(time.Hour)
		out := make([]domain.SeriesPoint, len(vals))
		for i, v := range vals {
			out[i] = pt(start.Add(time.Duration(i)*15*time.Minute), v)
		}
		return out
	}

	a := binaryFeature(domain.ExchangeKalshi, "KXA", open, close)
	a.Series = grid(0.2, 0.3, 0.4, 0.5, 0.6)

	t.Run("tracking prices reinforce", func(t *testing.T) {
		b := binaryFeature(domain.ExchangePolymarket, "0xb", open, close)
		b.Series = grid(0.2, 0.3, 0.4, 0.5, 0.6)

		got := Compare(a, b, 15*time.Minute)
		require.NotNil(t, got)
		assert.InDelta(t, 1.0, *got, 1e-9)
	})

	t.Run("opposed prices drag the score", func(t *testing.T) {
		b := binaryFeature(domain.ExchangePolymarket, "0xb", open, close)
		b.Series = grid(0.8, 0.7, 0.6, 0.5, 0.4)

		got := Compare(a, b, 15*time.Minute)
		require.NotNil(t, got)
		assert.InDelta(t, 0.5, *got, 1e-9)
	})

	t.Run("too little shared history is ignored", func(t *testing.T) {
		b := binaryFeature(domain.ExchangePolymarket, "0xb", open, close)
		b.Series = grid(0.8, 0.7)

		got := Compare(a, b, 15*time.Minute)
		require.NotNil(t, got)
		assert.InDelta(t, 1.0, *got, 1e-9)
	})
}
