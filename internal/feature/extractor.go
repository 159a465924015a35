package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// DefaultLookback bounds how much price history feeds the structural series.
const DefaultLookback = 72 * time.Hour

// Extractor builds structural features from stored markets and their quote
// history.
type Extractor struct {
	snapshots domain.SnapshotStore
	lookback  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewExtractor creates an Extractor over the given snapshot store.
func NewExtractor(snapshots domain.SnapshotStore, lookback time.Duration, logger *slog.Logger) *Extractor {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Extractor{
		snapshots: snapshots,
		lookback:  lookback,
		logger:    logger.With("component", "feature"),
		now:       time.Now,
	}
}

// Extract assembles the market's structural feature: its sorted strike
// ladder, settlement window, and recent mid-price series. A market with no
// stored quotes still yields a feature; the price component is simply absent
// from later comparisons.
func (e *Extractor) Extract(ctx context.Context, m domain.Market) (domain.StructuralFeature, error) {
	now := e.now().UTC()

	snaps, err := e.snapshots.Range(ctx, m.Key, now.Add(-e.lookback), now)
	if err != nil {
		return domain.StructuralFeature{}, fmt.Errorf("feature: load series for %s: %w", m.Key, err)
	}

	series := make([]domain.SeriesPoint, 0, len(snaps))
	for _, snap := range snaps {
		series = append(series, domain.SeriesPoint{
			Timestamp: snap.Timestamp,
			MidPrice:  snap.MidPrice,
		})
	}

	strikes := make([]float64, 0, len(m.Strikes))
	for _, s := range m.Strikes {
		strikes = append(strikes, s.Value)
	}
	sort.Float64s(strikes)

	return domain.StructuralFeature{
		Key:         m.Key,
		StrikeKind:  m.StrikeKindOf(),
		Strikes:     strikes,
		Series:      series,
		WindowOpen:  m.OpenTime,
		WindowClose: m.CloseTime,
		ComputedAt:  now,
	}, nil
}
