package domain

import "time"

// SeriesPoint is one sample of a resampled mid-price series.
type SeriesPoint struct {
	Timestamp time.Time
	MidPrice  float64
}

// StructuralFeature is the derived, comparable signature of a market: its
// normalized strike set, a mid-price series resampled onto a canonical time
// grid, and its open/close window. Recomputed whenever new quote snapshots
// arrive for the underlying market.
type StructuralFeature struct {
	Key         MarketKey
	StrikeKind  StrikeKind
	Strikes     []float64 // sorted ascending
	Series      []SeriesPoint
	WindowOpen  time.Time
	WindowClose time.Time
	ComputedAt  time.Time
}

// Window returns the market's open interval. A zero close time means the
// window is considered open-ended.
func (f StructuralFeature) Window() (time.Time, time.Time) {
	return f.WindowOpen, f.WindowClose
}
