package domain

import "time"

// QuoteSnapshot is a point-in-time price observation for a canonical market.
// MidPrice is always on the [0,1] probability scale; the owning adapter is
// responsible for converting from the venue's native convention before a
// snapshot reaches the store. Snapshots are append-only and form a time
// series per market.
type QuoteSnapshot struct {
	Key       MarketKey
	Timestamp time.Time
	Bid       float64
	Ask       float64
	MidPrice  float64
	Volume    float64
}

// Validate reports whether the snapshot satisfies the store invariants:
// mid price on [0,1] and bid ≤ ask when both sides are present.
func (q QuoteSnapshot) Validate() error {
	if q.Key.NativeID == "" {
		return &ValidationError{Field: "key", Reason: "missing native id"}
	}
	if q.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "zero timestamp"}
	}
	if q.MidPrice < 0 || q.MidPrice > 1 {
		return &ValidationError{Field: "mid_price", Reason: "outside [0,1]"}
	}
	if q.Bid > 0 && q.Ask > 0 && q.Bid > q.Ask {
		return &ValidationError{Field: "bid", Reason: "bid above ask"}
	}
	return nil
}
