package domain

import "time"

// PairKey identifies an unordered cross-exchange market pair. It is always
// canonicalized so A < B under MarketKey.Less, which guarantees at most one
// edge per pair regardless of argument order.
type PairKey struct {
	A MarketKey
	B MarketKey
}

// NewPairKey canonicalizes the pair ordering.
func NewPairKey(a, b MarketKey) PairKey {
	if b.Less(a) {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// CrossExchange reports whether the two markets live on different venues.
// Same-exchange pairs are never correlated.
func (p PairKey) CrossExchange() bool {
	return p.A.Exchange != p.B.Exchange
}

// String renders "a|b" with both keys in canonical order.
func (p PairKey) String() string {
	return p.A.String() + "|" + p.B.String()
}

// CorrelationEdge is the output artifact of the correlation engine: a scored,
// auditable link between two markets on different exchanges that appear to
// track the same real-world event. The two markets are never merged.
type CorrelationEdge struct {
	Pair            PairKey
	TextScore       float64
	StructuralScore *float64 // nil when the pair is structurally incomparable
	CompositeScore  float64
	ComputedAt      time.Time
}

// Equal compares two edges field by field, treating nil structural scores as
// equal. Recomputing an unchanged pair must produce an Equal edge.
func (e CorrelationEdge) Equal(other CorrelationEdge) bool {
	if e.Pair != other.Pair || e.TextScore != other.TextScore || e.CompositeScore != other.CompositeScore {
		return false
	}
	if (e.StructuralScore == nil) != (other.StructuralScore == nil) {
		return false
	}
	if e.StructuralScore != nil && *e.StructuralScore != *other.StructuralScore {
		return false
	}
	return true
}
