package feature

import (
	"math"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// Compare scores the structural similarity of two features on [0, 1]. A nil
// result means the pair is structurally incomparable, not that it scored
// zero: settlement windows that never overlap, or strike ladders denominated
// in different units (dates against prices), carry no structural signal
// either way. A binary market against a laddered one is comparable; the
// missing ladder just scores zero on the strike component.
func Compare(a, b domain.StructuralFeature, step time.Duration) *float64 {
	if step <= 0 {
		step = DefaultResampleStep
	}

	overlapA, overlapB, ok := windowOverlap(a, b)
	if !ok {
		return nil
	}
	if a.StrikeKind != b.StrikeKind &&
		a.StrikeKind != domain.StrikeKindNone &&
		b.StrikeKind != domain.StrikeKindNone {
		return nil
	}

	var components []float64
	components = append(components, StrikeSimilarity(a.Strikes, b.Strikes))

	if xs, ys := alignSeries(a.Series, b.Series, step); xs != nil {
		if r, ok := Pearson(xs, ys); ok {
			components = append(components, (r+1)/2)
		}
	}

	var sum float64
	for _, c := range components {
		sum += c
	}
	mean := sum / float64(len(components))

	// Pairs whose settlement windows barely overlap are discounted even when
	// their strikes and series agree.
	factor := 0.9 + 0.1*math.Sqrt(overlapA*overlapB)
	score := clamp01(mean * factor)
	return &score
}

// windowOverlap returns the overlap of the two settlement windows as a
// fraction of each window's length. ok is false when the windows are
// disjoint or degenerate.
func windowOverlap(a, b domain.StructuralFeature) (fracA, fracB float64, ok bool) {
	start := maxTime(a.WindowOpen, b.WindowOpen)
	end := minTime(a.WindowClose, b.WindowClose)

	inter := end.Sub(start)
	if inter <= 0 {
		return 0, 0, false
	}

	lenA := a.WindowClose.Sub(a.WindowOpen)
	lenB := b.WindowClose.Sub(b.WindowOpen)
	if lenA <= 0 || lenB <= 0 {
		return 0, 0, false
	}

	return inter.Seconds() / lenA.Seconds(), inter.Seconds() / lenB.Seconds(), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
