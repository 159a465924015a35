// Package feature extracts structural features from markets and scores
// structural similarity between cross-exchange pairs.
package feature

import (
	"math"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// DefaultResampleStep is the cadence both series are resampled to before
// price correlation.
const DefaultResampleStep = 15 * time.Minute

// minCommonSamples is the fewest shared grid points for which a price
// correlation is meaningful.
const minCommonSamples = 3

// Resample projects an ascending series onto a fixed grid over [from, to]
// using linear interpolation between surrounding observations. Grid points
// outside the observed range are omitted, so the result covers only the span
// the series actually saw.
func Resample(points []domain.SeriesPoint, from, to time.Time, step time.Duration) []domain.SeriesPoint {
	if len(points) == 0 || step <= 0 || !to.After(from) {
		return nil
	}

	var out []domain.SeriesPoint
	for t := from; !t.After(to); t = t.Add(step) {
		v, ok := interpolate(points, t)
		if !ok {
			continue
		}
		out = append(out, domain.SeriesPoint{Timestamp: t, MidPrice: v})
	}
	return out
}

// interpolate evaluates the series at t. It returns false outside the
// observed range; exact hits and single-point series return the observation.
func interpolate(points []domain.SeriesPoint, t time.Time) (float64, bool) {
	first, last := points[0], points[len(points)-1]
	if t.Before(first.Timestamp) || t.After(last.Timestamp) {
		return 0, false
	}

	// Binary search for the first point at or after t.
	lo, hi := 0, len(points)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if points[mid].Timestamp.Before(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	right := points[lo]
	if right.Timestamp.Equal(t) || lo == 0 {
		return right.MidPrice, true
	}

	left := points[lo-1]
	span := right.Timestamp.Sub(left.Timestamp).Seconds()
	if span <= 0 {
		return right.MidPrice, true
	}
	frac := t.Sub(left.Timestamp).Seconds() / span
	return left.MidPrice + frac*(right.MidPrice-left.MidPrice), true
}

// Pearson computes the correlation coefficient of two equal-length samples.
// It returns false when fewer than minCommonSamples points are given or when
// either sample has zero variance.
func Pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n != len(ys) || n < minCommonSamples {
		return 0, false
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

// alignSeries resamples both series onto the shared grid covering the
// overlap of their spans and returns the paired mid prices.
func alignSeries(a, b []domain.SeriesPoint, step time.Duration) (xs, ys []float64) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}

	from := maxTime(a[0].Timestamp, b[0].Timestamp)
	to := minTime(a[len(a)-1].Timestamp, b[len(b)-1].Timestamp)
	if !to.After(from) {
		return nil, nil
	}

	// Anchor the grid at the epoch so both series land on identical points.
	from = from.Truncate(step)
	if from.Before(maxTime(a[0].Timestamp, b[0].Timestamp)) {
		from = from.Add(step)
	}

	for t := from; !t.After(to); t = t.Add(step) {
		va, okA := interpolate(a, t)
		vb, okB := interpolate(b, t)
		if !okA || !okB {
			continue
		}
		xs = append(xs, va)
		ys = append(ys, vb)
	}
	return xs, ys
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
