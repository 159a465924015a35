package feature

import "math"

// strikeTolerance is the relative tolerance under which two strike values
// are treated as the same level.
const strikeTolerance = 1e-6

// StrikeSimilarity scores two sorted strike ladders on [0, 1] using edit
// distance over their levels. Two binary markets (no strikes on either side)
// are a perfect match; a strike ladder against a binary market scores zero.
// Unit mismatches between two non-empty ladders are rejected by the caller
// before values are compared.
func StrikeSimilarity(a, b []float64) float64 {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 1
	case len(a) == 0 || len(b) == 0:
		return 0
	}

	dist := editDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1 - float64(dist)/float64(maxLen)
}

// editDistance is the Levenshtein distance between two strike ladders, where
// levels within tolerance of each other count as equal.
func editDistance(a, b []float64) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if strikesEqual(a[i-1], b[j-1]) {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func strikesEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= strikeTolerance*scale
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
