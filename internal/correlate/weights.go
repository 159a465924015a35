// Package correlate computes and persists correlation edges between
// cross-exchange market pairs.
package correlate

import "fmt"

// Weights controls how text and structural scores blend into the composite,
// and the persistence threshold below which a pair leaves no edge.
type Weights struct {
	Text                     float64
	Structural               float64
	MissingStructuralPenalty float64
	Threshold                float64
}

// DefaultWeights returns the standard scoring policy.
func DefaultWeights() Weights {
	return Weights{
		Text:                     0.6,
		Structural:               0.4,
		MissingStructuralPenalty: 0.8,
		Threshold:                0.65,
	}
}

// Validate checks the weights are usable.
func (w Weights) Validate() error {
	if w.Text < 0 || w.Structural < 0 {
		return fmt.Errorf("correlate: negative weight (text=%v structural=%v)", w.Text, w.Structural)
	}
	if sum := w.Text + w.Structural; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("correlate: text and structural weights must sum to 1, got %v", sum)
	}
	if w.MissingStructuralPenalty <= 0 || w.MissingStructuralPenalty > 1 {
		return fmt.Errorf("correlate: missing-structural penalty must be on (0, 1], got %v", w.MissingStructuralPenalty)
	}
	if w.Threshold < 0 || w.Threshold > 1 {
		return fmt.Errorf("correlate: threshold must be on [0, 1], got %v", w.Threshold)
	}
	return nil
}

// Composite blends the text score with an optional structural score. A pair
// with no structural signal scores on text alone, discounted so that pure
// text matches rank below corroborated ones.
func (w Weights) Composite(text float64, structural *float64) float64 {
	if structural == nil {
		return text * w.MissingStructuralPenalty
	}
	return w.Text*text + w.Structural**structural
}
