package correlate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Weights)
		wantErr bool
	}{
		{"defaults", func(*Weights) {}, false},
		{"pure text", func(w *Weights) { w.Text, w.Structural = 1, 0 }, false},
		{"negative text", func(w *Weights) { w.Text = -0.1 }, true},
		{"weights sum above one", func(w *Weights) { w.Structural = 0.6 }, true},
		{"weights sum below one", func(w *Weights) { w.Text = 0.3 }, true},
		{"zero penalty", func(w *Weights) { w.MissingStructuralPenalty = 0 }, true},
		{"penalty above one", func(w *Weights) { w.MissingStructuralPenalty = 1.2 }, true},
		{"threshold above one", func(w *Weights) { w.Threshold = 1.5 }, true},
		{"negative threshold", func(w *Weights) { w.Threshold = -0.1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeightsComposite(t *testing.T) {
	w := DefaultWeights()

	t.Run("blended", func(t *testing.T) {
		structural := 0.5
		assert.InDelta(t, 0.6*0.9+0.4*0.5, w.Composite(0.9, &structural), 1e-9)
	})

	t.Run("missing structural is discounted", func(t *testing.T) {
		assert.InDelta(t, 0.9*0.8, w.Composite(0.9, nil), 1e-9)
	})

	t.Run("perfect pair", func(t *testing.T) {
		structural := 1.0
		assert.InDelta(t, 1.0, w.Composite(1.0, &structural), 1e-9)
	})
}

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())
	assert.Equal(t, 0.65, w.Threshold)
}
