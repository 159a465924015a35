package index

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashingEmbedder(DefaultDim)

	v1, err := e.Embed(ctx, "Will Bitcoin exceed 100k?")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "Will Bitcoin exceed 100k?")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, DefaultDim)
}

func TestHashingEmbedderUnitLength(t *testing.T) {
	e := NewHashingEmbedder(DefaultDim)
	vec, err := e.Embed(context.Background(), "will bitcoin exceed 100k")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestHashingEmbedderTokenSetSemantics(t *testing.T) {
	ctx := context.Background()
	e := NewHashingEmbedder(DefaultDim)

	// Repetition, case, and punctuation must not change the vector.
	v1, err := e.Embed(ctx, "bitcoin bitcoin BITCOIN!!!")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, v2, v1)
}

func TestHashingEmbedderEmptyText(t *testing.T) {
	e := NewHashingEmbedder(DefaultDim)
	vec, err := e.Embed(context.Background(), "???")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestHashingEmbedderOverlapCosine(t *testing.T) {
	ctx := context.Background()
	e := NewHashingEmbedder(DefaultDim)

	// Three of four tokens shared: cosine 3/4, text score 0.875.
	a, err := e.Embed(ctx, "will bitcoin exceed 100k")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "will bitcoin pass 100k")
	require.NoError(t, err)

	cos := dot(a, b)
	assert.InDelta(t, 0.75, cos, 1e-6)
	assert.InDelta(t, 0.875, TextScore(cos), 1e-6)
}

func TestTextScore(t *testing.T) {
	tests := []struct {
		cosine float64
		want   float64
	}{
		{1, 1},
		{0, 0.5},
		{-1, 0},
		{1.5, 1},   // clamped
		{-1.5, 0},  // clamped
		{0.5, 0.75},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, TextScore(tt.cosine), 1e-9, "cosine %v", tt.cosine)
	}
	assert.False(t, math.IsNaN(TextScore(math.Inf(1))))
}
