// Package index maintains the text embedding index used for candidate
// retrieval. Markets are embedded from their canonical text and queried by
// cosine similarity.
package index

import (
	"context"
)

// DefaultDim is the embedding dimensionality used when none is configured.
// It matches the MiniLM family of sentence encoders.
const DefaultDim = 384

// Embedder turns canonical market text into a fixed-size vector. Embed must
// be deterministic for a given input so re-indexing an unchanged catalog is a
// no-op.
type Embedder interface {
	Dim() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
