package index

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingEmbedder is a deterministic bag-of-words embedder. Each distinct
// token is feature-hashed into one of Dim buckets with unit weight and the
// result is L2-normalized, so cosine similarity reduces to token overlap.
// It needs no model weights or network access, which makes it the default
// for local runs and the fixture for tests.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a HashingEmbedder with the given dimensionality.
// Non-positive dims fall back to DefaultDim.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &HashingEmbedder{dim: dim}
}

// Dim returns the vector dimensionality.
func (e *HashingEmbedder) Dim() int {
	return e.dim
}

// Embed hashes the text's distinct tokens into a normalized vector.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dim)] += 1
	}
	normalize(vec)
	return vec, nil
}

// tokenize lowercases the text and splits on non-alphanumeric runes,
// returning the set of distinct tokens.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[field] = struct{}{}
	}
	return tokens
}

// normalize scales the vector to unit length in place. Zero vectors are left
// untouched.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

var _ Embedder = (*HashingEmbedder)(nil)
