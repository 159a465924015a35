package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EmbeddingVector is a fixed-dimension vector representation of a market's
// text, keyed by the market's canonical identity. ContentHash records the
// hash of the text the vector was computed from, so the index can skip
// recomputation when the text has not changed materially.
type EmbeddingVector struct {
	Key         MarketKey
	Vector      []float32
	ContentHash string
	ComputedAt  time.Time
}

// ContentHash returns the hex sha256 of the given text. Markets whose embed
// text hashes identically are never re-embedded.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
