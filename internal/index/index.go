package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// DefaultK is the neighbor count used when a query does not specify one.
const DefaultK = 25

// Neighbor is one k-NN result: a candidate market and its text score on
// [0, 1], derived from cosine similarity.
type Neighbor struct {
	Key       domain.MarketKey
	TextScore float64
}

// Index holds unit-length embedding vectors for every indexed market and
// answers cross-exchange nearest-neighbor queries by exhaustive cosine scan.
// Vectors are persisted through a domain.VectorCache so restarts skip
// re-embedding unchanged markets.
type Index struct {
	embedder Embedder
	cache    domain.VectorCache
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	vectors map[domain.MarketKey]entry
}

type entry struct {
	vector      []float32
	contentHash string
}

// New creates an empty Index over the given embedder and vector cache.
func New(embedder Embedder, cache domain.VectorCache, logger *slog.Logger) *Index {
	return &Index{
		embedder: embedder,
		cache:    cache,
		logger:   logger.With("component", "index"),
		now:      time.Now,
		vectors:  make(map[domain.MarketKey]entry),
	}
}

// Load warms the index from the vector cache. Cached vectors with a stale
// dimensionality are invalidated and dropped.
func (ix *Index) Load(ctx context.Context) error {
	cached, err := ix.cache.All(ctx)
	if err != nil {
		return fmt.Errorf("index: load vectors: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	loaded := 0
	for _, vec := range cached {
		if len(vec.Vector) != ix.embedder.Dim() {
			_ = ix.cache.Invalidate(ctx, vec.Key)
			continue
		}
		ix.vectors[vec.Key] = entry{vector: vec.Vector, contentHash: vec.ContentHash}
		loaded++
	}

	ix.logger.InfoContext(ctx, "index loaded", "vectors", loaded, "discarded", len(cached)-loaded)
	return nil
}

// Upsert embeds the market's canonical text and stores the vector. Markets
// whose text is unchanged since the last upsert are skipped. Embedder
// failures surface as retryable ErrIndexUnavailable.
func (ix *Index) Upsert(ctx context.Context, m domain.Market) error {
	text := m.EmbedText()
	hash := domain.ContentHash(text)

	ix.mu.RLock()
	prev, ok := ix.vectors[m.Key]
	ix.mu.RUnlock()
	if ok && prev.contentHash == hash {
		return nil
	}

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("index: embed %s: %w", m.Key, errors.Join(domain.ErrIndexUnavailable, err))
	}
	if len(vec) != ix.embedder.Dim() {
		return fmt.Errorf("index: embed %s: %w", m.Key, domain.ErrDimensionMismatch)
	}

	if err := ix.cache.Put(ctx, domain.EmbeddingVector{
		Key:         m.Key,
		Vector:      vec,
		ContentHash: hash,
		ComputedAt:  ix.now().UTC(),
	}); err != nil {
		return fmt.Errorf("index: persist vector %s: %w", m.Key, err)
	}

	ix.mu.Lock()
	ix.vectors[m.Key] = entry{vector: vec, contentHash: hash}
	ix.mu.Unlock()
	return nil
}

// Remove drops a market from the index and its persisted vector.
func (ix *Index) Remove(ctx context.Context, key domain.MarketKey) error {
	ix.mu.Lock()
	delete(ix.vectors, key)
	ix.mu.Unlock()

	if err := ix.cache.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("index: remove vector %s: %w", key, err)
	}
	return nil
}

// Len returns the number of indexed markets.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Nearest returns up to k cross-exchange neighbors of the given market,
// highest text score first. Same-exchange candidates are never returned. The
// query market itself must already be indexed.
func (ix *Index) Nearest(_ context.Context, key domain.MarketKey, k int) ([]Neighbor, error) {
	if k <= 0 {
		k = DefaultK
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	query, ok := ix.vectors[key]
	if !ok {
		return nil, fmt.Errorf("index: query %s: %w", key, domain.ErrNotFound)
	}

	neighbors := make([]Neighbor, 0, len(ix.vectors))
	for candidate, e := range ix.vectors {
		if candidate.Exchange == key.Exchange {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Key:       candidate,
			TextScore: TextScore(dot(query.vector, e.vector)),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].TextScore != neighbors[j].TextScore {
			return neighbors[i].TextScore > neighbors[j].TextScore
		}
		return neighbors[i].Key.Less(neighbors[j].Key)
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Similarity returns the text score between two indexed markets. Both must
// already be in the index.
func (ix *Index) Similarity(a, b domain.MarketKey) (float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ea, ok := ix.vectors[a]
	if !ok {
		return 0, fmt.Errorf("index: similarity %s: %w", a, domain.ErrNotFound)
	}
	eb, ok := ix.vectors[b]
	if !ok {
		return 0, fmt.Errorf("index: similarity %s: %w", b, domain.ErrNotFound)
	}
	return TextScore(dot(ea.vector, eb.vector)), nil
}

// TextScore maps cosine similarity on [-1, 1] to a score on [0, 1].
func TextScore(cosine float64) float64 {
	score := (1 + cosine) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
