package memory

import (
	"context"
	"sync"

	"github.com/unipredhq/unipred/internal/domain"
)

// VectorCache is an in-memory implementation of domain.VectorCache.
type VectorCache struct {
	mu   sync.RWMutex
	data map[domain.MarketKey]domain.EmbeddingVector
}

// NewVectorCache creates an empty in-memory vector cache.
func NewVectorCache() *VectorCache {
	return &VectorCache{
		data: make(map[domain.MarketKey]domain.EmbeddingVector),
	}
}

// Put stores the vector under its market key.
func (c *VectorCache) Put(_ context.Context, vec domain.EmbeddingVector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[vec.Key] = cloneVector(vec)
	return nil
}

// Get retrieves a cached vector. Returns domain.ErrNotFound if absent.
func (c *VectorCache) Get(_ context.Context, key domain.MarketKey) (domain.EmbeddingVector, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vec, ok := c.data[key]
	if !ok {
		return domain.EmbeddingVector{}, domain.ErrNotFound
	}
	return cloneVector(vec), nil
}

// All returns every cached vector in unspecified order.
func (c *VectorCache) All(_ context.Context) ([]domain.EmbeddingVector, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.EmbeddingVector, 0, len(c.data))
	for _, vec := range c.data {
		result = append(result, cloneVector(vec))
	}
	return result, nil
}

// Invalidate removes a cached vector. Removing an absent key is a no-op.
func (c *VectorCache) Invalidate(_ context.Context, key domain.MarketKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func cloneVector(v domain.EmbeddingVector) domain.EmbeddingVector {
	c := v
	if v.Vector != nil {
		c.Vector = append([]float32(nil), v.Vector...)
	}
	return c
}

var _ domain.VectorCache = (*VectorCache)(nil)
