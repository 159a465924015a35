package memory

import (
	"context"
	"sync"

	"github.com/unipredhq/unipred/internal/domain"
)

// QuoteCache is an in-memory implementation of domain.QuoteCache.
type QuoteCache struct {
	mu   sync.RWMutex
	data map[domain.MarketKey]domain.QuoteSnapshot
}

// NewQuoteCache creates an empty in-memory quote cache.
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{
		data: make(map[domain.MarketKey]domain.QuoteSnapshot),
	}
}

// Set stores the snapshot as the latest quote for its market.
func (c *QuoteCache) Set(_ context.Context, snap domain.QuoteSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[snap.Key] = snap
	return nil
}

// Get retrieves the latest cached quote. Returns domain.ErrNotFound if
// absent.
func (c *QuoteCache) Get(_ context.Context, key domain.MarketKey) (domain.QuoteSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.data[key]
	if !ok {
		return domain.QuoteSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
