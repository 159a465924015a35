package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// MarketStore is an in-memory implementation of domain.MarketStore, used by
// tests and the ephemeral run mode.
type MarketStore struct {
	mu   sync.RWMutex
	data map[domain.MarketKey]domain.Market
	now  func() time.Time
}

// NewMarketStore creates an empty in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		data: make(map[domain.MarketKey]domain.Market),
		now:  time.Now,
	}
}

// Upsert inserts or merges the market keyed by (exchange, native_id). Identity
// fields never change; a re-upsert refreshes everything else.
func (s *MarketStore) Upsert(_ context.Context, m domain.Market) error {
	if m.Key.NativeID == "" {
		return &domain.ValidationError{Field: "native_id", Reason: "empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if prev, ok := s.data[m.Key]; ok {
		m.CreatedAt = prev.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.data[m.Key] = cloneMarket(m)
	return nil
}

// UpsertBatch upserts every market, stopping at the first error.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	for _, m := range markets {
		if err := s.Upsert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a market by key. Returns domain.ErrNotFound if absent.
func (s *MarketStore) Get(_ context.Context, key domain.MarketKey) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[key]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return cloneMarket(m), nil
}

// ListOpen returns open markets for one exchange, ordered by key.
func (s *MarketStore) ListOpen(_ context.Context, exchange domain.Exchange, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Market
	for _, m := range s.data {
		if m.Key.Exchange == exchange && m.Status == domain.MarketStatusOpen {
			result = append(result, cloneMarket(m))
		}
	}
	return paginate(sortMarkets(result), opts), nil
}

// List returns all markets ordered by key.
func (s *MarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Market, 0, len(s.data))
	for _, m := range s.data {
		result = append(result, cloneMarket(m))
	}
	return paginate(sortMarkets(result), opts), nil
}

// Count returns the number of stored markets.
func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

func sortMarkets(markets []domain.Market) []domain.Market {
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].Key.Less(markets[j].Key)
	})
	return markets
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func cloneMarket(m domain.Market) domain.Market {
	c := m
	if m.Outcomes != nil {
		c.Outcomes = append([]string(nil), m.Outcomes...)
	}
	if m.Strikes != nil {
		c.Strikes = append([]domain.Strike(nil), m.Strikes...)
	}
	return c
}

var _ domain.MarketStore = (*MarketStore)(nil)
