package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// SnapshotStore is an in-memory implementation of domain.SnapshotStore.
// Series are kept sorted ascending by timestamp; appends that do not advance
// a market's series are rejected with ErrStaleSnapshot.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[domain.MarketKey][]domain.QuoteSnapshot
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[domain.MarketKey][]domain.QuoteSnapshot),
	}
}

// Append adds a snapshot to its market's series. A snapshot whose timestamp
// is not strictly newer than the stored latest is dropped with
// ErrStaleSnapshot.
func (s *SnapshotStore) Append(_ context.Context, snap domain.QuoteSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.data[snap.Key]
	if n := len(series); n > 0 && !snap.Timestamp.After(series[n-1].Timestamp) {
		return domain.ErrStaleSnapshot
	}
	s.data[snap.Key] = append(series, snap)
	return nil
}

// Latest returns the newest snapshot for the market.
func (s *SnapshotStore) Latest(_ context.Context, key domain.MarketKey) (domain.QuoteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[key]
	if len(series) == 0 {
		return domain.QuoteSnapshot{}, domain.ErrNotFound
	}
	return series[len(series)-1], nil
}

// Range returns the market's snapshots with timestamps in [from, to],
// ascending.
func (s *SnapshotStore) Range(_ context.Context, key domain.MarketKey, from, to time.Time) ([]domain.QuoteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[key]
	lo := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp.After(to)
	})
	if lo >= hi {
		return nil, nil
	}
	return append([]domain.QuoteSnapshot(nil), series[lo:hi]...), nil
}

// LatestPerMarket returns the newest snapshot of every market on the given
// exchange.
func (s *SnapshotStore) LatestPerMarket(_ context.Context, exchange domain.Exchange) (map[domain.MarketKey]domain.QuoteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[domain.MarketKey]domain.QuoteSnapshot)
	for key, series := range s.data {
		if key.Exchange == exchange && len(series) > 0 {
			result[key] = series[len(series)-1]
		}
	}
	return result, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
