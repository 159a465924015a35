package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/unipredhq/unipred/internal/domain"
)

// EdgeStore is an in-memory implementation of domain.EdgeStore. At most one
// edge exists per canonical pair; Upsert replaces, never appends.
type EdgeStore struct {
	mu   sync.RWMutex
	data map[domain.PairKey]domain.CorrelationEdge
}

// NewEdgeStore creates an empty in-memory edge store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{
		data: make(map[domain.PairKey]domain.CorrelationEdge),
	}
}

// Upsert stores the edge under its canonical pair key.
func (s *EdgeStore) Upsert(_ context.Context, edge domain.CorrelationEdge) error {
	if !edge.Pair.CrossExchange() {
		return domain.ErrSameExchange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[edge.Pair] = cloneEdge(edge)
	return nil
}

// Get retrieves the edge for a pair. Returns domain.ErrNotFound if absent.
func (s *EdgeStore) Get(_ context.Context, pair domain.PairKey) (domain.CorrelationEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.data[pair]
	if !ok {
		return domain.CorrelationEdge{}, domain.ErrNotFound
	}
	return cloneEdge(edge), nil
}

// ListForMarket returns every edge touching the given market, best first.
func (s *EdgeStore) ListForMarket(_ context.Context, key domain.MarketKey) ([]domain.CorrelationEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.CorrelationEdge
	for pair, edge := range s.data {
		if pair.A == key || pair.B == key {
			result = append(result, cloneEdge(edge))
		}
	}
	sortEdges(result)
	return result, nil
}

// List returns edges with composite score at or above minComposite, best
// first.
func (s *EdgeStore) List(_ context.Context, minComposite float64, opts domain.ListOpts) ([]domain.CorrelationEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.CorrelationEdge
	for _, edge := range s.data {
		if edge.CompositeScore >= minComposite {
			result = append(result, cloneEdge(edge))
		}
	}
	sortEdges(result)
	return paginate(result, opts), nil
}

func sortEdges(edges []domain.CorrelationEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CompositeScore != edges[j].CompositeScore {
			return edges[i].CompositeScore > edges[j].CompositeScore
		}
		return edges[i].Pair.String() < edges[j].Pair.String()
	})
}

func cloneEdge(e domain.CorrelationEdge) domain.CorrelationEdge {
	c := e
	if e.StructuralScore != nil {
		v := *e.StructuralScore
		c.StructuralScore = &v
	}
	return c
}

var _ domain.EdgeStore = (*EdgeStore)(nil)
