package correlate

import (
	"sync"

	"github.com/unipredhq/unipred/internal/domain"
)

// inflight tracks pairs currently being computed so concurrent recomputes of
// the same pair collapse to one.
type inflight struct {
	mu    sync.Mutex
	pairs map[domain.PairKey]struct{}
}

func newInflight() *inflight {
	return &inflight{pairs: make(map[domain.PairKey]struct{})}
}

// tryAcquire claims the pair's token. It returns false if another compute
// already holds it.
func (f *inflight) tryAcquire(pair domain.PairKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.pairs[pair]; busy {
		return false
	}
	f.pairs[pair] = struct{}{}
	return true
}

func (f *inflight) release(pair domain.PairKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pairs, pair)
}
