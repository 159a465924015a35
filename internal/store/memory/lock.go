package memory

import (
	"context"
	"sync"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// LockManager is an in-memory implementation of domain.LockManager. Locks
// expire after their TTL so a crashed holder cannot wedge a key forever.
type LockManager struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLockManager creates an in-memory lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire takes the named lock for at most ttl. It returns domain.ErrLockHeld
// if another party holds an unexpired lock on the key.
func (l *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if deadline, ok := l.held[key]; ok && deadline.After(now) {
		return nil, domain.ErrLockHeld
	}
	deadline := now.Add(ttl)
	l.held[key] = deadline

	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if d, ok := l.held[key]; ok && d.Equal(deadline) {
			delete(l.held, key)
		}
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
