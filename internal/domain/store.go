package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists canonical markets. Upsert is idempotent and keyed by
// (exchange, native_id): non-identity fields are merged, identity fields are
// preserved, and markets are never deleted, only marked settled or stale.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	Get(ctx context.Context, key MarketKey) (Market, error)
	ListOpen(ctx context.Context, exchange Exchange, opts ListOpts) ([]Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// SnapshotStore persists the append-only quote time series. Append rejects a
// snapshot whose timestamp is not newer than the latest stored for the same
// market with ErrStaleSnapshot; out-of-order delivery is dropped, never
// reordered. Queries are deterministic: the same query over the same stored
// state always returns the same result.
type SnapshotStore interface {
	Append(ctx context.Context, snap QuoteSnapshot) error
	Latest(ctx context.Context, key MarketKey) (QuoteSnapshot, error)
	Range(ctx context.Context, key MarketKey, from, to time.Time) ([]QuoteSnapshot, error)
	LatestPerMarket(ctx context.Context, exchange Exchange) (map[MarketKey]QuoteSnapshot, error)
}

// EdgeStore persists correlation edges, at most one per unordered
// cross-exchange pair. Upsert replaces the prior edge rather than appending.
type EdgeStore interface {
	Upsert(ctx context.Context, edge CorrelationEdge) error
	Get(ctx context.Context, pair PairKey) (CorrelationEdge, error)
	ListForMarket(ctx context.Context, key MarketKey) ([]CorrelationEdge, error)
	List(ctx context.Context, minComposite float64, opts ListOpts) ([]CorrelationEdge, error)
}

// VectorCache persists embedding vectors and their content hashes so the
// index survives restarts without re-embedding the whole catalog.
type VectorCache interface {
	Put(ctx context.Context, vec EmbeddingVector) error
	Get(ctx context.Context, key MarketKey) (EmbeddingVector, error)
	All(ctx context.Context) ([]EmbeddingVector, error)
	Invalidate(ctx context.Context, key MarketKey) error
}

// QuoteCache provides fast access to the latest quote per market.
type QuoteCache interface {
	Set(ctx context.Context, snap QuoteSnapshot) error
	Get(ctx context.Context, key MarketKey) (QuoteSnapshot, error)
}

// LockManager serializes mutation of a single market's records. Acquire
// returns ErrLockHeld when another party owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter paces calls to upstream exchange APIs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// SignalBus carries notifications between the ingest and correlate halves of
// a split deployment.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
