package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unipredhq/unipred/internal/domain"
)

// vectorIndexKey is a set holding the market keys of all cached vectors, so
// All can rebuild the in-memory index without a SCAN.
const vectorIndexKey = "vectors:index"

// VectorCache implements domain.VectorCache using Redis. Each vector is a
// JSON blob at "vector:{exchange}:{native_id}"; membership is tracked in a
// side set so the whole cache can be enumerated on startup.
type VectorCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewVectorCache creates a VectorCache backed by the given Client. A zero ttl
// means vectors never expire.
func NewVectorCache(c *Client, ttl time.Duration) *VectorCache {
	return &VectorCache{rdb: c.Underlying(), ttl: ttl}
}

type vectorBlob struct {
	Vector      []float32 `json:"vector"`
	ContentHash string    `json:"content_hash"`
	ComputedAt  time.Time `json:"computed_at"`
}

func vectorKey(key domain.MarketKey) string {
	return "vector:" + key.String()
}

// Put stores the vector and registers it in the index set.
func (vc *VectorCache) Put(ctx context.Context, vec domain.EmbeddingVector) error {
	data, err := json.Marshal(vectorBlob{
		Vector:      vec.Vector,
		ContentHash: vec.ContentHash,
		ComputedAt:  vec.ComputedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal vector %s: %w", vec.Key, err)
	}

	pipe := vc.rdb.TxPipeline()
	pipe.Set(ctx, vectorKey(vec.Key), data, vc.ttl)
	pipe.SAdd(ctx, vectorIndexKey, vec.Key.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put vector %s: %w", vec.Key, err)
	}
	return nil
}

// Get retrieves a cached vector. It returns domain.ErrNotFound when the key
// does not exist.
func (vc *VectorCache) Get(ctx context.Context, key domain.MarketKey) (domain.EmbeddingVector, error) {
	data, err := vc.rdb.Get(ctx, vectorKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EmbeddingVector{}, domain.ErrNotFound
		}
		return domain.EmbeddingVector{}, fmt.Errorf("redis: get vector %s: %w", key, err)
	}

	var blob vectorBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return domain.EmbeddingVector{}, fmt.Errorf("redis: unmarshal vector %s: %w", key, err)
	}
	return domain.EmbeddingVector{
		Key:         key,
		Vector:      blob.Vector,
		ContentHash: blob.ContentHash,
		ComputedAt:  blob.ComputedAt,
	}, nil
}

// All returns every cached vector. Index entries whose blobs have expired are
// pruned as they are encountered.
func (vc *VectorCache) All(ctx context.Context) ([]domain.EmbeddingVector, error) {
	members, err := vc.rdb.SMembers(ctx, vectorIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list vector index: %w", err)
	}

	vectors := make([]domain.EmbeddingVector, 0, len(members))
	for _, member := range members {
		key, err := domain.ParseMarketKey(member)
		if err != nil {
			_ = vc.rdb.SRem(ctx, vectorIndexKey, member).Err()
			continue
		}

		vec, err := vc.Get(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			_ = vc.rdb.SRem(ctx, vectorIndexKey, member).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Invalidate removes a cached vector. Removing an absent key is a no-op.
func (vc *VectorCache) Invalidate(ctx context.Context, key domain.MarketKey) error {
	pipe := vc.rdb.TxPipeline()
	pipe.Del(ctx, vectorKey(key))
	pipe.SRem(ctx, vectorIndexKey, key.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate vector %s: %w", key, err)
	}
	return nil
}

var _ domain.VectorCache = (*VectorCache)(nil)
