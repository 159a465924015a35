package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unipredhq/unipred/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each market's
// latest quote lives at "quote:{exchange}:{native_id}" with one field per
// price component and a Unix-nanosecond timestamp.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. Quotes
// expire after ttl; a zero ttl means they never expire.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(key domain.MarketKey) string {
	return "quote:" + key.String()
}

// Set stores the snapshot as the latest quote for its market.
func (qc *QuoteCache) Set(ctx context.Context, snap domain.QuoteSnapshot) error {
	key := quoteKey(snap.Key)
	fields := map[string]interface{}{
		"bid":    strconv.FormatFloat(snap.Bid, 'f', -1, 64),
		"ask":    strconv.FormatFloat(snap.Ask, 'f', -1, 64),
		"mid":    strconv.FormatFloat(snap.MidPrice, 'f', -1, 64),
		"volume": strconv.FormatFloat(snap.Volume, 'f', -1, 64),
		"ts":     strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", snap.Key, err)
	}
	return nil
}

// Get retrieves the latest cached quote for a market. It returns
// domain.ErrNotFound when the key does not exist.
func (qc *QuoteCache) Get(ctx context.Context, key domain.MarketKey) (domain.QuoteSnapshot, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(key)).Result()
	if err != nil {
		return domain.QuoteSnapshot{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.QuoteSnapshot{}, domain.ErrNotFound
	}

	snap := domain.QuoteSnapshot{Key: key}
	if snap.Bid, err = parseField(vals, "bid", key); err != nil {
		return domain.QuoteSnapshot{}, err
	}
	if snap.Ask, err = parseField(vals, "ask", key); err != nil {
		return domain.QuoteSnapshot{}, err
	}
	if snap.MidPrice, err = parseField(vals, "mid", key); err != nil {
		return domain.QuoteSnapshot{}, err
	}
	if snap.Volume, err = parseField(vals, "volume", key); err != nil {
		return domain.QuoteSnapshot{}, err
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.QuoteSnapshot{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.QuoteSnapshot{}, fmt.Errorf("redis: parse quote ts %s: %w", key, err)
	}
	snap.Timestamp = time.Unix(0, tsNano).UTC()

	return snap, nil
}

func parseField(vals map[string]string, field string, key domain.MarketKey) (float64, error) {
	raw, ok := vals[field]
	if !ok {
		return 0, domain.ErrNotFound
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse quote %s field %s: %w", key, field, err)
	}
	return v, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
