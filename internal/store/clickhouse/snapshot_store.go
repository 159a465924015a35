package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore on ClickHouse. The series is
// append-only; a snapshot that does not advance its market's series is
// rejected before insert, since MergeTree will happily store duplicates.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// Append inserts one snapshot. Snapshots whose timestamp is not strictly
// newer than the stored latest for the same market are dropped with
// ErrStaleSnapshot.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.QuoteSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	latest, err := s.Latest(ctx, snap.Key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err == nil && !snap.Timestamp.After(latest.Timestamp) {
		return domain.ErrStaleSnapshot
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quote_snapshots (
			exchange, native_id, ts, bid, ask, mid_price, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare snapshot batch: %w", err)
	}

	err = batch.Append(
		string(snap.Key.Exchange), snap.Key.NativeID, snap.Timestamp.UTC(),
		snap.Bid, snap.Ask, snap.MidPrice, snap.Volume,
	)
	if err != nil {
		return fmt.Errorf("clickhouse: append snapshot: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("clickhouse: send snapshot batch: %w", err)
	}
	return nil
}

const snapshotCols = `exchange, native_id, ts, bid, ask, mid_price, volume`

// Latest returns the newest snapshot for the market.
func (s *SnapshotStore) Latest(ctx context.Context, key domain.MarketKey) (domain.QuoteSnapshot, error) {
	query := `
		SELECT ` + snapshotCols + ` FROM quote_snapshots
		WHERE exchange = ? AND native_id = ?
		ORDER BY ts DESC
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, query, string(key.Exchange), key.NativeID)
	snap, err := scanSnapshot(row)
	if err != nil {
		if isNoRows(err) {
			return domain.QuoteSnapshot{}, domain.ErrNotFound
		}
		return domain.QuoteSnapshot{}, fmt.Errorf("clickhouse: latest snapshot for %s: %w", key, err)
	}
	return snap, nil
}

// Range returns the market's snapshots with timestamps in [from, to],
// ascending.
func (s *SnapshotStore) Range(ctx context.Context, key domain.MarketKey, from, to time.Time) ([]domain.QuoteSnapshot, error) {
	query := `
		SELECT ` + snapshotCols + ` FROM quote_snapshots
		WHERE exchange = ? AND native_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query,
		string(key.Exchange), key.NativeID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("clickhouse: range snapshots for %s: %w", key, err)
	}
	defer rows.Close()

	var snaps []domain.QuoteSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: iterate snapshots: %w", err)
	}
	return snaps, nil
}

// LatestPerMarket returns the newest snapshot of every market on the given
// exchange, using argMax over the series.
func (s *SnapshotStore) LatestPerMarket(ctx context.Context, exchange domain.Exchange) (map[domain.MarketKey]domain.QuoteSnapshot, error) {
	query := `
		SELECT
			native_id,
			max(ts)               AS ts,
			argMax(bid, ts)       AS bid,
			argMax(ask, ts)       AS ask,
			argMax(mid_price, ts) AS mid_price,
			argMax(volume, ts)    AS volume
		FROM quote_snapshots
		WHERE exchange = ?
		GROUP BY native_id
	`

	rows, err := s.conn.Query(ctx, query, string(exchange))
	if err != nil {
		return nil, fmt.Errorf("clickhouse: latest per market for %s: %w", exchange, err)
	}
	defer rows.Close()

	result := make(map[domain.MarketKey]domain.QuoteSnapshot)
	for rows.Next() {
		var snap domain.QuoteSnapshot
		if err := rows.Scan(
			&snap.Key.NativeID, &snap.Timestamp,
			&snap.Bid, &snap.Ask, &snap.MidPrice, &snap.Volume,
		); err != nil {
			return nil, fmt.Errorf("clickhouse: scan latest snapshot: %w", err)
		}
		snap.Key.Exchange = exchange
		result[snap.Key] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: iterate latest snapshots: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (domain.QuoteSnapshot, error) {
	var snap domain.QuoteSnapshot
	var exchange string
	err := row.Scan(
		&exchange, &snap.Key.NativeID, &snap.Timestamp,
		&snap.Bid, &snap.Ask, &snap.MidPrice, &snap.Volume,
	)
	if err != nil {
		return domain.QuoteSnapshot{}, err
	}
	snap.Key.Exchange = domain.Exchange(exchange)
	return snap, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
