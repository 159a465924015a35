package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unipredhq/unipred/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Rows are keyed
// by (exchange, native_id); upserts merge descriptive fields and never touch
// identity or created_at.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketUpsert = `
	INSERT INTO markets (
		exchange, native_id, title, description, outcomes,
		open_time, close_time, status, strikes, volume, url,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		NOW(), NOW()
	)
	ON CONFLICT (exchange, native_id) DO UPDATE SET
		title       = EXCLUDED.title,
		description = EXCLUDED.description,
		outcomes    = EXCLUDED.outcomes,
		open_time   = EXCLUDED.open_time,
		close_time  = EXCLUDED.close_time,
		status      = EXCLUDED.status,
		strikes     = EXCLUDED.strikes,
		volume      = EXCLUDED.volume,
		url         = EXCLUDED.url,
		updated_at  = NOW()`

func marketArgs(m domain.Market) ([]any, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal outcomes for %s: %w", m.Key, err)
	}
	strikes, err := json.Marshal(m.Strikes)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal strikes for %s: %w", m.Key, err)
	}
	return []any{
		string(m.Key.Exchange), m.Key.NativeID, m.Title, m.Description, outcomes,
		m.OpenTime, m.CloseTime, string(m.Status), strikes, m.Volume, m.URL,
	}, nil
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	args, err := marketArgs(m)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, marketUpsert, args...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.Key, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		args, err := marketArgs(m)
		if err != nil {
			return err
		}
		batch.Queue(marketUpsert, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d (%s): %w", i, markets[i].Key, err)
		}
	}
	return nil
}

const marketCols = `exchange, native_id, title, description, outcomes,
	open_time, close_time, status, strikes, volume, url,
	created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var exchange, status string
	var outcomes, strikes []byte
	err := row.Scan(
		&exchange, &m.Key.NativeID, &m.Title, &m.Description, &outcomes,
		&m.OpenTime, &m.CloseTime, &status, &strikes, &m.Volume, &m.URL,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Key.Exchange = domain.Exchange(exchange)
	m.Status = domain.MarketStatus(status)
	if len(outcomes) > 0 {
		_ = json.Unmarshal(outcomes, &m.Outcomes)
	}
	if len(strikes) > 0 {
		_ = json.Unmarshal(strikes, &m.Strikes)
	}
	return m, nil
}

// Get retrieves a market by its canonical key.
func (s *MarketStore) Get(ctx context.Context, key domain.MarketKey) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE exchange = $1 AND native_id = $2`,
		string(key.Exchange), key.NativeID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", key, err)
	}
	return m, nil
}

// ListOpen returns open markets for one exchange, ordered by native id.
func (s *MarketStore) ListOpen(ctx context.Context, exchange domain.Exchange, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE exchange = $1 AND status = 'open' ORDER BY native_id`
	args := []any{string(exchange)}
	query, args = applyListOpts(query, args, opts)

	return s.queryMarkets(ctx, query, args...)
}

// List returns all markets ordered by (exchange, native_id).
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY exchange, native_id`
	var args []any
	query, args = applyListOpts(query, args, opts)

	return s.queryMarkets(ctx, query, args...)
}

// Count returns the number of stored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func applyListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func (s *MarketStore) queryMarkets(ctx context.Context, query string, args ...any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
