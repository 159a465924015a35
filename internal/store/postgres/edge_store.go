package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unipredhq/unipred/internal/domain"
)

// EdgeStore implements domain.EdgeStore using PostgreSQL. The canonical pair
// key is the primary key, so recomputing a pair replaces its edge instead of
// appending a second row.
type EdgeStore struct {
	pool *pgxpool.Pool
}

// NewEdgeStore creates a new EdgeStore.
func NewEdgeStore(pool *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{pool: pool}
}

// Upsert inserts or replaces the edge for its pair.
func (s *EdgeStore) Upsert(ctx context.Context, edge domain.CorrelationEdge) error {
	if !edge.Pair.CrossExchange() {
		return domain.ErrSameExchange
	}

	const query = `
		INSERT INTO correlation_edges (
			exchange_a, native_id_a, exchange_b, native_id_b,
			text_score, structural_score, composite_score, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exchange_a, native_id_a, exchange_b, native_id_b) DO UPDATE SET
			text_score       = EXCLUDED.text_score,
			structural_score = EXCLUDED.structural_score,
			composite_score  = EXCLUDED.composite_score,
			computed_at      = EXCLUDED.computed_at`

	_, err := s.pool.Exec(ctx, query,
		string(edge.Pair.A.Exchange), edge.Pair.A.NativeID,
		string(edge.Pair.B.Exchange), edge.Pair.B.NativeID,
		edge.TextScore, edge.StructuralScore, edge.CompositeScore, edge.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert edge %s: %w", edge.Pair, err)
	}
	return nil
}

const edgeCols = `exchange_a, native_id_a, exchange_b, native_id_b,
	text_score, structural_score, composite_score, computed_at`

func scanEdge(row pgx.Row) (domain.CorrelationEdge, error) {
	var e domain.CorrelationEdge
	var exA, exB string
	err := row.Scan(
		&exA, &e.Pair.A.NativeID, &exB, &e.Pair.B.NativeID,
		&e.TextScore, &e.StructuralScore, &e.CompositeScore, &e.ComputedAt,
	)
	if err != nil {
		return domain.CorrelationEdge{}, err
	}
	e.Pair.A.Exchange = domain.Exchange(exA)
	e.Pair.B.Exchange = domain.Exchange(exB)
	return e, nil
}

// Get retrieves the edge for a pair.
func (s *EdgeStore) Get(ctx context.Context, pair domain.PairKey) (domain.CorrelationEdge, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+edgeCols+` FROM correlation_edges
		 WHERE exchange_a = $1 AND native_id_a = $2 AND exchange_b = $3 AND native_id_b = $4`,
		string(pair.A.Exchange), pair.A.NativeID,
		string(pair.B.Exchange), pair.B.NativeID,
	)
	e, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CorrelationEdge{}, domain.ErrNotFound
		}
		return domain.CorrelationEdge{}, fmt.Errorf("postgres: get edge %s: %w", pair, err)
	}
	return e, nil
}

// ListForMarket returns every edge touching the given market, best first.
func (s *EdgeStore) ListForMarket(ctx context.Context, key domain.MarketKey) ([]domain.CorrelationEdge, error) {
	const query = `
		SELECT ` + edgeCols + ` FROM correlation_edges
		WHERE (exchange_a = $1 AND native_id_a = $2) OR (exchange_b = $1 AND native_id_b = $2)
		ORDER BY composite_score DESC`
	return s.queryEdges(ctx, query, string(key.Exchange), key.NativeID)
}

// List returns edges with composite score at or above minComposite, best
// first.
func (s *EdgeStore) List(ctx context.Context, minComposite float64, opts domain.ListOpts) ([]domain.CorrelationEdge, error) {
	query := `SELECT ` + edgeCols + ` FROM correlation_edges WHERE composite_score >= $1 ORDER BY composite_score DESC`
	args := []any{minComposite}
	query, args = applyListOpts(query, args, opts)

	return s.queryEdges(ctx, query, args...)
}

func (s *EdgeStore) queryEdges(ctx context.Context, query string, args ...any) ([]domain.CorrelationEdge, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.CorrelationEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate edges: %w", err)
	}
	return edges, nil
}

var _ domain.EdgeStore = (*EdgeStore)(nil)
