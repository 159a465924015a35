package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/unipredhq/unipred/internal/domain"
)

// exportPageSize is how many rows are pulled per store query during export.
const exportPageSize = 1000

// multipartThreshold is the buffered size above which an export switches to
// the streaming upload path.
const multipartThreshold = 32 * 1024 * 1024

// Exporter writes dataset snapshots of the canonical catalog and the edge
// set to object storage as newline-delimited JSON, one dated object per run.
type Exporter struct {
	writer  domain.BlobWriter
	markets domain.MarketStore
	edges   domain.EdgeStore
	prefix  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewExporter creates an Exporter uploading under the given key prefix.
func NewExporter(writer domain.BlobWriter, markets domain.MarketStore, edges domain.EdgeStore, prefix string, logger *slog.Logger) *Exporter {
	if prefix == "" {
		prefix = "exports"
	}
	return &Exporter{
		writer:  writer,
		markets: markets,
		edges:   edges,
		prefix:  prefix,
		logger:  logger.With("component", "exporter"),
		now:     time.Now,
	}
}

type exportedMarket struct {
	Exchange    string    `json:"exchange"`
	NativeID    string    `json:"native_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Outcomes    []string  `json:"outcomes,omitempty"`
	OpenTime    time.Time `json:"open_time"`
	CloseTime   time.Time `json:"close_time"`
	Status      string    `json:"status"`
	Volume      float64   `json:"volume"`
	URL         string    `json:"url,omitempty"`
}

type exportedEdge struct {
	MarketA         string   `json:"market_a"`
	MarketB         string   `json:"market_b"`
	TextScore       float64  `json:"text_score"`
	StructuralScore *float64 `json:"structural_score"`
	CompositeScore  float64  `json:"composite_score"`
	ComputedAt      time.Time `json:"computed_at"`
}

// ExportMarkets uploads the full market catalog. It returns the row count.
func (e *Exporter) ExportMarkets(ctx context.Context) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0

	for offset := 0; ; offset += exportPageSize {
		page, err := e.markets.List(ctx, domain.ListOpts{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return 0, fmt.Errorf("s3blob: export markets page at %d: %w", offset, err)
		}
		for _, m := range page {
			if err := enc.Encode(exportedMarket{
				Exchange:    string(m.Key.Exchange),
				NativeID:    m.Key.NativeID,
				Title:       m.Title,
				Description: m.Description,
				Outcomes:    m.Outcomes,
				OpenTime:    m.OpenTime,
				CloseTime:   m.CloseTime,
				Status:      string(m.Status),
				Volume:      m.Volume,
				URL:         m.URL,
			}); err != nil {
				return 0, fmt.Errorf("s3blob: encode market %s: %w", m.Key, err)
			}
			count++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	path := e.objectPath("markets")
	if err := e.upload(ctx, path, &buf); err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "markets exported", "path", path, "rows", count)
	return count, nil
}

// ExportEdges uploads every stored correlation edge. It returns the row
// count.
func (e *Exporter) ExportEdges(ctx context.Context) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0

	for offset := 0; ; offset += exportPageSize {
		page, err := e.edges.List(ctx, 0, domain.ListOpts{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return 0, fmt.Errorf("s3blob: export edges page at %d: %w", offset, err)
		}
		for _, edge := range page {
			if err := enc.Encode(exportedEdge{
				MarketA:         edge.Pair.A.String(),
				MarketB:         edge.Pair.B.String(),
				TextScore:       edge.TextScore,
				StructuralScore: edge.StructuralScore,
				CompositeScore:  edge.CompositeScore,
				ComputedAt:      edge.ComputedAt,
			}); err != nil {
				return 0, fmt.Errorf("s3blob: encode edge %s: %w", edge.Pair, err)
			}
			count++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	path := e.objectPath("edges")
	if err := e.upload(ctx, path, &buf); err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "edges exported", "path", path, "rows", count)
	return count, nil
}

func (e *Exporter) upload(ctx context.Context, path string, buf *bytes.Buffer) error {
	if buf.Len() > multipartThreshold {
		return e.writer.PutLarge(ctx, path, buf, "application/x-ndjson")
	}
	return e.writer.Put(ctx, path, buf, "application/x-ndjson")
}

func (e *Exporter) objectPath(dataset string) string {
	ts := e.now().UTC().Format("2006/01/02/150405")
	return fmt.Sprintf("%s/%s/%s.jsonl", e.prefix, dataset, ts)
}
