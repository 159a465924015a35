// Package adapter defines the per-exchange normalization contract. An adapter
// translates one venue's raw API responses into canonical records and has no
// cross-exchange knowledge.
package adapter

import (
	"context"

	"github.com/unipredhq/unipred/internal/domain"
)

// Filters narrows a market fetch. Zero values mean "no filter".
type Filters struct {
	Status string // canonical status: "open", "closed", "settled"
	Limit  int    // page size; adapters clamp to the venue maximum
	Cursor string // opaque pagination token from a previous page
}

// Result is the outcome of normalizing one raw batch. Skipped counts records
// rejected by validation; the batch always makes partial progress, so callers
// must surface Skipped alongside the successful records.
type Result struct {
	Markets   []domain.Market
	Snapshots []domain.QuoteSnapshot
	Cursor    string // next-page token, empty when exhausted
	Skipped   int
}

// Adapter is the capability set each exchange provides.
type Adapter interface {
	// Exchange names the venue this adapter serves.
	Exchange() domain.Exchange

	// FetchMarkets retrieves one page of markets and normalizes it.
	FetchMarkets(ctx context.Context, f Filters) (Result, error)

	// FetchQuote retrieves the current quote for one market, normalized to
	// the [0,1] probability scale.
	FetchQuote(ctx context.Context, nativeID string) (domain.QuoteSnapshot, error)
}
