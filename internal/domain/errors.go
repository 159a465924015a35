package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrStaleSnapshot     = errors.New("snapshot older than latest stored")
	ErrIndexUnavailable  = errors.New("embedding index unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrLockHeld          = errors.New("lock already held")
	ErrSameExchange      = errors.New("markets are on the same exchange")
)

// ValidationError marks a single malformed raw record. Adapters skip the
// record, count the error, and continue the batch; one corrupt record never
// blocks ingestion of the rest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// UpstreamError wraps an exchange-side failure. It propagates to the broker's
// caller; store state is never corrupted because upserts are atomic per
// record.
type UpstreamError struct {
	Exchange Exchange
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Exchange, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
