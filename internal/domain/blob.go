package domain

import (
	"context"
	"io"
)

// BlobWriter uploads dataset objects to long-term storage. Put is a
// single-request upload; PutLarge streams the payload in parts and is the
// right call for dataset dumps of unbounded size.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutLarge(ctx context.Context, path string, data io.Reader, contentType string) error
}
