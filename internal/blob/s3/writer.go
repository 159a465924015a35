package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/unipredhq/unipred/internal/domain"
)

// uploadPartSize is the part size for streamed uploads. 8 MiB keeps the part
// count low for typical dataset dumps while staying above the S3 minimum.
const uploadPartSize int64 = 8 * 1024 * 1024

// Writer implements domain.BlobWriter against the export bucket.
type Writer struct {
	client   *s3.Client
	bucket   string
	uploader *manager.Uploader
}

// NewWriter creates a Writer over the client's bucket. The multipart
// uploader is shared across calls.
func NewWriter(c *Client) *Writer {
	client := c.S3()
	return &Writer{
		client: client,
		bucket: c.Bucket(),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
	}
}

// Put uploads the payload in a single PutObject request.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// PutLarge streams the payload through the multipart upload manager, which
// splits it into parts and uploads them concurrently.
func (w *Writer) PutLarge(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
