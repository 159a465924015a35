package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEmbedder calls an external embedding service over HTTP. The service is
// expected to accept {"texts": [...]} and return {"vectors": [[...]]}, the
// contract spoken by common sentence-transformer sidecars.
type HTTPEmbedder struct {
	endpoint   string
	dim        int
	httpClient *http.Client
}

// NewHTTPEmbedder creates an HTTPEmbedder against the given endpoint.
func NewHTTPEmbedder(endpoint string, dim int) *HTTPEmbedder {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &HTTPEmbedder{
		endpoint: endpoint,
		dim:      dim,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Dim returns the vector dimensionality.
func (e *HTTPEmbedder) Dim() int {
	return e.dim
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embed requests a vector for the text. The result is L2-normalized locally
// so the index can rely on unit-length vectors regardless of the service.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("index: marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("index: build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index: embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("index: embed service status %d: %s", resp.StatusCode, string(data))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("index: decode embed response: %w", err)
	}
	if len(out.Vectors) != 1 {
		return nil, fmt.Errorf("index: embed service returned %d vectors, want 1", len(out.Vectors))
	}
	vec := out.Vectors[0]
	if len(vec) != e.dim {
		return nil, fmt.Errorf("index: embed service returned dim %d, want %d", len(vec), e.dim)
	}

	normalize(vec)
	return vec, nil
}

var _ Embedder = (*HTTPEmbedder)(nil)
