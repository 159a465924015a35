// Package polymarket adapts the Polymarket Gamma and CLOB APIs to the
// canonical domain model.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the Polymarket Gamma API (market discovery and metadata)
// and the CLOB API (order books). Both are unauthenticated for reads.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
}

// NewClient creates a new Polymarket client.
//
// gammaURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
// clobURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClient(gammaURL, clobURL string) *Client {
	return &Client{
		gammaURL: gammaURL,
		clobURL:  clobURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMarkets returns one page of markets from the Gamma API.
func (c *Client) GetMarkets(ctx context.Context, limit, offset int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.doGet(ctx, c.gammaURL+"/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket: get markets: %w", err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}
	return markets, nil
}

// GetMarket returns a single market by its Gamma ID.
func (c *Client) GetMarket(ctx context.Context, id string) (APIMarket, error) {
	body, err := c.doGet(ctx, c.gammaURL+"/markets/"+url.PathEscape(id))
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket: get market %s: %w", id, err)
	}

	var market APIMarket
	if err := json.Unmarshal(body, &market); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket: decode market: %w", err)
	}
	return market, nil
}

// GetClobMarket returns CLOB market metadata, including the outcome tokens,
// looked up by condition ID.
func (c *Client) GetClobMarket(ctx context.Context, conditionID string) (APIClobMarket, error) {
	body, err := c.doGet(ctx, c.clobURL+"/markets/"+url.PathEscape(conditionID))
	if err != nil {
		return APIClobMarket{}, fmt.Errorf("polymarket: get clob market %s: %w", conditionID, err)
	}

	var market APIClobMarket
	if err := json.Unmarshal(body, &market); err != nil {
		return APIClobMarket{}, fmt.Errorf("polymarket: decode clob market: %w", err)
	}
	return market, nil
}

// GetOrderBook returns the CLOB order book for an outcome token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (APIOrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, c.clobURL+"/book?"+params.Encode())
	if err != nil {
		return APIOrderBook{}, fmt.Errorf("polymarket: get book %s: %w", tokenID, err)
	}

	var book APIOrderBook
	if err := json.Unmarshal(body, &book); err != nil {
		return APIOrderBook{}, fmt.Errorf("polymarket: decode book: %w", err)
	}
	return book, nil
}

// doGet sends an unauthenticated GET request.
func (c *Client) doGet(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
