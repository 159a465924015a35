package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/domain"
)

const defaultPageSize = 100

// Adapter implements adapter.Adapter for Polymarket. Canonical identity is
// the 0x-prefixed condition ID; outcome-token prices are already on the [0,1]
// scale, so no price conversion is needed beyond yes-side selection.
type Adapter struct {
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewAdapter creates a Polymarket adapter around the given client.
func NewAdapter(client *Client, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: logger.With(slog.String("adapter", "polymarket")),
		now:    time.Now,
	}
}

// Exchange names the venue this adapter serves.
func (a *Adapter) Exchange() domain.Exchange { return domain.ExchangePolymarket }

// FetchMarkets retrieves one page of Gamma markets. The pagination cursor
// encodes the numeric offset; malformed records are skipped and counted.
func (a *Adapter) FetchMarkets(ctx context.Context, f adapter.Filters) (adapter.Result, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := 0
	if f.Cursor != "" {
		n, err := strconv.Atoi(f.Cursor)
		if err != nil {
			return adapter.Result{}, fmt.Errorf("polymarket: bad cursor %q: %w", f.Cursor, err)
		}
		offset = n
	}

	raw, err := a.client.GetMarkets(ctx, limit, offset)
	if err != nil {
		return adapter.Result{}, &domain.UpstreamError{Exchange: domain.ExchangePolymarket, Err: err}
	}

	res := adapter.Result{}
	if len(raw) == limit {
		res.Cursor = strconv.Itoa(offset + limit)
	}

	now := a.now().UTC()
	for i := range raw {
		m, snap, err := a.normalize(&raw[i], now)
		if err != nil {
			res.Skipped++
			a.logger.WarnContext(ctx, "skipping malformed market",
				slog.String("id", raw[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if f.Status != "" && string(m.Status) != f.Status {
			continue
		}
		res.Markets = append(res.Markets, m)
		res.Snapshots = append(res.Snapshots, snap)
	}
	return res, nil
}

// FetchQuote resolves the market's yes-side outcome token via the CLOB API
// and computes the mid price from the live order book.
func (a *Adapter) FetchQuote(ctx context.Context, nativeID string) (domain.QuoteSnapshot, error) {
	clobMarket, err := a.client.GetClobMarket(ctx, nativeID)
	if err != nil {
		return domain.QuoteSnapshot{}, &domain.UpstreamError{Exchange: domain.ExchangePolymarket, Err: err}
	}
	if len(clobMarket.Tokens) == 0 {
		return domain.QuoteSnapshot{}, &domain.ValidationError{Field: "tokens", Reason: "market has no outcome tokens"}
	}

	book, err := a.client.GetOrderBook(ctx, clobMarket.Tokens[0].TokenID)
	if err != nil {
		return domain.QuoteSnapshot{}, &domain.UpstreamError{Exchange: domain.ExchangePolymarket, Err: err}
	}

	bestBid, bestAsk := bestPrices(&book)
	snap := domain.QuoteSnapshot{
		Key:       domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: nativeID},
		Timestamp: a.now().UTC(),
		Bid:       bestBid,
		Ask:       bestAsk,
		MidPrice:  bookMid(bestBid, bestAsk, clobMarket.Tokens[0].Price),
	}
	if err := snap.Validate(); err != nil {
		return domain.QuoteSnapshot{}, err
	}
	return snap, nil
}

// normalize converts one Gamma market into canonical records.
func (a *Adapter) normalize(m *APIMarket, now time.Time) (domain.Market, domain.QuoteSnapshot, error) {
	if m.ConditionID == "" {
		return domain.Market{}, domain.QuoteSnapshot{}, &domain.ValidationError{Field: "condition_id", Reason: "missing native id"}
	}

	openTime := parseTime(m.StartDate)
	if openTime.IsZero() {
		openTime = parseTime(m.CreatedAt)
	}
	closeTime := parseTime(m.EndDate)
	if !closeTime.IsZero() && !openTime.IsZero() && closeTime.Before(openTime) {
		return domain.Market{}, domain.QuoteSnapshot{}, &domain.ValidationError{Field: "end_date", Reason: "close before open"}
	}

	key := domain.MarketKey{Exchange: domain.ExchangePolymarket, NativeID: m.ConditionID}
	volume, _ := strconv.ParseFloat(m.Volume, 64)

	market := domain.Market{
		Key:         key,
		Title:       m.Question,
		Description: m.Description,
		Outcomes:    m.Outcomes,
		OpenTime:    openTime,
		CloseTime:   closeTime,
		Status:      normalizeStatus(m),
		Volume:      volume,
		URL:         "https://polymarket.com/event/" + m.Slug,
		UpdatedAt:   now,
	}

	mid := yesPrice(m)
	snap := domain.QuoteSnapshot{
		Key:       key,
		Timestamp: now,
		Bid:       clamp01(m.BestBid),
		Ask:       clamp01(m.BestAsk),
		MidPrice:  mid,
		Volume:    volume,
	}
	if err := snap.Validate(); err != nil {
		return domain.Market{}, domain.QuoteSnapshot{}, err
	}

	return market, snap, nil
}

// normalizeStatus maps Gamma lifecycle flags onto the canonical enum.
func normalizeStatus(m *APIMarket) domain.MarketStatus {
	switch {
	case m.Archived:
		return domain.MarketStatusSettled
	case m.Closed:
		return domain.MarketStatusClosed
	case bool(m.Active):
		return domain.MarketStatusOpen
	default:
		return domain.MarketStatusUnknown
	}
}

// yesPrice derives the yes-side mid price. The bid/ask midpoint wins when
// both sides are present; otherwise the first outcome price is used.
func yesPrice(m *APIMarket) float64 {
	if m.BestBid > 0 && m.BestAsk > 0 {
		return clamp01((m.BestBid + m.BestAsk) / 2)
	}
	if len(m.OutcomePrices) > 0 {
		if p, err := strconv.ParseFloat(m.OutcomePrices[0], 64); err == nil {
			return clamp01(p)
		}
	}
	return clamp01(m.BestBid + m.BestAsk)
}

// bestPrices scans the CLOB book for the best bid and ask.
func bestPrices(book *APIOrderBook) (bestBid, bestAsk float64) {
	for _, lvl := range book.Bids {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p > bestBid {
			bestBid = p
		}
	}
	for _, lvl := range book.Asks {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && (bestAsk == 0 || p < bestAsk) {
			bestAsk = p
		}
	}
	return clamp01(bestBid), clamp01(bestAsk)
}

// bookMid prefers the bid/ask midpoint, falling back to the token's last
// price when one side of the book is empty.
func bookMid(bid, ask, last float64) float64 {
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	if last > 0 {
		return clamp01(last)
	}
	if ask > 0 {
		return ask
	}
	return bid
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// Compile-time interface check.
var _ adapter.Adapter = (*Adapter)(nil)
