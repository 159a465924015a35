package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/domain"
)

const maxPageSize = 200

// Adapter implements adapter.Adapter for the Kalshi exchange.
type Adapter struct {
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewAdapter creates a Kalshi adapter around the given REST client.
func NewAdapter(client *Client, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: logger.With(slog.String("adapter", "kalshi")),
		now:    time.Now,
	}
}

// Exchange names the venue this adapter serves.
func (a *Adapter) Exchange() domain.Exchange { return domain.ExchangeKalshi }

// FetchMarkets retrieves one page of markets, normalizing each record. A
// malformed record is skipped and counted; it never aborts the batch.
func (a *Adapter) FetchMarkets(ctx context.Context, f adapter.Filters) (adapter.Result, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	raw, cursor, err := a.client.GetMarkets(ctx, limit, f.Cursor, f.Status)
	if err != nil {
		return adapter.Result{}, &domain.UpstreamError{Exchange: domain.ExchangeKalshi, Err: err}
	}

	res := adapter.Result{Cursor: cursor}
	now := a.now().UTC()
	for i := range raw {
		m, snap, err := a.normalize(&raw[i], now)
		if err != nil {
			res.Skipped++
			a.logger.WarnContext(ctx, "skipping malformed market",
				slog.String("ticker", raw[i].Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Markets = append(res.Markets, m)
		res.Snapshots = append(res.Snapshots, snap)
	}
	return res, nil
}

// FetchQuote retrieves the current quote for one market.
func (a *Adapter) FetchQuote(ctx context.Context, nativeID string) (domain.QuoteSnapshot, error) {
	raw, err := a.client.GetMarket(ctx, nativeID)
	if err != nil {
		return domain.QuoteSnapshot{}, &domain.UpstreamError{Exchange: domain.ExchangeKalshi, Err: err}
	}
	_, snap, err := a.normalize(&raw, a.now().UTC())
	if err != nil {
		return domain.QuoteSnapshot{}, fmt.Errorf("kalshi: normalize quote %s: %w", nativeID, err)
	}
	return snap, nil
}

// normalize converts one Kalshi API market into canonical records. Kalshi
// prices arrive in cents on the yes-side; the canonical mid price is on the
// [0,1] probability scale.
func (a *Adapter) normalize(m *APIMarket, now time.Time) (domain.Market, domain.QuoteSnapshot, error) {
	if m.Ticker == "" {
		return domain.Market{}, domain.QuoteSnapshot{}, &domain.ValidationError{Field: "ticker", Reason: "missing native id"}
	}

	openTime, err := parseTime(m.OpenTime)
	if err != nil {
		return domain.Market{}, domain.QuoteSnapshot{}, &domain.ValidationError{Field: "open_time", Reason: err.Error()}
	}
	closeTime, err := parseTime(m.CloseTime)
	if err != nil {
		return domain.Market{}, domain.QuoteSnapshot{}, &domain.ValidationError{Field: "close_time", Reason: err.Error()}
	}
	if !closeTime.IsZero() && !openTime.IsZero() && closeTime.Before(openTime) {
		return domain.Market{}, domain.QuoteSnapshot{}, &domain.ValidationError{Field: "close_time", Reason: "close before open"}
	}

	key := domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: m.Ticker}

	market := domain.Market{
		Key:         key,
		Title:       m.Title,
		Description: m.Subtitle,
		Outcomes:    outcomes(m),
		OpenTime:    openTime,
		CloseTime:   closeTime,
		Status:      normalizeStatus(m.Status),
		Strikes:     strikes(m),
		Volume:      float64(m.Volume),
		URL:         "https://kalshi.com/markets/" + m.Ticker,
		UpdatedAt:   now,
	}

	bid := centsToProb(m.YesBid)
	ask := centsToProb(m.YesAsk)
	mid := midPrice(bid, ask, centsToProb(m.LastPrice))

	snap := domain.QuoteSnapshot{
		Key:       key,
		Timestamp: now,
		Bid:       bid,
		Ask:       ask,
		MidPrice:  mid,
		Volume:    float64(m.Volume),
	}
	if err := snap.Validate(); err != nil {
		return domain.Market{}, domain.QuoteSnapshot{}, err
	}

	return market, snap, nil
}

// outcomes returns the yes/no outcome labels when the market provides them.
func outcomes(m *APIMarket) []string {
	if m.YesSubTitle == "" && m.NoSubTitle == "" {
		return []string{"Yes", "No"}
	}
	return []string{m.YesSubTitle, m.NoSubTitle}
}

// strikes extracts numeric thresholds from the Kalshi strike fields. Markets
// without a strike type are binary and carry no thresholds.
func strikes(m *APIMarket) []domain.Strike {
	var out []domain.Strike
	switch m.StrikeType {
	case "greater", "greater_or_equal", "less", "less_or_equal":
		out = append(out, domain.Strike{Kind: domain.StrikeKindNumeric, Value: m.FloorStrike})
	case "between":
		out = append(out,
			domain.Strike{Kind: domain.StrikeKindNumeric, Value: m.FloorStrike},
			domain.Strike{Kind: domain.StrikeKindNumeric, Value: m.CapStrike},
		)
	case "date":
		if t, err := parseTime(m.ExpirationValue); err == nil && !t.IsZero() {
			out = append(out, domain.Strike{Kind: domain.StrikeKindDate, Value: float64(t.Unix()), Label: m.ExpirationValue})
		}
	}
	return out
}

// normalizeStatus maps Kalshi lifecycle states onto the canonical enum.
func normalizeStatus(s string) domain.MarketStatus {
	switch s {
	case "open", "active":
		return domain.MarketStatusOpen
	case "closed":
		return domain.MarketStatusClosed
	case "settled", "finalized":
		return domain.MarketStatusSettled
	default:
		return domain.MarketStatusUnknown
	}
}

// centsToProb converts a cent price (1-99) to the [0,1] probability scale.
func centsToProb(cents float64) float64 {
	p := cents / 100
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// midPrice prefers the bid/ask midpoint, falling back to the last trade when
// one side of the book is empty.
func midPrice(bid, ask, last float64) float64 {
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	if last > 0 {
		return last
	}
	if ask > 0 {
		return ask
	}
	return bid
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Compile-time interface check.
var _ adapter.Adapter = (*Adapter)(nil)
