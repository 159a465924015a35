// Package domain defines the canonical, exchange-agnostic market model and the
// store interfaces every other package depends on.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Exchange identifies a prediction-market venue.
type Exchange string

const (
	ExchangeKalshi     Exchange = "kalshi"
	ExchangePolymarket Exchange = "polymarket"
	ExchangeUnknown    Exchange = "unknown"
)

// DetectExchange guesses the venue from a native ticker. Kalshi tickers start
// with "KX", Polymarket token and condition IDs with "0x".
func DetectExchange(ticker string) Exchange {
	switch {
	case strings.HasPrefix(ticker, "KX"):
		return ExchangeKalshi
	case strings.HasPrefix(ticker, "0x"):
		return ExchangePolymarket
	default:
		return ExchangeUnknown
	}
}

// MarketStatus represents the lifecycle state of a canonical market.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
	MarketStatusUnknown MarketStatus = "unknown"
)

// MarketKey is the globally unique, immutable identity of a canonical market.
type MarketKey struct {
	Exchange Exchange `json:"exchange"`
	NativeID string   `json:"native_id"`
}

// String renders the key in "exchange:native_id" form.
func (k MarketKey) String() string {
	return string(k.Exchange) + ":" + k.NativeID
}

// Less defines a stable total order over market keys, used to canonicalize
// unordered pairs.
func (k MarketKey) Less(other MarketKey) bool {
	if k.Exchange != other.Exchange {
		return k.Exchange < other.Exchange
	}
	return k.NativeID < other.NativeID
}

// ParseMarketKey parses the "exchange:native_id" form produced by String.
func ParseMarketKey(s string) (MarketKey, error) {
	ex, id, ok := strings.Cut(s, ":")
	if !ok || ex == "" || id == "" {
		return MarketKey{}, fmt.Errorf("domain: malformed market key %q", s)
	}
	return MarketKey{Exchange: Exchange(ex), NativeID: id}, nil
}

// StrikeKind classifies what a market's thresholds are denominated in.
type StrikeKind string

const (
	StrikeKindNone    StrikeKind = "none"    // binary market, no thresholds
	StrikeKindNumeric StrikeKind = "numeric" // prices, counts, temperatures
	StrikeKindDate    StrikeKind = "date"    // calendar thresholds
)

// Strike is a single comparable threshold. Value carries the numeric form for
// numeric strikes and the Unix timestamp for date strikes.
type Strike struct {
	Kind  StrikeKind `json:"kind"`
	Value float64    `json:"value"`
	Label string     `json:"label,omitempty"`
}

// Market is the canonical, exchange-agnostic record of a tradable
// event-question. Identity fields (Key) never change after creation; title,
// status, close time, and strikes may be updated by later snapshots.
type Market struct {
	Key         MarketKey
	Title       string
	Description string
	Outcomes    []string
	OpenTime    time.Time
	CloseTime   time.Time
	Status      MarketStatus
	Strikes     []Strike
	Volume      float64
	URL         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StrikeKindOf returns the dominant strike kind of the market, or
// StrikeKindNone for binary markets.
func (m Market) StrikeKindOf() StrikeKind {
	if len(m.Strikes) == 0 {
		return StrikeKindNone
	}
	return m.Strikes[0].Kind
}

// EmbedText builds the text fed to the embedding model: title, description,
// and outcome labels, one field per line.
func (m Market) EmbedText() string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(m.Title)
	if m.Description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(m.Description)
	}
	if len(m.Outcomes) > 0 {
		b.WriteString("\nOutcomes: ")
		b.WriteString(strings.Join(m.Outcomes, ", "))
	}
	return b.String()
}
