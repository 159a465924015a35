package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Kalshi REST API. Prices
// are in cents (1-99); times are RFC3339 strings.
type APIMarket struct {
	Ticker           string  `json:"ticker"`
	EventTicker      string  `json:"event_ticker"`
	Title            string  `json:"title"`
	Subtitle         string  `json:"subtitle"`
	YesSubTitle      string  `json:"yes_sub_title"`
	NoSubTitle       string  `json:"no_sub_title"`
	Status           string  `json:"status"` // "open", "closed", "settled"
	YesBid           float64 `json:"yes_bid"`
	YesAsk           float64 `json:"yes_ask"`
	NoBid            float64 `json:"no_bid"`
	NoAsk            float64 `json:"no_ask"`
	LastPrice        float64 `json:"last_price"`
	Volume           int64   `json:"volume"`
	Volume24H        int64   `json:"volume_24h"`
	OpenInterest     int64   `json:"open_interest"`
	Liquidity        int64   `json:"liquidity"`
	Category         string  `json:"category"`
	StrikeType       string  `json:"strike_type"`
	FloorStrike      float64 `json:"floor_strike"`
	CapStrike        float64 `json:"cap_strike"`
	FunctionalStrike string  `json:"functional_strike"`
	ExpirationTime   string  `json:"expiration_time"`
	ExpirationValue  string  `json:"expiration_value"`
	OpenTime         string  `json:"open_time"`
	CloseTime        string  `json:"close_time"`
	Result           string  `json:"result"` // "yes", "no", "" (unsettled)
	CanCloseEarly    bool    `json:"can_close_early"`
}

// APIError represents a Kalshi API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Kalshi WebSocket DTOs
// --------------------------------------------------------------------------

// wsEnvelope is the envelope for Kalshi WebSocket messages.
type wsEnvelope struct {
	Type string `json:"type"` // "ticker", "subscribed", "error", ...
	Msg  struct {
		Ticker string `json:"market_ticker"`
		YesBid int64  `json:"yes_bid"` // cents
		YesAsk int64  `json:"yes_ask"` // cents
		Price  int64  `json:"price"`  // last trade, cents
		Volume int64  `json:"volume"`
		TS     int64  `json:"ts"` // unix seconds
	} `json:"msg"`
	SID int64 `json:"sid"`
}

// wsSubscribeCmd subscribes to ticker updates for a set of markets.
type wsSubscribeCmd struct {
	ID     int64 `json:"id"`
	Cmd    string `json:"cmd"` // "subscribe"
	Params struct {
		Channels      []string `json:"channels"`
		MarketTickers []string `json:"market_tickers"`
	} `json:"params"`
}
