package polymarket

import (
	"encoding/json"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// stringList unmarshals Gamma fields that arrive as JSON-encoded arrays inside
// a string, e.g. "[\"Yes\",\"No\"]", as well as plain arrays.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	var inner []string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return err
	}
	*l = inner
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Prices are already on the [0,1] outcome-token scale.
type APIMarket struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	ConditionID   string     `json:"conditionId"`
	Slug          string     `json:"slug"`
	Description   string     `json:"description"`
	Active        flexBool   `json:"active"`
	Closed        bool       `json:"closed"`
	Archived      bool       `json:"archived"`
	Outcomes      stringList `json:"outcomes"`      // e.g. ["Yes","No"]
	OutcomePrices stringList `json:"outcomePrices"` // e.g. ["0.52","0.48"]
	ClobTokenIDs  stringList `json:"clobTokenIds"`
	Volume        string     `json:"volume"`
	BestBid       float64    `json:"bestBid"`
	BestAsk       float64    `json:"bestAsk"`
	StartDate     string     `json:"startDate"`
	EndDate       string     `json:"endDate"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// APIClobMarket is a market as returned by the CLOB /markets endpoint.
type APIClobMarket struct {
	ConditionID string     `json:"condition_id"`
	Question    string     `json:"question"`
	Active      bool       `json:"active"`
	Closed      bool       `json:"closed"`
	Tokens      []APIToken `json:"tokens"`
}

// APIToken is one outcome token inside a CLOB market.
type APIToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// APIOrderBook is the CLOB order book for one outcome token.
type APIOrderBook struct {
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
	Timestamp string          `json:"timestamp"`
	Hash      string          `json:"hash"`
}

// APIPriceLevel is a single price+size entry in the CLOB book.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
