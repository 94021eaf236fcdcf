package gateway

import "time"

// Provider identifiers. Quotas, circuit breakers and metrics are all keyed
// by these names.
const (
	ProviderPumpFun     = "pumpfun"
	ProviderDexScreener = "dexscreener"
)

// Category classifies fetched data for cache TTL selection and hit/miss
// metrics. Faster-moving data gets a shorter TTL.
type Category string

const (
	CategoryTokens  Category = "tokens"
	CategoryTrades  Category = "trades"
	CategoryPrice   Category = "price"
	CategoryReplies Category = "replies"
	CategoryListing Category = "listing"
	CategoryHistory Category = "history"
)

// defaultTTLs hold the freshness window per category. Trades move fastest;
// replies and listing state barely change.
var defaultTTLs = map[Category]time.Duration{
	CategoryTokens:  60 * time.Second,
	CategoryTrades:  30 * time.Second,
	CategoryPrice:   60 * time.Second,
	CategoryReplies: 300 * time.Second,
	CategoryListing: 300 * time.Second,
	CategoryHistory: 60 * time.Second,
}

// TokenFeedItem is a token as reported by the launch feed.
type TokenFeedItem struct {
	Mint             string  `json:"mint"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Creator          string  `json:"creator"`
	CreatedTimestamp int64   `json:"created_timestamp"`
	MarketCapUSD     float64 `json:"usd_market_cap"`
	VirtualSolAmount float64 `json:"virtual_sol_reserves"`
	ReplyCount       int     `json:"reply_count"`
	Website          string  `json:"website"`
	Twitter          string  `json:"twitter"`
	Telegram         string  `json:"telegram"`
}

// CreatedAt converts the feed's millisecond timestamp.
func (t TokenFeedItem) CreatedAt() time.Time {
	return time.UnixMilli(t.CreatedTimestamp)
}

// Trade is a single swap reported by the trade feed.
type Trade struct {
	Signature string  `json:"signature"`
	Mint      string  `json:"mint"`
	IsBuy     bool    `json:"is_buy"`
	SolAmount float64 `json:"sol_amount"`
	User      string  `json:"user"`
	Timestamp int64   `json:"timestamp"`
}

// Reply is a community comment on a token's thread.
type Reply struct {
	ID        int64  `json:"id"`
	Mint      string `json:"mint"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Candle is one OHLCV bar from the candlestick endpoint.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// PricePoint is one sample of a token's price series.
type PricePoint struct {
	Timestamp int64
	Price     float64
}

// listingOrder is one paid-listing order from the listing provider.
type listingOrder struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// solPriceResponse wraps the SOL/USD quote endpoint.
type solPriceResponse struct {
	SolPrice float64 `json:"solPrice"`
}

// dexPairsResponse wraps the market-pairs lookup. Prices arrive as strings.
type dexPairsResponse struct {
	Pairs []struct {
		PriceUSD  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}
