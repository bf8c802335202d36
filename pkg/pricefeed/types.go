package pricefeed

import "github.com/shopspring/decimal"

// Quote is the latest point-in-time market view of one token. Optional
// metrics are nil when the feed has no data for them.
type Quote struct {
	Address        string           `json:"address"`
	Symbol         string           `json:"symbol"`
	Name           string           `json:"name"`
	Price          decimal.Decimal  `json:"price"`
	MarketCap      decimal.Decimal  `json:"marketCap"`
	Liquidity      *decimal.Decimal `json:"liquidity,omitempty"`
	Volume24h      *decimal.Decimal `json:"v24hUSD,omitempty"`
	Supply         *decimal.Decimal `json:"supply,omitempty"`
	HolderCount    *int64           `json:"holder,omitempty"`
	PriceChange1h  *decimal.Decimal `json:"priceChange1hPercent,omitempty"`
	PriceChange4h  *decimal.Decimal `json:"priceChange4hPercent,omitempty"`
	PriceChange24h *decimal.Decimal `json:"priceChange24hPercent,omitempty"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Open     decimal.Decimal `json:"o"`
	High     decimal.Decimal `json:"h"`
	Low      decimal.Decimal `json:"l"`
	Close    decimal.Decimal `json:"c"`
	Volume   decimal.Decimal `json:"v"`
	UnixTime int64           `json:"unixTime"`
}

// TopHolder is one entry of a token's holder concentration report.
type TopHolder struct {
	Owner string  `json:"owner"`
	Pct   float64 `json:"pct"`
}

// TokenReport is the optional risk/holder report. Score -1 means the
// reporting service could not rate the token.
type TokenReport struct {
	Score      float64     `json:"score"`
	TopHolders []TopHolder `json:"topHolders"`
}
