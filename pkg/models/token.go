package models

import "github.com/shopspring/decimal"

// Token is the market-data view of a tracked token. Optional metrics are
// pointers: the feed omits them for thin or freshly listed tokens.
type Token struct {
	Address     string           `json:"address"`
	Chain       string           `json:"chain"`
	Symbol      string           `json:"symbol"`
	Name        string           `json:"name"`
	MarketCap   *decimal.Decimal `json:"marketCap,omitempty"`
	Liquidity   *decimal.Decimal `json:"liquidity,omitempty"`
	Volume24h   *decimal.Decimal `json:"volume24h,omitempty"`
	Supply      *decimal.Decimal `json:"supply,omitempty"`
	HolderCount *int64           `json:"holderCount,omitempty"`
}
