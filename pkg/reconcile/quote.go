package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/lucaspere/picktracker/pkg/models"
	"github.com/lucaspere/picktracker/pkg/pricefeed"
)

// tokenFromQuote projects a feed quote onto the token metadata row. The feed
// never echoes the chain, so callers supply it from the picks being tracked.
func tokenFromQuote(q pricefeed.Quote, chain string) models.Token {
	mc := q.MarketCap
	return models.Token{
		Address:     q.Address,
		Chain:       chain,
		Symbol:      q.Symbol,
		Name:        q.Name,
		MarketCap:   &mc,
		Liquidity:   q.Liquidity,
		Volume24h:   q.Volume24h,
		Supply:      q.Supply,
		HolderCount: q.HolderCount,
	}
}

// applyQuote refreshes the in-memory token view with the latest reading so
// leaderboard snapshots and qualification checks see current numbers.
func applyQuote(t *models.Token, q pricefeed.Quote) {
	mc := q.MarketCap
	t.MarketCap = &mc
	if q.Symbol != "" {
		t.Symbol = q.Symbol
	}
	if q.Name != "" {
		t.Name = q.Name
	}
	if q.Liquidity != nil {
		t.Liquidity = q.Liquidity
	}
	if q.Volume24h != nil {
		t.Volume24h = q.Volume24h
	}
	if q.Supply != nil {
		t.Supply = q.Supply
	}
	if q.HolderCount != nil {
		t.HolderCount = q.HolderCount
	}
}

// baselineMarketCap converts the post-call intraday high price into a market
// cap using the best supply figure available. Without any supply the live
// reading is the only usable baseline.
func baselineMarketCap(candle pricefeed.Candle, pick *models.Pick, quote pricefeed.Quote) decimal.Decimal {
	supply := pick.SupplyAtCall
	if supply == nil {
		supply = quote.Supply
	}
	if supply == nil || supply.IsZero() {
		return quote.MarketCap
	}
	return candle.High.Mul(*supply)
}
