package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HitMultiplier is the multiple of the call-time market cap that turns an
// open pick into a hit.
const HitMultiplier = 2

var (
	hitThreshold      = decimal.NewFromInt(HitMultiplier)
	qualifiedMinFDV   = decimal.NewFromInt(40_000)
	qualifiedLargeFDV = decimal.NewFromInt(1_000_000)
	qualifiedVolRatio = decimal.RequireFromString("0.04")
)

// Pick is a user's public call on a token, anchored to the market cap at
// call time. highest market cap and hit date are the only fields this
// service ever mutates.
type Pick struct {
	ID                int64            `json:"id"`
	Token             Token            `json:"token"`
	UserID            uuid.UUID        `json:"userId"`
	Username          string           `json:"username"`
	GroupID           int64            `json:"groupId"`
	TelegramMessageID *int64           `json:"telegramMessageId,omitempty"`
	PriceAtCall       decimal.Decimal  `json:"priceAtCall"`
	MarketCapAtCall   decimal.Decimal  `json:"marketCapAtCall"`
	SupplyAtCall      *decimal.Decimal `json:"supplyAtCall,omitempty"`
	CallDate          time.Time        `json:"callDate"`
	HighestMarketCap  *decimal.Decimal `json:"highestMarketCap,omitempty"`
	HitDate           *time.Time       `json:"hitDate,omitempty"`
}

// Multiplier is highest market cap over market cap at call, zero while the
// baseline is unseeded or the call-time cap is zero.
func (p *Pick) Multiplier() decimal.Decimal {
	if p.HighestMarketCap == nil || p.MarketCapAtCall.IsZero() {
		return decimal.Zero
	}
	return p.HighestMarketCap.Div(p.MarketCapAtCall)
}

// RaiseHighestMarketCap raises the tracked high-water mark to mc and reports
// whether anything changed. The value only ever moves up.
func (p *Pick) RaiseHighestMarketCap(mc decimal.Decimal) bool {
	if mc.IsNegative() || mc.IsZero() {
		return false
	}
	if p.HighestMarketCap == nil || mc.GreaterThan(*p.HighestMarketCap) {
		v := mc
		p.HighestMarketCap = &v
		return true
	}
	return false
}

// CheckForHit fires the single Open -> Hit transition when the multiplier
// reaches the hit threshold. The hit date is write-once: an already-hit pick
// never re-fires, whatever later readings show.
func (p *Pick) CheckForHit(now time.Time) bool {
	if p.HitDate != nil {
		return false
	}
	if p.HighestMarketCap == nil || p.MarketCapAtCall.IsZero() {
		return false
	}
	if p.HighestMarketCap.GreaterThanOrEqual(p.MarketCapAtCall.Mul(hitThreshold)) {
		t := now
		p.HitDate = &t
		return true
	}
	return false
}

// IsQualified applies the leaderboard quality gate: dust-cap tokens and
// tokens with liquidity out of proportion to their volume stay off the
// boards even when tracked.
func (p *Pick) IsQualified() bool {
	fdv := p.MarketCapAtCall
	if fdv.LessThanOrEqual(qualifiedMinFDV) {
		return false
	}
	if p.Token.Liquidity == nil || p.Token.Volume24h == nil {
		return false
	}
	if fdv.LessThan(qualifiedLargeFDV) {
		return p.Token.Liquidity.GreaterThanOrEqual(p.Token.Volume24h.Mul(qualifiedVolRatio))
	}
	return p.Token.Liquidity.GreaterThanOrEqual(qualifiedMinFDV)
}

// Follower is a user subscribed to a pick owner's calls, addressed by their
// external messaging identity.
type Follower struct {
	UserID     uuid.UUID `json:"userId"`
	Username   string    `json:"username"`
	TelegramID int64     `json:"telegramId"`
}
