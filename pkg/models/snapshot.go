package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PickSnapshot is the serialized leaderboard payload stored next to the
// sorted-set score. Multipliers are pre-rounded so readers render them
// without touching the store.
type PickSnapshot struct {
	ID                int64            `json:"id"`
	Token             Token            `json:"token"`
	UserID            uuid.UUID        `json:"userId"`
	Username          string           `json:"username"`
	GroupID           int64            `json:"groupId"`
	MarketCapAtCall   decimal.Decimal  `json:"marketCapAtCall"`
	CallDate          time.Time        `json:"callDate"`
	CurrentMarketCap  decimal.Decimal  `json:"currentMarketCap"`
	CurrentMultiplier float64          `json:"currentMultiplier"`
	HighestMarketCap  *decimal.Decimal `json:"highestMcPostCall,omitempty"`
	HighestMultiplier float64          `json:"highestMultPostCall"`
	HitDate           *time.Time       `json:"hitDate,omitempty"`
}

// SnapshotOf builds the leaderboard view of a pick.
func SnapshotOf(p *Pick) PickSnapshot {
	s := PickSnapshot{
		ID:              p.ID,
		Token:           p.Token,
		UserID:          p.UserID,
		Username:        p.Username,
		GroupID:         p.GroupID,
		MarketCapAtCall: p.MarketCapAtCall.RoundBank(2),
		CallDate:        p.CallDate,
		HitDate:         p.HitDate,
	}
	if p.Token.MarketCap != nil {
		s.CurrentMarketCap = *p.Token.MarketCap
		if !p.MarketCapAtCall.IsZero() {
			s.CurrentMultiplier = p.Token.MarketCap.Div(p.MarketCapAtCall).RoundBank(2).InexactFloat64()
		}
	}
	if p.HighestMarketCap != nil {
		hm := p.HighestMarketCap.RoundBank(2)
		s.HighestMarketCap = &hm
		s.HighestMultiplier = p.Multiplier().RoundBank(2).InexactFloat64()
	}
	return s
}
