package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestRaiseHighestMarketCap(t *testing.T) {
	t.Run("seeds from nil", func(t *testing.T) {
		p := &Pick{}
		assert.True(t, p.RaiseHighestMarketCap(dec("150000")))
		require.NotNil(t, p.HighestMarketCap)
		assert.True(t, p.HighestMarketCap.Equal(dec("150000")))
	})

	t.Run("only moves up", func(t *testing.T) {
		p := &Pick{HighestMarketCap: decPtr("250000")}
		assert.False(t, p.RaiseHighestMarketCap(dec("200000")))
		assert.True(t, p.HighestMarketCap.Equal(dec("250000")))

		assert.True(t, p.RaiseHighestMarketCap(dec("300000")))
		assert.True(t, p.HighestMarketCap.Equal(dec("300000")))
	})

	t.Run("ignores zero and negative readings", func(t *testing.T) {
		p := &Pick{HighestMarketCap: decPtr("100")}
		assert.False(t, p.RaiseHighestMarketCap(decimal.Zero))
		assert.False(t, p.RaiseHighestMarketCap(dec("-5")))
		assert.True(t, p.HighestMarketCap.Equal(dec("100")))
	})
}

func TestCheckForHit(t *testing.T) {
	now := time.Now()

	t.Run("fires at double the call cap", func(t *testing.T) {
		p := &Pick{
			MarketCapAtCall:  dec("100000"),
			HighestMarketCap: decPtr("250000"),
		}
		assert.True(t, p.CheckForHit(now))
		require.NotNil(t, p.HitDate)
		assert.Equal(t, now, *p.HitDate)
		assert.True(t, p.Multiplier().Equal(dec("2.5")))
	})

	t.Run("fires exactly at the threshold", func(t *testing.T) {
		p := &Pick{
			MarketCapAtCall:  dec("100000"),
			HighestMarketCap: decPtr("200000"),
		}
		assert.True(t, p.CheckForHit(now))
	})

	t.Run("below threshold stays open", func(t *testing.T) {
		p := &Pick{
			MarketCapAtCall:  dec("100000"),
			HighestMarketCap: decPtr("199999"),
		}
		assert.False(t, p.CheckForHit(now))
		assert.Nil(t, p.HitDate)
	})

	t.Run("hit date is write-once", func(t *testing.T) {
		hitAt := now.Add(-time.Hour)
		p := &Pick{
			MarketCapAtCall:  dec("100000"),
			HighestMarketCap: decPtr("500000"),
			HitDate:          &hitAt,
		}
		assert.False(t, p.CheckForHit(now))
		assert.Equal(t, hitAt, *p.HitDate)
	})

	t.Run("unseeded baseline never fires", func(t *testing.T) {
		p := &Pick{MarketCapAtCall: dec("100000")}
		assert.False(t, p.CheckForHit(now))
	})

	t.Run("zero call cap never fires", func(t *testing.T) {
		p := &Pick{HighestMarketCap: decPtr("500000")}
		assert.False(t, p.CheckForHit(now))
	})
}

func TestMultiplier(t *testing.T) {
	p := &Pick{MarketCapAtCall: dec("100000")}
	assert.True(t, p.Multiplier().IsZero())

	p.HighestMarketCap = decPtr("350000")
	assert.True(t, p.Multiplier().Equal(dec("3.5")))

	p.MarketCapAtCall = decimal.Zero
	assert.True(t, p.Multiplier().IsZero())
}

func TestIsQualified(t *testing.T) {
	tests := []struct {
		name      string
		fdv       string
		liquidity *decimal.Decimal
		volume    *decimal.Decimal
		want      bool
	}{
		{"dust cap is out", "40000", decPtr("100000"), decPtr("100000"), false},
		{"missing liquidity is out", "500000", nil, decPtr("100000"), false},
		{"missing volume is out", "500000", decPtr("100000"), nil, false},
		{"small cap needs liquidity vs volume", "500000", decPtr("4000"), decPtr("100000"), true},
		{"small cap thin liquidity is out", "500000", decPtr("3999"), decPtr("100000"), false},
		{"large cap needs absolute liquidity", "2000000", decPtr("40000"), decPtr("1"), true},
		{"large cap thin liquidity is out", "2000000", decPtr("39999"), decPtr("1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pick{
				MarketCapAtCall: dec(tt.fdv),
				Token:           Token{Liquidity: tt.liquidity, Volume24h: tt.volume},
			}
			assert.Equal(t, tt.want, p.IsQualified())
		})
	}
}

func TestSnapshotOf(t *testing.T) {
	now := time.Now()
	p := &Pick{
		ID:               42,
		Token:            Token{Address: "So11111111111111111111111111111111111111112", MarketCap: decPtr("250000")},
		Username:         "alice",
		GroupID:          7,
		MarketCapAtCall:  dec("100000"),
		CallDate:         now.Add(-time.Hour),
		HighestMarketCap: decPtr("300000"),
	}

	snap := SnapshotOf(p)
	assert.Equal(t, int64(42), snap.ID)
	assert.InDelta(t, 2.5, snap.CurrentMultiplier, 1e-9)
	assert.InDelta(t, 3.0, snap.HighestMultiplier, 1e-9)
	require.NotNil(t, snap.HighestMarketCap)
	assert.True(t, snap.HighestMarketCap.Equal(dec("300000")))
	assert.Nil(t, snap.HitDate)
}
