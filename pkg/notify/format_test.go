package notify

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lucaspere/picktracker/pkg/pricefeed"
)

func TestMetricPrefix(t *testing.T) {
	assert.Equal(t, "1.5B", metricPrefix(1_500_000_000))
	assert.Equal(t, "2.3M", metricPrefix(2_340_000))
	assert.Equal(t, "40.0K", metricPrefix(40_000))
	assert.Equal(t, "999.9", metricPrefix(999.9))
	assert.Equal(t, "0.0", metricPrefix(0))
}

func TestDynamicPrecision(t *testing.T) {
	assert.Equal(t, "1.5", dynamicPrecision(1.5, 1, 8))
	assert.Equal(t, "0.00001", dynamicPrecision(0.0000123, 1, 8))
	// below even max precision: keep max digits, flag with a tilde
	assert.Equal(t, "0.00000000~", dynamicPrecision(0.0000000001, 1, 8))
}

func TestPercentChange(t *testing.T) {
	up := decimal.RequireFromString("5.4")
	down := decimal.RequireFromString("-12.6")
	assert.Equal(t, "5%", percentChange(&up))
	assert.Equal(t, "-13%", percentChange(&down))
	assert.Equal(t, missingValue, percentChange(nil))
}

func TestOptMetricPlaceholders(t *testing.T) {
	assert.Equal(t, missingValue, optMetric(nil))
	assert.Equal(t, missingValue, optCount(nil))

	v := decimal.NewFromInt(1_200_000)
	assert.Equal(t, "1.2M", optMetric(&v))
}

func TestHeaderLine(t *testing.T) {
	h := headerLine("hello", true)
	assert.True(t, strings.HasPrefix(h, "<b>"))
	assert.True(t, strings.HasSuffix(h, "</b>"))
	assert.Contains(t, h, "= hello =")

	plain := headerLine("hello", false)
	assert.NotContains(t, plain, "<b>")
	assert.Contains(t, plain, "- hello -")

	long := strings.Repeat("x", 40)
	assert.Equal(t, long, headerLine(long, false))
}

func TestRiskEmoji(t *testing.T) {
	assert.Equal(t, "🟢", riskEmoji(85))
	assert.Equal(t, "🟡", riskEmoji(65))
	assert.Equal(t, "🟠", riskEmoji(45))
	assert.Equal(t, "🔴", riskEmoji(10))
}

func TestRiskScoreLine(t *testing.T) {
	assert.Equal(t, unratedRisk, riskScoreLine("abc", nil))
	assert.Equal(t, unratedRisk, riskScoreLine("abc", &pricefeed.TokenReport{Score: -1}))

	line := riskScoreLine("abc", &pricefeed.TokenReport{Score: 72.4})
	assert.Contains(t, line, "rugcheck.xyz/tokens/abc")
	assert.Contains(t, line, ">72<")
	assert.Contains(t, line, "🟡")
}

func TestTopHoldersLine(t *testing.T) {
	assert.Equal(t, noHolderData, topHoldersLine(nil, 5))

	report := &pricefeed.TokenReport{TopHolders: []pricefeed.TopHolder{
		{Owner: "w1", Pct: 10.26},
		{Owner: "w2", Pct: 5.5},
	}}
	line := topHoldersLine(report, 5)
	assert.Contains(t, line, "solscan.io/account/w1")
	assert.Contains(t, line, ">10.3<")
	assert.Contains(t, line, ">5.5<")
	// padded out to five entries, then the combined share
	assert.Equal(t, 3, strings.Count(line, "| -"))
	assert.Contains(t, line, "<b>[16%]</b>")
}
