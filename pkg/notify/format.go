package notify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lucaspere/picktracker/pkg/pricefeed"
)

// Placeholders rendered when the feed has no data for a field. The exact
// strings are part of the message contract users already know.
const (
	missingValue = "-.-"
	noHolderData = "No Data Available"
	unratedRisk  = "??? ❌"
)

const headerWidth = 32

// metricPrefix renders 1234567.0 as "1.2M".
func metricPrefix(v float64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", v/1_000)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

// dynamicPrecision widens the precision until the rendered number stops
// rounding to zero, so micro-cap prices keep their leading digits. A trailing
// tilde marks a value too small even for maxPrec.
func dynamicPrecision(v float64, minPrec, maxPrec int) string {
	for prec := minPrec; prec <= maxPrec; prec++ {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if f, err := strconv.ParseFloat(s, 64); err == nil && f != 0 {
			return s
		}
	}
	return strconv.FormatFloat(v, 'f', maxPrec, 64) + "~"
}

// optMetric formats an optional decimal with a metric prefix.
func optMetric(v *decimal.Decimal) string {
	if v == nil {
		return missingValue
	}
	return metricPrefix(v.InexactFloat64())
}

// optCount formats an optional count with a metric prefix.
func optCount(v *int64) string {
	if v == nil {
		return missingValue
	}
	return metricPrefix(float64(*v))
}

// percentChange renders a price delta rounded to whole percent.
func percentChange(v *decimal.Decimal) string {
	if v == nil {
		return missingValue
	}
	return strconv.FormatFloat(math.Round(v.InexactFloat64()), 'f', -1, 64) + "%"
}

// headerLine centers text inside a fixed-width rule of "=" (highlighted) or
// "-" characters.
func headerLine(text string, highlight bool) string {
	pad := "-"
	if highlight {
		pad = "="
	}
	if len(text) >= headerWidth {
		if highlight {
			return "<b>" + text + "</b>"
		}
		return text
	}
	each := (headerWidth - len(text) - 2) / 2
	padded := fmt.Sprintf("%s %s %s", strings.Repeat(pad, each), text, strings.Repeat(pad, each))
	if highlight {
		return "<b>" + padded + "</b>"
	}
	return padded
}

func riskEmoji(score float64) string {
	switch {
	case score >= 80:
		return "🟢"
	case score >= 60:
		return "🟡"
	case score >= 40:
		return "🟠"
	default:
		return "🔴"
	}
}

// riskScoreLine links the score to the rating service, or renders the
// unrated placeholder when the token could not be scored.
func riskScoreLine(address string, report *pricefeed.TokenReport) string {
	if report == nil || report.Score == -1 {
		return unratedRisk
	}
	return fmt.Sprintf(`<a href="https://rugcheck.xyz/tokens/%s">%.0f</a> %s`,
		address, math.Round(report.Score), riskEmoji(report.Score))
}

// topHoldersLine renders the top-n holder percentages as explorer links,
// padded with "-" up to n entries, followed by their combined share.
func topHoldersLine(report *pricefeed.TokenReport, n int) string {
	if report == nil {
		return noHolderData
	}
	entries := make([]string, 0, n)
	total := 0.0
	for i, holder := range report.TopHolders {
		if i >= n {
			break
		}
		entries = append(entries, fmt.Sprintf(`<a href="https://solscan.io/account/%s">%.1f</a>`,
			holder.Owner, holder.Pct))
		total += holder.Pct
	}
	for len(entries) < n {
		entries = append(entries, "-")
	}
	return fmt.Sprintf("%s <b>[%.0f%%]</b>", strings.Join(entries, " | "), math.Round(total))
}
