package notify

import (
	"fmt"
	"html"

	"github.com/lucaspere/picktracker/pkg/events"
	"github.com/lucaspere/picktracker/pkg/pricefeed"
	"github.com/lucaspere/picktracker/pkg/utils"
)

const topHolderCount = 5

// MessageBuilder renders the follower notification for a fresh pick as
// Telegram HTML. Every market field degrades to an explicit placeholder when
// the feed has nothing, so a thin token still produces a complete message.
type MessageBuilder struct {
	botUsername string
}

func NewMessageBuilder() MessageBuilder {
	return MessageBuilder{
		botUsername: utils.Env("TELEGRAM_BOT_USERNAME", "BullpenFiBot"),
	}
}

// PickCreated builds the full notification text. report may be nil when the
// risk service had nothing for the token.
func (b MessageBuilder) PickCreated(evt events.PickCreatedEvent, quote pricefeed.Quote, report *pricefeed.TokenReport) string {
	pick := evt.Pick
	address := pick.Token.Address
	symbol := pick.Token.Symbol
	if quote.Symbol != "" {
		symbol = quote.Symbol
	}

	profileLink := fmt.Sprintf("https://t.me/%s/app?startapp=profile_%s", b.botUsername, pick.Username)
	tickerLink := fmt.Sprintf(`<a href="%s%s">%s</a>`, profileLink, address, html.EscapeString(symbol))

	header := headerLine(fmt.Sprintf("🎯 %s just made a pick!", pick.Username), true)

	marketCapAtCall := metricPrefix(pick.MarketCapAtCall.InexactFloat64())
	marketCapNow := metricPrefix(quote.MarketCap.InexactFloat64())
	price := missingValue
	if !quote.Price.IsZero() {
		price = dynamicPrecision(quote.Price.InexactFloat64(), 1, 8)
	}

	fields := fmt.Sprintf(`
Ticker: %s
Market Cap at Call: <code>%s</code>
Market Cap: <code>%s</code>
Price: <code>%s</code>
1h: <code>%s</code> 4h: <code>%s</code> 24h: <code>%s</code>

Volume (24h): <code>$%s</code>
Liquidity: <code>$%s</code>
Holders: <code>%s</code>
Top %d: %s
Rugcheck Score: %s`,
		tickerLink,
		marketCapAtCall,
		marketCapNow,
		price,
		percentChange(quote.PriceChange1h),
		percentChange(quote.PriceChange4h),
		percentChange(quote.PriceChange24h),
		optMetric(quote.Volume24h),
		optMetric(quote.Liquidity),
		optCount(quote.HolderCount),
		topHolderCount,
		topHoldersLine(report, topHolderCount),
		riskScoreLine(address, report),
	)

	headline := fmt.Sprintf("%s at a <b>$%s</b> market cap.", tickerLink, marketCapAtCall)
	copyLine := fmt.Sprintf("<code>%s</code> <i>tap to copy</i>", address)
	viewLine := fmt.Sprintf(`<b><a href="%s">View %s on Bullpen</a></b>`, profileLink, html.EscapeString(pick.Username))

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s\n\n%s", header, headline, fields, copyLine, viewLine)
}
