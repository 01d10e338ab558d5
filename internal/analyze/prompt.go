// Package analyze builds the shared analysis prompt, dispatches it to every
// configured prediction engine concurrently, and validates each engine's raw
// output into a typed prediction set.
package analyze

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funmusicgames1/stockcast-backend/models"
)

const (
	maxMacroHeadlines  = 15
	maxSectorHeadlines = 4
)

// BuildPrompt renders one deterministic text request from the full metric set
// plus the news digest. Both engines receive this prompt byte-for-byte
// identically; it has no awareness of which engine consumes it.
func BuildPrompt(metrics map[string]*models.StockMetrics, news *models.NewsDigest, date string) string {
	tickers := make([]string, 0, len(metrics))
	for t := range metrics {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var sb strings.Builder
	sb.WriteString("You are a quantitative stock market analyst. Based on the following market data and news, predict which stocks are most likely to move significantly today.\n\n")
	sb.WriteString("=== STOCK UNIVERSE DATA ===\n")
	sb.WriteString("(Format: ticker: current price, 1-day change, 1-week change, 1-month change, volume ratio vs trailing avg, momentum score 0-100)\n\n")

	for _, t := range tickers {
		m := metrics[t]
		fmt.Fprintf(&sb, "%s: price=$%.2f, 1d=%+.1f%%, 1w=%+.1f%%, 1m=%+.1f%%, vol_ratio=%.1fx, momentum=%.0f/100",
			t, m.CurrentPrice, m.DailyChangePct, m.WeeklyChangePct, m.MonthlyChangePct, m.VolumeRatio, m.MomentumScore)
		if m.Volatility > 0 {
			fmt.Fprintf(&sb, ", volatility=%.2f", m.Volatility)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n=== MACRO & GEOPOLITICAL NEWS ===\n")
	if news != nil {
		macro := news.Macro
		if len(macro) > maxMacroHeadlines {
			macro = macro[:maxMacroHeadlines]
		}
		for _, h := range macro {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
	}

	sb.WriteString("\n=== SECTOR NEWS ===\n")
	if news != nil {
		sectors := make([]string, 0, len(news.Sector))
		for s := range news.Sector {
			sectors = append(sectors, s)
		}
		sort.Strings(sectors)
		for _, sector := range sectors {
			headlines := news.Sector[sector]
			if len(headlines) == 0 {
				continue
			}
			if len(headlines) > maxSectorHeadlines {
				headlines = headlines[:maxSectorHeadlines]
			}
			fmt.Fprintf(&sb, "\n%s:\n", strings.ToUpper(sector))
			for _, h := range headlines {
				fmt.Fprintf(&sb, "  - %s\n", h)
			}
		}
	}

	sb.WriteString(`
=== YOUR TASK ===
Analyze all stocks and identify:
1. TOP 10 EXPECTED WINNERS - stocks most likely to rise today
2. TOP 10 EXPECTED LOSERS - stocks most likely to fall today

For each stock provide:
- Predicted % move for the day (be specific, e.g. +2.4% not just "positive")
- A concise reason (max 6 words) based on the data and news

Consider: momentum, volume spikes, sector news catalysts, macro conditions, recent trend reversals, earnings proximity, and geopolitical impacts.

Respond ONLY with valid JSON in this exact format, no other text:

{
  "date": "` + date + `",
  "market_summary": "One sentence summary of today's market conditions",
  "winners": [
    {
      "rank": 1,
      "ticker": "XXXX",
      "company": "Full Company Name",
      "sector": "Sector Name",
      "predicted_change_pct": 3.2,
      "reason": "Short reason here"
    }
  ],
  "losers": [
    {
      "rank": 1,
      "ticker": "XXXX",
      "company": "Full Company Name",
      "sector": "Sector Name",
      "predicted_change_pct": -2.8,
      "reason": "Short reason here"
    }
  ]
}

Rules:
- winners list must have exactly 10 items, ranked by predicted gain descending
- losers list must have exactly 10 items, ranked by predicted loss descending (most negative first)
- predicted_change_pct for winners must be positive numbers
- predicted_change_pct for losers must be negative numbers
- reason must be 6 words or fewer
- Only pick tickers from the stock universe provided
- Return ONLY the JSON object, no markdown, no explanation
`)

	return sb.String()
}
