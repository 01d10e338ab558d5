package fetcher

import (
	"context"
	"time"
)

// maxPrevLookback bounds how far back the previous trading day is searched
// (a Monday needs Friday; long weekends need more).
const maxPrevLookback = 6

// ClosingPrices fetches each ticker's close for a specific past date,
// primary source first, fallback history for misses. Missing tickers are
// simply absent from the result.
func (s *Scheduler) ClosingPrices(ctx context.Context, tickers []string, date time.Time) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	var missing []string

	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return prices
		}
		if close, err := s.primary.CloseOn(ctx, ticker, date); err == nil {
			prices[ticker] = close
		} else {
			missing = append(missing, ticker)
		}
		s.pause(s.opts.CallDelay, 0)
	}

	if len(missing) > 0 && s.fallback.HasKey() {
		s.logger.Info().Int("tickers", len(missing)).Msg("Fetching actual prices via fallback")
		for _, ticker := range missing {
			if series, err := s.fallback.History(ctx, ticker, 10); err == nil && len(series.Closes) > 0 {
				prices[ticker] = series.Closes[len(series.Closes)-1]
			}
			s.pause(s.opts.CallDelay, 0)
		}
	}

	return prices
}

// ActualChanges computes realized close-over-close percentage moves for a
// past date: close on that date versus the previous trading day's close,
// walking back across weekends and holidays as needed.
func (s *Scheduler) ActualChanges(ctx context.Context, tickers []string, date time.Time) map[string]float64 {
	if len(tickers) == 0 {
		return nil
	}

	actuals := s.ClosingPrices(ctx, tickers, date)
	if len(actuals) == 0 {
		return nil
	}

	var prev map[string]float64
	for daysBack := 1; daysBack <= maxPrevLookback; daysBack++ {
		prev = s.ClosingPrices(ctx, tickers, date.AddDate(0, 0, -daysBack))
		if len(prev) > 0 {
			if daysBack > 1 {
				s.logger.Info().Int("days_back", daysBack).Msg("Using earlier session as previous close")
			}
			break
		}
	}

	changes := make(map[string]float64, len(tickers))
	for ticker, actual := range actuals {
		prevClose, ok := prev[ticker]
		if !ok || prevClose <= 0 || actual == prevClose {
			continue
		}
		changes[ticker] = (actual - prevClose) / prevClose * 100
	}
	return changes
}
