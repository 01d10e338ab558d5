// Package indicators derives per-instrument metrics from a raw price series.
// Pure computation: no I/O, no state, safe to call concurrently.
package indicators

import (
	"errors"
	"math"

	"github.com/funmusicgames1/stockcast-backend/models"
)

// ErrInsufficientData is returned when a series has fewer than MinPoints
// closes. The caller treats the instrument as unresolved.
var ErrInsufficientData = errors.New("series too short: need at least 5 closes")

const (
	// MinPoints is the minimum usable series length.
	MinPoints = 5
	// trailingVolumeWindow is the lookback for the average-volume baseline.
	trailingVolumeWindow = 20
	// volatilityWindow is the lookback for the daily-return deviation.
	volatilityWindow = 20
)

// Compute derives StockMetrics from one chronological series.
//
// Weekly and monthly changes fall back to the previous close when the series
// is shorter than their lookback; degraded accuracy is acceptable, an
// out-of-range access is not.
func Compute(s *models.Series) (*models.StockMetrics, error) {
	if s == nil || len(s.Closes) < MinPoints {
		return nil, ErrInsufficientData
	}

	closes := s.Closes
	volumes := s.Volumes

	currentPrice := closes[len(closes)-1]
	prevClose := closes[len(closes)-2]
	weekAgo := prevClose
	if len(closes) >= 6 {
		weekAgo = closes[len(closes)-6]
	}
	monthAgo := prevClose
	if len(closes) >= 22 {
		monthAgo = closes[len(closes)-22]
	}

	dailyChange := (currentPrice - prevClose) / prevClose * 100
	weeklyChange := (currentPrice - weekAgo) / weekAgo * 100
	monthlyChange := (currentPrice - monthAgo) / monthAgo * 100

	avgVolume := trailingAverage(volumes, trailingVolumeWindow)
	var recentVolume float64
	if len(volumes) > 0 {
		recentVolume = volumes[len(volumes)-1]
	}
	volumeRatio := 1.0
	if avgVolume > 0 {
		volumeRatio = recentVolume / avgVolume
	}

	// Composite momentum: each signal's contribution is clamped so no single
	// metric dominates the score.
	momentum := 50.0
	momentum += clamp(dailyChange*5, -20, 20)
	momentum += clamp(weeklyChange*2, -15, 15)
	momentum += clamp(monthlyChange, -15, 15)
	if volumeRatio > 1.5 {
		momentum += math.Min((volumeRatio-1)*5, 10)
	}
	momentum = clamp(momentum, 0, 100)

	m := &models.StockMetrics{
		Ticker:           s.Ticker,
		CurrentPrice:     round(currentPrice, 2),
		PrevClose:        round(prevClose, 2),
		DailyChangePct:   round(dailyChange, 2),
		WeeklyChangePct:  round(weeklyChange, 2),
		MonthlyChangePct: round(monthlyChange, 2),
		VolumeRatio:      round(volumeRatio, 2),
		MomentumScore:    round(momentum, 1),
		AvgVolume:        int64(avgVolume),
		RecentVolume:     int64(recentVolume),
		Synthetic:        s.Synthetic,
	}

	// A flat synthetic replay has no real return path to measure.
	if !s.Synthetic && len(closes) >= 6 {
		m.Volatility = round(dailyReturnStdDev(closes, volatilityWindow)*100, 2)
	}

	return m, nil
}

// trailingAverage averages the last n values, or all values if fewer.
func trailingAverage(values []float64, n int) float64 {
	if len(values) == 0 {
		return 0
	}
	start := len(values) - n
	if start < 0 {
		start = 0
	}
	window := values[start:]
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// dailyReturnStdDev computes the population standard deviation of
// close-over-close returns across the last n intervals.
func dailyReturnStdDev(closes []float64, n int) float64 {
	start := len(closes) - n - 1
	if start < 0 {
		start = 0
	}
	window := closes[start:]

	var returns []float64
	for i := 1; i < len(window); i++ {
		if window[i-1] != 0 {
			returns = append(returns, (window[i]-window[i-1])/window[i-1])
		}
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
