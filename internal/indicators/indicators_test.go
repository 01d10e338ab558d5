package indicators

import (
	"errors"
	"math"
	"testing"

	"github.com/funmusicgames1/stockcast-backend/models"
)

func generateSeries(ticker string, n int, close func(i int) float64, volume func(i int) float64) *models.Series {
	s := &models.Series{Ticker: ticker}
	for i := 0; i < n; i++ {
		s.Closes = append(s.Closes, close(i))
		s.Volumes = append(s.Volumes, volume(i))
	}
	return s
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestComputeRejectsShortSeries(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		s := generateSeries("AAPL", n,
			func(i int) float64 { return 100 },
			func(i int) float64 { return 1000 },
		)
		if _, err := Compute(s); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
	if _, err := Compute(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("nil series: expected ErrInsufficientData, got %v", err)
	}
}

func TestComputeFormulas(t *testing.T) {
	// 30 closes rising by 1 per day from 100; flat volume.
	s := generateSeries("MSFT", 30,
		func(i int) float64 { return 100 + float64(i) },
		func(i int) float64 { return 2_000_000 },
	)

	m, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	last := 129.0
	prev := 128.0
	weekAgo := 124.0  // closes[-6]
	monthAgo := 108.0 // closes[-22]

	wantDaily := (last - prev) / prev * 100
	wantWeekly := (last - weekAgo) / weekAgo * 100
	wantMonthly := (last - monthAgo) / monthAgo * 100

	if !approxEqual(m.DailyChangePct, wantDaily, 0.01) {
		t.Errorf("DailyChangePct = %v, want %v", m.DailyChangePct, wantDaily)
	}
	if !approxEqual(m.WeeklyChangePct, wantWeekly, 0.01) {
		t.Errorf("WeeklyChangePct = %v, want %v", m.WeeklyChangePct, wantWeekly)
	}
	if !approxEqual(m.MonthlyChangePct, wantMonthly, 0.01) {
		t.Errorf("MonthlyChangePct = %v, want %v", m.MonthlyChangePct, wantMonthly)
	}
	if !approxEqual(m.VolumeRatio, 1.0, 0.001) {
		t.Errorf("VolumeRatio = %v, want 1.0", m.VolumeRatio)
	}
	if m.CurrentPrice != 129 || m.PrevClose != 128 {
		t.Errorf("prices = %v / %v, want 129 / 128", m.CurrentPrice, m.PrevClose)
	}
}

func TestComputeShortSeriesFallsBackToPrevClose(t *testing.T) {
	// 5-21 points: weekly uses closes[-6] only when present, monthly always
	// falls back to prev close below 22 points.
	tests := []struct {
		name string
		n    int
	}{
		{"exactly 5 points", 5},
		{"mid range", 10},
		{"just under monthly lookback", 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := generateSeries("NVDA", tt.n,
				func(i int) float64 { return 50 + float64(i)*2 },
				func(i int) float64 { return 1000 },
			)
			m, err := Compute(s)
			if err != nil {
				t.Fatalf("Compute() error: %v", err)
			}
			if tt.n < 22 && !approxEqual(m.MonthlyChangePct, m.DailyChangePct, 0.01) {
				t.Errorf("monthly should equal daily via prev-close fallback: %v vs %v",
					m.MonthlyChangePct, m.DailyChangePct)
			}
			if tt.n == 5 && !approxEqual(m.WeeklyChangePct, m.DailyChangePct, 0.01) {
				t.Errorf("weekly should fall back to prev close at 5 points: %v vs %v",
					m.WeeklyChangePct, m.DailyChangePct)
			}
		})
	}
}

func TestComputeZeroVolumeGuard(t *testing.T) {
	s := generateSeries("GME", 10,
		func(i int) float64 { return 20 + float64(i) },
		func(i int) float64 { return 0 },
	)
	m, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if m.VolumeRatio != 1.0 {
		t.Errorf("VolumeRatio = %v, want neutral 1.0 when trailing average is zero", m.VolumeRatio)
	}
}

func TestMomentumScoreBounds(t *testing.T) {
	tests := []struct {
		name   string
		close  func(i int) float64
		volume func(i int) float64
		check  func(t *testing.T, m *models.StockMetrics)
	}{
		{
			name:   "extreme rally clamps at 100",
			close:  func(i int) float64 { return 10 * math.Pow(1.2, float64(i)) },
			volume: func(i int) float64 { return float64(1000 * (i + 1) * (i + 1)) },
			check: func(t *testing.T, m *models.StockMetrics) {
				if m.MomentumScore != 100 {
					t.Errorf("MomentumScore = %v, want clamp at 100", m.MomentumScore)
				}
			},
		},
		{
			name:   "extreme crash clamps at 0",
			close:  func(i int) float64 { return 1000 * math.Pow(0.8, float64(i)) },
			volume: func(i int) float64 { return 1000 },
			check: func(t *testing.T, m *models.StockMetrics) {
				if m.MomentumScore != 0 {
					t.Errorf("MomentumScore = %v, want clamp at 0", m.MomentumScore)
				}
			},
		},
		{
			name:   "flat series sits at baseline",
			close:  func(i int) float64 { return 75 },
			volume: func(i int) float64 { return 500 },
			check: func(t *testing.T, m *models.StockMetrics) {
				if m.MomentumScore != 50 {
					t.Errorf("MomentumScore = %v, want baseline 50", m.MomentumScore)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compute(generateSeries("X", 30, tt.close, tt.volume))
			if err != nil {
				t.Fatalf("Compute() error: %v", err)
			}
			if m.MomentumScore < 0 || m.MomentumScore > 100 {
				t.Fatalf("MomentumScore %v out of [0,100]", m.MomentumScore)
			}
			tt.check(t, m)
		})
	}
}

func TestVolumeSpikeBonus(t *testing.T) {
	// Flat prices, last volume 3x the trailing average: score should be
	// baseline plus the capped spike bonus.
	s := generateSeries("AMC", 25,
		func(i int) float64 { return 10 },
		func(i int) float64 { return 1000 },
	)
	s.Volumes[len(s.Volumes)-1] = 3000

	m, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if m.VolumeRatio <= 1.5 {
		t.Fatalf("VolumeRatio = %v, expected spike above 1.5", m.VolumeRatio)
	}
	if m.MomentumScore <= 50 || m.MomentumScore > 60 {
		t.Errorf("MomentumScore = %v, want baseline plus bonus capped at +10", m.MomentumScore)
	}
}

func TestComputeLinearRiseScenario(t *testing.T) {
	// 90 days rising linearly 100 -> 130 with flat volume 1,000,000.
	n := 90
	s := generateSeries("ZTST", n,
		func(i int) float64 { return 100 + 30*float64(i)/float64(n-1) },
		func(i int) float64 { return 1_000_000 },
	)

	m, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if m.DailyChangePct <= 0 || m.DailyChangePct > 1 {
		t.Errorf("DailyChangePct = %v, want small positive value", m.DailyChangePct)
	}
	if m.MomentumScore <= 50 || m.MomentumScore > 100 {
		t.Errorf("MomentumScore = %v, want pushed upward but within bounds", m.MomentumScore)
	}
	if !approxEqual(m.VolumeRatio, 1.0, 0.01) {
		t.Errorf("VolumeRatio = %v, want ~1.0", m.VolumeRatio)
	}
}

func TestSyntheticSeriesComputesWithoutVolatility(t *testing.T) {
	s := generateSeries("SOFI", 22,
		func(i int) float64 { return 8.5 },
		func(i int) float64 { return 400000 },
	)
	s.Closes[len(s.Closes)-1] = 8.9
	s.Synthetic = true

	m, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if !m.Synthetic {
		t.Error("Synthetic flag not propagated to metrics")
	}
	if m.Volatility != 0 {
		t.Errorf("Volatility = %v, want 0 for synthetic series", m.Volatility)
	}
	if m.DailyChangePct <= 0 {
		t.Errorf("DailyChangePct = %v, want positive", m.DailyChangePct)
	}
}
