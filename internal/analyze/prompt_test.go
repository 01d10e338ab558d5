package analyze

import (
	"strings"
	"testing"

	"github.com/funmusicgames1/stockcast-backend/models"
)

func TestBuildPromptIsDeterministicAndComplete(t *testing.T) {
	metrics := map[string]*models.StockMetrics{
		"NVDA": {Ticker: "NVDA", CurrentPrice: 181.30, DailyChangePct: 2.4, WeeklyChangePct: 5.1, MonthlyChangePct: 12.0, VolumeRatio: 2.1, MomentumScore: 88, Volatility: 2.45},
		"AAPL": {Ticker: "AAPL", CurrentPrice: 230.12, DailyChangePct: -0.3, WeeklyChangePct: 1.1, MonthlyChangePct: 3.2, VolumeRatio: 0.9, MomentumScore: 55},
	}
	news := &models.NewsDigest{
		Macro: []string{"Fed holds rates steady.", "Oil spikes on supply fears."},
		Sector: map[string][]string{
			"technology": {"Chipmaker beats estimates.", "Cloud spending accelerates.", "A", "B", "C", "D"},
			"energy":     {"OPEC cuts output."},
		},
	}

	p1 := BuildPrompt(metrics, news, "2026-08-28")
	p2 := BuildPrompt(metrics, news, "2026-08-28")
	if p1 != p2 {
		t.Fatal("prompt is not deterministic for identical input")
	}

	for _, want := range []string{
		"NVDA: price=$181.30",
		"1d=+2.4%",
		"vol_ratio=2.1x",
		"momentum=88/100",
		"volatility=2.45",
		"AAPL: price=$230.12",
		"Fed holds rates steady.",
		"TECHNOLOGY:",
		"OPEC cuts output.",
		"exactly 10 items",
		`"2026-08-28"`,
	} {
		if !strings.Contains(p1, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Sector groups are truncated to bound prompt size.
	if strings.Contains(p1, "\n  - D\n") {
		t.Error("sector headlines beyond the cap must be dropped")
	}

	// AAPL has no volatility; its line must not carry the field.
	for _, line := range strings.Split(p1, "\n") {
		if strings.HasPrefix(line, "AAPL:") && strings.Contains(line, "volatility") {
			t.Error("volatility printed for a metric set without one")
		}
	}
}

func TestBuildPromptHandlesEmptyNews(t *testing.T) {
	metrics := map[string]*models.StockMetrics{
		"KO": {Ticker: "KO", CurrentPrice: 61.0, MomentumScore: 50, VolumeRatio: 1.0},
	}
	p := BuildPrompt(metrics, nil, "2026-08-28")
	if !strings.Contains(p, "MACRO & GEOPOLITICAL NEWS") {
		t.Error("section headers must survive an empty digest")
	}
	if !strings.Contains(p, "KO: price=$61.00") {
		t.Error("instrument line missing")
	}
}
