package models

// Series holds one instrument's chronological close/volume history.
// Closes and Volumes are index-aligned, oldest first, no duplicate days.
// Synthetic marks a series rebuilt from a single quote (flat history replay)
// rather than real daily bars.
type Series struct {
	Ticker    string
	Closes    []float64
	Volumes   []float64
	Synthetic bool
}

// StockMetrics holds the derived per-instrument indicators computed from
// exactly one Series. Immutable once computed.
type StockMetrics struct {
	Ticker           string  `json:"ticker"`
	CurrentPrice     float64 `json:"current_price"`
	PrevClose        float64 `json:"prev_close"`
	DailyChangePct   float64 `json:"daily_change_pct"`
	WeeklyChangePct  float64 `json:"weekly_change_pct"`
	MonthlyChangePct float64 `json:"monthly_change_pct"`
	VolumeRatio      float64 `json:"volume_ratio"`
	MomentumScore    float64 `json:"momentum_score"`
	Volatility       float64 `json:"volatility,omitempty"`
	AvgVolume        int64   `json:"avg_volume"`
	RecentVolume     int64   `json:"recent_volume"`
	Synthetic        bool    `json:"synthetic,omitempty"`
}

// PredictionEntry is one ranked pick inside a winners or losers list.
type PredictionEntry struct {
	Rank               int     `json:"rank"`
	Ticker             string  `json:"ticker"`
	Company            string  `json:"company"`
	Sector             string  `json:"sector"`
	PredictedChangePct float64 `json:"predicted_change_pct"`
	Reason             string  `json:"reason"`
}

// PredictionSet is one engine's validated daily output: exactly ten winners
// (positive predicted change) and ten losers (negative).
type PredictionSet struct {
	Date          string            `json:"date"`
	MarketSummary string            `json:"market_summary"`
	Winners       []PredictionEntry `json:"winners"`
	Losers        []PredictionEntry `json:"losers"`
	Model         string            `json:"model,omitempty"`
}

// ModelResults maps engine name to its validated predictions. A nil entry
// means that engine produced nothing usable this run; downstream consumers
// must treat nil as "unavailable", not as an error.
type ModelResults map[string]*PredictionSet

// NewsDigest groups headlines fed into the analysis prompt.
type NewsDigest struct {
	Macro  []string
	Sector map[string][]string
}

// ActualResult pairs a past prediction with the realized move.
type ActualResult struct {
	Ticker             string  `json:"ticker"`
	Model              string  `json:"model"`
	PredictedChangePct float64 `json:"predicted_change_pct"`
	ActualChangePct    float64 `json:"actual_change_pct"`
	PredictionType     string  `json:"prediction_type"` // "winner" or "loser"
}

// IndexQuote is a lightweight market-index snapshot for the export payload.
type IndexQuote struct {
	Value     float64 `json:"value"`
	ChangePct float64 `json:"change_pct"`
	Direction string  `json:"direction"` // "up", "down" or "neutral"
}
