// Package exporter assembles the frontend JSON payload: today's predictions,
// yesterday's predictions scored against realized moves, and a market-index
// strip.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/models"
)

// IndexSource provides recent closes for a market index symbol.
type IndexSource interface {
	RecentCloses(ctx context.Context, symbol string, days int) ([]float64, error)
}

var indexSymbols = map[string]string{
	"sp500":  "^GSPC",
	"nasdaq": "^IXIC",
	"dow":    "^DJI",
}

// ScoredEntry is a prediction entry enriched with the realized move. Actual
// and Accuracy are nil until the market day completes.
type ScoredEntry struct {
	models.PredictionEntry
	PredictionType  string   `json:"prediction_type"`
	ActualChangePct *float64 `json:"actual_change_pct"`
	AccuracyScore   *int     `json:"accuracy_score"`
	Outcome         string   `json:"outcome"`
}

// DaySection is today's half of the payload.
type DaySection struct {
	Date          string                   `json:"date"`
	MarketSummary string                   `json:"market_summary"`
	Winners       []models.PredictionEntry `json:"winners"`
	Losers        []models.PredictionEntry `json:"losers"`
}

// ScoredSection is yesterday's half, with outcomes filled in.
type ScoredSection struct {
	Date       string        `json:"date"`
	Winners    []ScoredEntry `json:"winners"`
	Losers     []ScoredEntry `json:"losers"`
	HasActuals bool          `json:"has_actuals"`
}

// Payload is the complete frontend document.
type Payload struct {
	GeneratedAt string                       `json:"generated_at"`
	Today       DaySection                   `json:"today"`
	Yesterday   ScoredSection                `json:"yesterday"`
	Indices     map[string]models.IndexQuote `json:"indices"`
}

// Exporter builds and writes the frontend document.
type Exporter struct {
	outputPath string
	indexes    IndexSource
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates an exporter writing to outputPath. indexes may be nil; the
// index strip is then reported neutral.
func New(outputPath string, indexes IndexSource) *Exporter {
	return &Exporter{
		outputPath: outputPath,
		indexes:    indexes,
		now:        time.Now,
		logger:     log.With().Str("component", "exporter").Logger(),
	}
}

// Score computes the 0-100 accuracy for one prediction against the realized
// move. Correct direction earns a 50-point base plus up to 50 for magnitude
// closeness; wrong direction is penalized by total distance.
func Score(predicted, actual float64) int {
	directionCorrect := (predicted > 0 && actual > 0) || (predicted < 0 && actual < 0)
	if directionCorrect {
		diff := math.Abs(math.Abs(predicted) - math.Abs(actual))
		magnitude := math.Max(0, 50-diff*10)
		return int(math.Round(50 + magnitude))
	}
	penalty := math.Round(50 - math.Abs(actual-predicted)*5)
	if penalty < 0 {
		return 0
	}
	return int(penalty)
}

// outcome labels a scored prediction: beat when the move exceeded the call in
// the right direction, close when direction held, miss otherwise.
func outcome(predicted, actual float64) string {
	directionCorrect := (predicted > 0 && actual > 0) || (predicted < 0 && actual < 0)
	if !directionCorrect {
		return "miss"
	}
	if math.Abs(actual) > math.Abs(predicted) {
		return "beat"
	}
	return "close"
}

func scoreEntries(entries []models.PredictionEntry, predictionType string, actuals map[string]float64) []ScoredEntry {
	scored := make([]ScoredEntry, 0, len(entries))
	for _, e := range entries {
		se := ScoredEntry{
			PredictionEntry: e,
			PredictionType:  predictionType,
			Outcome:         "pending",
		}
		if actual, ok := actuals[e.Ticker]; ok {
			a := actual
			score := Score(e.PredictedChangePct, actual)
			se.ActualChangePct = &a
			se.AccuracyScore = &score
			se.Outcome = outcome(e.PredictedChangePct, actual)
		}
		scored = append(scored, se)
	}
	return scored
}

// BuildPayload assembles the document. yesterday may be nil when no prior-day
// predictions exist; actuals may be empty before market close.
func (e *Exporter) BuildPayload(ctx context.Context, today *models.PredictionSet, yesterday *models.PredictionSet, actuals []models.ActualResult) *Payload {
	now := e.now()

	actualsMap := make(map[string]float64, len(actuals))
	for _, a := range actuals {
		actualsMap[a.Ticker] = a.ActualChangePct
	}

	p := &Payload{
		GeneratedAt: now.Format(time.RFC3339),
		Today: DaySection{
			Date: now.Format("2006-01-02"),
		},
		Yesterday: ScoredSection{
			Date:       now.AddDate(0, 0, -1).Format("2006-01-02"),
			Winners:    []ScoredEntry{},
			Losers:     []ScoredEntry{},
			HasActuals: len(actualsMap) > 0,
		},
		Indices: e.fetchIndices(ctx),
	}

	if today != nil {
		p.Today.MarketSummary = today.MarketSummary
		p.Today.Winners = today.Winners
		p.Today.Losers = today.Losers
		if today.Date != "" {
			p.Today.Date = today.Date
		}
	}

	if yesterday != nil {
		p.Yesterday.Winners = scoreEntries(yesterday.Winners, "winner", actualsMap)
		p.Yesterday.Losers = scoreEntries(yesterday.Losers, "loser", actualsMap)
		if yesterday.Date != "" {
			p.Yesterday.Date = yesterday.Date
		}
	}

	return p
}

// fetchIndices snapshots the major indices. Each failure degrades that index
// to neutral instead of failing the export.
func (e *Exporter) fetchIndices(ctx context.Context) map[string]models.IndexQuote {
	result := make(map[string]models.IndexQuote, len(indexSymbols))
	for name, symbol := range indexSymbols {
		result[name] = models.IndexQuote{Direction: "neutral"}
		if e.indexes == nil {
			continue
		}

		closes, err := e.indexes.RecentCloses(ctx, symbol, 5)
		if err != nil || len(closes) < 2 {
			e.logger.Warn().Str("symbol", symbol).Err(err).Msg("Index snapshot unavailable")
			continue
		}

		current := closes[len(closes)-1]
		prev := closes[len(closes)-2]
		changePct := (current - prev) / prev * 100

		direction := "up"
		if changePct < 0 {
			direction = "down"
		}
		result[name] = models.IndexQuote{
			Value:     math.Round(current*100) / 100,
			ChangePct: math.Round(changePct*100) / 100,
			Direction: direction,
		}
	}
	return result
}

// WriteJSON serializes the payload to the configured output path.
func (e *Exporter) WriteJSON(p *Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	if err := os.WriteFile(e.outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", e.outputPath, err)
	}
	e.logger.Info().Str("path", e.outputPath).Int("bytes", len(data)).Msg("Frontend payload written")
	return nil
}
