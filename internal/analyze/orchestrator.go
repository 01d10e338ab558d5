package analyze

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/internal/telemetry"
	"github.com/funmusicgames1/stockcast-backend/models"
)

// ErrAllEnginesFailed is the fatal condition: no engine produced a valid
// prediction set. One healthy engine is enough to continue (quorum of one).
var ErrAllEnginesFailed = errors.New("every prediction engine failed or returned invalid output")

// Orchestrator runs all configured prediction engines against one shared
// prompt. Engines run concurrently and are all awaited; a failure of one
// never cancels the other, since both are already dispatched and
// cost-independent.
type Orchestrator struct {
	engines []models.Engine
	logger  zerolog.Logger
}

// NewOrchestrator creates an orchestrator over the given engines.
func NewOrchestrator(engines ...models.Engine) *Orchestrator {
	return &Orchestrator{
		engines: engines,
		logger:  log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run builds the analysis prompt once, submits it to every engine in
// parallel, and validates each raw output independently. The returned map
// has one entry per engine; a nil value means that engine is unavailable
// this run. Returns ErrAllEnginesFailed only when no engine succeeded.
func (o *Orchestrator) Run(ctx context.Context, metrics map[string]*models.StockMetrics, news *models.NewsDigest, date string) (models.ModelResults, error) {
	prompt := BuildPrompt(metrics, news, date)
	o.logger.Info().Int("engines", len(o.engines)).Int("prompt_bytes", len(prompt)).Msg("Dispatching analysis")

	results := make([]*models.PredictionSet, len(o.engines))

	var wg sync.WaitGroup
	for i, engine := range o.engines {
		wg.Add(1)
		go func(i int, engine models.Engine) {
			defer wg.Done()
			results[i] = o.runOne(ctx, engine, prompt, date)
		}(i, engine)
	}
	wg.Wait()

	bundle := make(models.ModelResults, len(o.engines))
	valid := 0
	for i, engine := range o.engines {
		bundle[engine.Name()] = results[i]
		if results[i] != nil {
			valid++
		}
	}

	if valid == 0 {
		return nil, ErrAllEnginesFailed
	}
	o.logger.Info().Int("valid", valid).Int("engines", len(o.engines)).Msg("Analysis complete")
	return bundle, nil
}

// runOne submits the prompt to a single engine and validates its output.
// All failure kinds collapse to nil here: transport failure and schema
// failure both mean "engine unavailable" to the pipeline.
func (o *Orchestrator) runOne(ctx context.Context, engine models.Engine, prompt, date string) *models.PredictionSet {
	name := engine.Name()

	raw, err := engine.Analyze(ctx, prompt)
	if err != nil {
		o.logger.Error().Str("engine", name).Err(err).Msg("Engine call failed")
		telemetry.EngineRuns.WithLabelValues(name, "transport_error").Inc()
		return nil
	}

	set, err := ParsePredictions(raw)
	if err != nil {
		kind := "schema_error"
		if errors.Is(err, ErrParse) {
			kind = "parse_error"
		}
		o.logger.Error().Str("engine", name).Err(err).Msg("Engine output rejected")
		telemetry.EngineRuns.WithLabelValues(name, kind).Inc()
		return nil
	}

	set.Model = name
	if set.Date == "" {
		set.Date = date
	}
	telemetry.EngineRuns.WithLabelValues(name, "ok").Inc()
	o.logger.Info().Str("engine", name).Msg("Predictions parsed and validated")
	return set
}
