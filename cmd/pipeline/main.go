package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/internal/analyze"
	"github.com/funmusicgames1/stockcast-backend/internal/api/claude"
	"github.com/funmusicgames1/stockcast-backend/internal/api/fmp"
	"github.com/funmusicgames1/stockcast-backend/internal/api/gemini"
	"github.com/funmusicgames1/stockcast-backend/internal/api/yahoo"
	"github.com/funmusicgames1/stockcast-backend/internal/config"
	"github.com/funmusicgames1/stockcast-backend/internal/database"
	"github.com/funmusicgames1/stockcast-backend/internal/exporter"
	"github.com/funmusicgames1/stockcast-backend/internal/fetcher"
	"github.com/funmusicgames1/stockcast-backend/internal/news"
	"github.com/funmusicgames1/stockcast-backend/internal/notifier"
	"github.com/funmusicgames1/stockcast-backend/internal/telemetry"
	"github.com/funmusicgames1/stockcast-backend/models"
)

// minResolvedInstruments is the floor below which a prediction run would be
// based on too thin a universe to be worth publishing.
const minResolvedInstruments = 20

// enginePreference orders engines for the single-set surfaces (export,
// notification). Persistence always keeps every engine's output.
var enginePreference = []string{"claude", "gemini"}

type app struct {
	scheduler    *fetcher.Scheduler
	news         *news.Client
	orchestrator *analyze.Orchestrator
	store        models.Store
	exporter     *exporter.Exporter
	publisher    *exporter.Publisher
	notifier     *notifier.Telegram
	outputPath   string
}

func main() {
	cronMode := flag.Bool("cron", false, "run on the configured schedule instead of once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.LogLevel)

	a, err := buildApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.store.Close()

	if !*cronMode {
		if err := a.run(context.Background()); err != nil {
			log.Error().Err(err).Msg("Pipeline run failed")
			os.Exit(1)
		}
		return
	}

	metricsSrv := telemetry.Serve(cfg.MetricsAddr)
	defer metricsSrv.Close()
	log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics listener started")

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, func() {
		if err := a.run(context.Background()); err != nil {
			log.Error().Err(err).Msg("Scheduled run failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.CronSpec).Msg("Invalid cron spec")
	}
	c.Start()
	log.Info().Str("spec", cfg.CronSpec).Msg("Scheduler started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("Shutting down")
	<-c.Stop().Done()
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl)
}

func buildApp(cfg *config.Config) (*app, error) {
	primary := yahoo.NewClient(yahoo.ClientOptions{Timeout: cfg.RequestTimeout})
	fallback := fmp.NewClient(fmp.ClientOptions{
		APIKey:  cfg.FMPAPIKey,
		Timeout: cfg.RequestTimeout,
	})

	scheduler := fetcher.New(primary, fallback, fetcher.Options{
		Universe:       cfg.Universe,
		HistoryDays:    cfg.HistoryDays,
		BatchSize:      cfg.BatchSize,
		BatchPause:     cfg.BatchPause,
		CallDelay:      cfg.CallDelay,
		CallJitter:     cfg.CallJitter,
		AbortThreshold: cfg.AbortThreshold,
	})

	orchestrator := analyze.NewOrchestrator(
		claude.NewClient(claude.ClientOptions{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.ClaudeModel,
			MaxTokens: cfg.EngineMaxTokens,
			Timeout:   cfg.EngineTimeout,
		}),
		gemini.NewClient(gemini.ClientOptions{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.EngineMaxTokens,
			Timeout:   cfg.EngineTimeout,
		}),
	)

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		scheduler:    scheduler,
		news:         news.NewClient(news.ClientOptions{APIKey: cfg.NewsAPIKey, Timeout: cfg.RequestTimeout}),
		orchestrator: orchestrator,
		store:        store,
		exporter:     exporter.New(cfg.OutputJSONPath, primary),
		publisher:    exporter.NewPublisher(exporter.PublisherOptions{Token: cfg.GitHubToken, Repo: cfg.GitHubRepo}),
		notifier:     notifier.New(notifier.Options{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID}),
		outputPath:   cfg.OutputJSONPath,
	}, nil
}

func openStore(cfg *config.Config) (models.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		return database.NewPostgresStore(cfg.DatabaseURL)
	case cfg.SQLitePath != "":
		return database.NewSQLiteStore(cfg.SQLitePath)
	default:
		return database.NewNoopStore(), nil
	}
}

// run executes one full pipeline cycle: fetch, analyze, persist, score
// yesterday, export, publish, notify.
func (a *app) run(ctx context.Context) error {
	start := time.Now()
	now := start
	today := now.Format("2006-01-02")
	log.Info().Str("date", today).Msg("Pipeline run starting")

	err := a.runSteps(ctx, now, today)
	if err != nil {
		telemetry.PipelineRuns.WithLabelValues("error").Inc()
		a.notifier.NotifyFailure(today, err)
		return err
	}

	telemetry.PipelineRuns.WithLabelValues("ok").Inc()
	log.Info().Dur("elapsed", time.Since(start)).Msg("Pipeline run complete")
	return nil
}

func (a *app) runSteps(ctx context.Context, now time.Time, today string) error {
	// Step 1: price data for the whole universe.
	metrics, err := a.scheduler.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetching price data: %w", err)
	}
	if len(metrics) < minResolvedInstruments {
		return fmt.Errorf("only %d instruments resolved, need at least %d", len(metrics), minResolvedInstruments)
	}

	// Step 2: news context. Failures inside degrade to an empty digest.
	digest := a.news.Digest(ctx)

	// Step 3: prediction engines.
	results, err := a.orchestrator.Run(ctx, metrics, digest, today)
	if err != nil {
		return fmt.Errorf("running prediction engines: %w", err)
	}

	// Step 4: persist today's predictions.
	if err := a.store.SavePredictions(ctx, today, results); err != nil {
		return fmt.Errorf("saving predictions: %w", err)
	}

	// Step 5: score yesterday's predictions against realized moves.
	// Best effort: a missing prior day must not block today's publish.
	yesterdayDate := now.AddDate(0, 0, -1)
	yesterday := yesterdayDate.Format("2006-01-02")
	yesterdaySet, actuals := a.scoreYesterday(ctx, yesterday, yesterdayDate)

	// Step 6: frontend payload.
	todaySet := preferredSet(results)
	payload := a.exporter.BuildPayload(ctx, todaySet, yesterdaySet, actuals)
	if err := a.exporter.WriteJSON(payload); err != nil {
		return fmt.Errorf("exporting payload: %w", err)
	}

	// Step 7: publish to the frontend repo and notify. A failed push means a
	// stale frontend, not a failed run.
	if err := a.publisher.Publish(ctx, a.outputPath); err != nil {
		log.Warn().Err(err).Msg("GitHub push failed, frontend will be stale")
	}

	a.notifier.NotifyPredictions(todaySet)
	return nil
}

// scoreYesterday loads yesterday's stored predictions, fetches realized
// moves, persists per-engine actuals, and returns the preferred set plus its
// scored rows for the export.
func (a *app) scoreYesterday(ctx context.Context, date string, day time.Time) (*models.PredictionSet, []models.ActualResult) {
	stored, err := a.store.GetPredictionsForDate(ctx, date)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Could not load prior predictions")
		return nil, nil
	}
	if len(stored) == 0 {
		log.Info().Str("date", date).Msg("No prior predictions to score")
		return nil, nil
	}

	tickers := predictedTickers(stored)
	changes := a.scheduler.ActualChanges(ctx, tickers, day)
	if len(changes) == 0 {
		log.Warn().Str("date", date).Msg("No realized prices available yet")
		return preferredSet(stored), nil
	}

	var rows []models.ActualResult
	for model, set := range stored {
		if set == nil {
			continue
		}
		rows = append(rows, actualRows(model, set.Winners, "winner", changes)...)
		rows = append(rows, actualRows(model, set.Losers, "loser", changes)...)
	}
	if err := a.store.SaveActuals(ctx, date, rows); err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Could not persist actuals")
	}

	preferred := preferredSet(stored)
	var exportRows []models.ActualResult
	for _, r := range rows {
		if r.Model == preferred.Model {
			exportRows = append(exportRows, r)
		}
	}
	return preferred, exportRows
}

func actualRows(model string, entries []models.PredictionEntry, predictionType string, changes map[string]float64) []models.ActualResult {
	var rows []models.ActualResult
	for _, e := range entries {
		actual, ok := changes[e.Ticker]
		if !ok {
			continue
		}
		rows = append(rows, models.ActualResult{
			Ticker:             e.Ticker,
			Model:              model,
			PredictedChangePct: e.PredictedChangePct,
			ActualChangePct:    actual,
			PredictionType:     predictionType,
		})
	}
	return rows
}

func predictedTickers(results models.ModelResults) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, set := range results {
		if set == nil {
			continue
		}
		for _, e := range append(append([]models.PredictionEntry{}, set.Winners...), set.Losers...) {
			if !seen[e.Ticker] {
				seen[e.Ticker] = true
				tickers = append(tickers, e.Ticker)
			}
		}
	}
	return tickers
}

// preferredSet picks the engine output used for single-set surfaces.
func preferredSet(results models.ModelResults) *models.PredictionSet {
	for _, name := range enginePreference {
		if set := results[name]; set != nil {
			return set
		}
	}
	for _, set := range results {
		if set != nil {
			return set
		}
	}
	return nil
}
