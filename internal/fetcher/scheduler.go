// Package fetcher drives the two price sources across the instrument
// universe: batched, paced, primary-then-fallback, with a hard abort
// threshold when too many instruments fail both sources.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/internal/indicators"
	"github.com/funmusicgames1/stockcast-backend/internal/telemetry"
	"github.com/funmusicgames1/stockcast-backend/models"
)

// ErrTooManyFailures is the fatal abort condition: the unresolved-instrument
// count exceeded the configured threshold and the universe is too degraded to
// predict from.
var ErrTooManyFailures = errors.New("too many instruments failed both sources")

// PrimarySource is the first-choice per-instrument history provider.
type PrimarySource interface {
	History(ctx context.Context, ticker string, days int) (*models.Series, error)
	CloseOn(ctx context.Context, ticker string, target time.Time) (float64, error)
}

// FallbackSource recovers instruments the primary source could not resolve.
type FallbackSource interface {
	HasKey() bool
	QuoteBatch(ctx context.Context, tickers []string) (map[string]*models.Series, bool, error)
	Quote(ctx context.Context, ticker string) (*models.Series, error)
	History(ctx context.Context, ticker string, days int) (*models.Series, error)
}

// Options holds scheduler tuning knobs.
type Options struct {
	Universe       []string
	HistoryDays    int
	BatchSize      int
	BatchPause     time.Duration
	CallDelay      time.Duration
	CallJitter     time.Duration
	AbortThreshold int

	// Sleep is injectable so tests do not pay for pacing delays.
	Sleep func(time.Duration)
}

// Scheduler fetches the whole universe and computes per-instrument metrics.
// Fetching is deliberately serial: concurrent calls would defeat the
// rate-limit avoidance the pacing exists for.
type Scheduler struct {
	primary  PrimarySource
	fallback FallbackSource
	opts     Options
	logger   zerolog.Logger
}

// New creates a fetch scheduler over the given sources.
func New(primary PrimarySource, fallback FallbackSource, opts Options) *Scheduler {
	if opts.HistoryDays == 0 {
		opts.HistoryDays = 90
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 20
	}
	if opts.BatchPause == 0 {
		opts.BatchPause = 3 * time.Second
	}
	if opts.CallDelay == 0 {
		opts.CallDelay = 300 * time.Millisecond
	}
	if opts.CallJitter == 0 {
		opts.CallJitter = 200 * time.Millisecond
	}
	if opts.AbortThreshold == 0 {
		opts.AbortThreshold = 100
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Scheduler{
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		logger:   log.With().Str("component", "fetch_scheduler").Logger(),
	}
}

func (s *Scheduler) pause(base, jitter time.Duration) {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	s.opts.Sleep(d)
}

// FetchAll resolves metrics for the full universe. Per-instrument failures
// are recoverable (skip and continue); only the aggregate failure count is
// fatal. No instrument is attempted more than once per source.
func (s *Scheduler) FetchAll(ctx context.Context) (map[string]*models.StockMetrics, error) {
	universe := s.opts.Universe
	s.logger.Info().Int("universe", len(universe)).Msg("Fetching price data")

	metrics := make(map[string]*models.StockMetrics, len(universe))
	var primaryFailed []string

	// Pass 1: primary source, batched and paced.
	batches := (len(universe) + s.opts.BatchSize - 1) / s.opts.BatchSize
	for b := 0; b < batches; b++ {
		start := b * s.opts.BatchSize
		end := start + s.opts.BatchSize
		if end > len(universe) {
			end = len(universe)
		}
		batch := universe[start:end]
		s.logger.Info().Int("batch", b+1).Int("batches", batches).Int("tickers", len(batch)).Msg("Primary pass")

		for _, ticker := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			series, err := s.primary.History(ctx, ticker, s.opts.HistoryDays)
			if err != nil {
				s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Primary source miss")
				primaryFailed = append(primaryFailed, ticker)
			} else if m, err := indicators.Compute(series); err != nil {
				s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Could not compute metrics")
				primaryFailed = append(primaryFailed, ticker)
			} else {
				metrics[ticker] = m
				telemetry.FetchResolved.WithLabelValues("primary").Inc()
			}

			s.pause(s.opts.CallDelay, s.opts.CallJitter)
		}

		if b < batches-1 {
			s.pause(s.opts.BatchPause, time.Second)
		}
	}

	s.logger.Info().Int("resolved", len(metrics)).Int("failed", len(primaryFailed)).Msg("Primary pass done")

	// Pass 2: fallback source for whatever the primary missed.
	var bothFailed []string
	if len(primaryFailed) > 0 {
		bothFailed = s.fallbackPass(ctx, primaryFailed, metrics)
	}

	for range bothFailed {
		telemetry.FetchFailed.Inc()
	}

	if len(bothFailed) > s.opts.AbortThreshold {
		return nil, fmt.Errorf("%w: %d failed (threshold %d): %v",
			ErrTooManyFailures, len(bothFailed), s.opts.AbortThreshold, bothFailed)
	}
	if len(bothFailed) > 0 {
		s.logger.Warn().Strs("tickers", bothFailed).Msg("Both sources failed, skipping")
	}

	s.logger.Info().Int("resolved", len(metrics)).Int("skipped", len(bothFailed)).Msg("Fetch complete")
	return metrics, nil
}

// fallbackPass runs the fallback's batched quote mode over the failure list,
// then the per-instrument historical mode for anything still unresolved.
// Returns the tickers no source could serve.
func (s *Scheduler) fallbackPass(ctx context.Context, failed []string, metrics map[string]*models.StockMetrics) []string {
	if !s.fallback.HasKey() {
		s.logger.Warn().Msg("Fallback source has no API key, cannot recover failed tickers")
		return failed
	}

	s.logger.Info().Int("tickers", len(failed)).Msg("Fallback pass")

	recovered, restricted, err := s.fallback.QuoteBatch(ctx, failed)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Fallback batch mode failed")
		recovered = map[string]*models.Series{}
	}

	// Tier restriction on the bulk endpoint: fetch the remainder one by one.
	if restricted {
		for _, ticker := range failed {
			if _, ok := recovered[ticker]; ok {
				continue
			}
			if series, err := s.fallback.Quote(ctx, ticker); err == nil {
				recovered[ticker] = series
			} else {
				s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Fallback quote miss")
			}
			s.pause(s.opts.CallDelay, 0)
		}
	}

	// Historical mode for anything both quote modes left unresolved.
	for _, ticker := range failed {
		if _, ok := recovered[ticker]; ok {
			continue
		}
		if series, err := s.fallback.History(ctx, ticker, s.opts.HistoryDays); err == nil {
			recovered[ticker] = series
		} else {
			s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Fallback history miss")
		}
		s.pause(s.opts.CallDelay, 0)
	}

	var bothFailed []string
	for _, ticker := range failed {
		series, ok := recovered[ticker]
		if !ok {
			bothFailed = append(bothFailed, ticker)
			continue
		}
		m, err := indicators.Compute(series)
		if err != nil {
			s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Could not compute fallback metrics")
			bothFailed = append(bothFailed, ticker)
			continue
		}
		metrics[ticker] = m
		telemetry.FetchResolved.WithLabelValues("fallback").Inc()
		s.logger.Info().Str("ticker", ticker).Bool("synthetic", m.Synthetic).Msg("Recovered via fallback")
	}

	return bothFailed
}
