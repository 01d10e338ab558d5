// Package database provides the persistence backends for daily predictions
// and realized results: PostgreSQL for deployments, an embedded SQLite file
// for single-host runs, and a no-op store when persistence is disabled.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/models"
)

// PostgresStore persists prediction sets and actuals in PostgreSQL. Winner
// and loser lists are stored as JSONB: they are written and read whole, never
// queried element-wise.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore opens a connection, verifies it, and creates the schema
// if it does not exist.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PostgresStore{
		db:     db,
		logger: log.With().Str("component", "postgres").Logger(),
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id SERIAL PRIMARY KEY,
			date TEXT NOT NULL,
			model TEXT NOT NULL,
			market_summary TEXT,
			winners JSONB NOT NULL,
			losers JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (date, model)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS actuals (
			id SERIAL PRIMARY KEY,
			date TEXT NOT NULL,
			ticker TEXT NOT NULL,
			model TEXT NOT NULL,
			predicted_change_pct DOUBLE PRECISION NOT NULL,
			actual_change_pct DOUBLE PRECISION NOT NULL,
			prediction_type TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (date, ticker, model)
		)
	`)
	return err
}

// SavePredictions upserts one row per engine that produced a valid set.
// Re-running the pipeline for the same date overwrites that day's rows.
func (s *PostgresStore) SavePredictions(ctx context.Context, date string, results models.ModelResults) error {
	for model, set := range results {
		if set == nil {
			continue
		}

		winners, err := json.Marshal(set.Winners)
		if err != nil {
			return fmt.Errorf("marshaling winners for %s: %w", model, err)
		}
		losers, err := json.Marshal(set.Losers)
		if err != nil {
			return fmt.Errorf("marshaling losers for %s: %w", model, err)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO predictions (date, model, market_summary, winners, losers)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (date, model)
			DO UPDATE SET
				market_summary = EXCLUDED.market_summary,
				winners = EXCLUDED.winners,
				losers = EXCLUDED.losers
		`, date, model, set.MarketSummary, winners, losers)
		if err != nil {
			return fmt.Errorf("upserting predictions for %s: %w", model, err)
		}
		s.logger.Info().Str("date", date).Str("model", model).Msg("Predictions saved")
	}
	return nil
}

// GetPredictionsForDate returns every engine's prediction set stored for the
// date, keyed by engine name. Missing dates return an empty map.
func (s *PostgresStore) GetPredictionsForDate(ctx context.Context, date string) (models.ModelResults, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, market_summary, winners, losers
		FROM predictions
		WHERE date = $1
	`, date)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	results := make(models.ModelResults)
	for rows.Next() {
		var (
			set             models.PredictionSet
			winners, losers []byte
		)
		if err := rows.Scan(&set.Model, &set.MarketSummary, &winners, &losers); err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		if err := json.Unmarshal(winners, &set.Winners); err != nil {
			return nil, fmt.Errorf("unmarshaling winners: %w", err)
		}
		if err := json.Unmarshal(losers, &set.Losers); err != nil {
			return nil, fmt.Errorf("unmarshaling losers: %w", err)
		}
		set.Date = date
		results[set.Model] = &set
	}
	return results, rows.Err()
}

// SaveActuals upserts realized-move rows for the date.
func (s *PostgresStore) SaveActuals(ctx context.Context, date string, actuals []models.ActualResult) error {
	for _, a := range actuals {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO actuals (date, ticker, model, predicted_change_pct, actual_change_pct, prediction_type)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (date, ticker, model)
			DO UPDATE SET
				predicted_change_pct = EXCLUDED.predicted_change_pct,
				actual_change_pct = EXCLUDED.actual_change_pct,
				prediction_type = EXCLUDED.prediction_type
		`, date, a.Ticker, a.Model, a.PredictedChangePct, a.ActualChangePct, a.PredictionType)
		if err != nil {
			return fmt.Errorf("upserting actual for %s/%s: %w", a.Ticker, a.Model, err)
		}
	}
	s.logger.Info().Str("date", date).Int("rows", len(actuals)).Msg("Actuals saved")
	return nil
}

// GetActualsForDate returns all realized-move rows stored for the date.
func (s *PostgresStore) GetActualsForDate(ctx context.Context, date string) ([]models.ActualResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, model, predicted_change_pct, actual_change_pct, prediction_type
		FROM actuals
		WHERE date = $1
		ORDER BY ticker
	`, date)
	if err != nil {
		return nil, fmt.Errorf("querying actuals: %w", err)
	}
	defer rows.Close()

	return scanActuals(rows)
}

// RecentHistory returns the newest prediction sets across all engines,
// most recent first, capped at days rows.
func (s *PostgresStore) RecentHistory(ctx context.Context, days int) ([]models.PredictionSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, model, market_summary, winners, losers
		FROM predictions
		ORDER BY date DESC, model
		LIMIT $1
	`, days)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var history []models.PredictionSet
	for rows.Next() {
		var (
			set             models.PredictionSet
			winners, losers []byte
		)
		if err := rows.Scan(&set.Date, &set.Model, &set.MarketSummary, &winners, &losers); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal(winners, &set.Winners); err != nil {
			return nil, fmt.Errorf("unmarshaling winners: %w", err)
		}
		if err := json.Unmarshal(losers, &set.Losers); err != nil {
			return nil, fmt.Errorf("unmarshaling losers: %w", err)
		}
		history = append(history, set)
	}
	return history, rows.Err()
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanActuals(rows *sql.Rows) ([]models.ActualResult, error) {
	var out []models.ActualResult
	for rows.Next() {
		var a models.ActualResult
		if err := rows.Scan(&a.Ticker, &a.Model, &a.PredictedChangePct, &a.ActualChangePct, &a.PredictionType); err != nil {
			return nil, fmt.Errorf("scanning actual row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
