package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/funmusicgames1/stockcast-backend/models"
)

// SQLiteStore is the embedded single-host backend. The driver is pure Go, so
// the binary stays cgo-free. SQLite allows one writer at a time; the mutex
// serializes writes at the application level instead of surfacing SQLITE_BUSY.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database file and its schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		model TEXT NOT NULL,
		market_summary TEXT,
		winners TEXT NOT NULL,
		losers TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE (date, model)
	);
	CREATE TABLE IF NOT EXISTS actuals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		ticker TEXT NOT NULL,
		model TEXT NOT NULL,
		predicted_change_pct REAL NOT NULL,
		actual_change_pct REAL NOT NULL,
		prediction_type TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE (date, ticker, model)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: log.With().Str("component", "sqlite").Logger(),
	}, nil
}

// SavePredictions upserts one row per engine that produced a valid set.
func (s *SQLiteStore) SavePredictions(ctx context.Context, date string, results models.ModelResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (date, model)
			DO UPDATE SET
				market_summary = excluded.market_summary,
				winners = excluded.winners,
				losers = excluded.losers
		`, date, model, set.MarketSummary, string(winners), string(losers))
		if err != nil {
			return fmt.Errorf("upserting predictions for %s: %w", model, err)
		}
		s.logger.Info().Str("date", date).Str("model", model).Msg("Predictions saved")
	}
	return nil
}

// GetPredictionsForDate returns every engine's prediction set stored for the
// date, keyed by engine name.
func (s *SQLiteStore) GetPredictionsForDate(ctx context.Context, date string) (models.ModelResults, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, market_summary, winners, losers
		FROM predictions
		WHERE date = ?
	`, date)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	results := make(models.ModelResults)
	for rows.Next() {
		var (
			set             models.PredictionSet
			winners, losers string
		)
		if err := rows.Scan(&set.Model, &set.MarketSummary, &winners, &losers); err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		if err := json.Unmarshal([]byte(winners), &set.Winners); err != nil {
			return nil, fmt.Errorf("unmarshaling winners: %w", err)
		}
		if err := json.Unmarshal([]byte(losers), &set.Losers); err != nil {
			return nil, fmt.Errorf("unmarshaling losers: %w", err)
		}
		set.Date = date
		results[set.Model] = &set
	}
	return results, rows.Err()
}

// SaveActuals upserts realized-move rows for the date.
func (s *SQLiteStore) SaveActuals(ctx context.Context, date string, actuals []models.ActualResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range actuals {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO actuals (date, ticker, model, predicted_change_pct, actual_change_pct, prediction_type)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (date, ticker, model)
			DO UPDATE SET
				predicted_change_pct = excluded.predicted_change_pct,
				actual_change_pct = excluded.actual_change_pct,
				prediction_type = excluded.prediction_type
		`, date, a.Ticker, a.Model, a.PredictedChangePct, a.ActualChangePct, a.PredictionType)
		if err != nil {
			return fmt.Errorf("upserting actual for %s/%s: %w", a.Ticker, a.Model, err)
		}
	}
	s.logger.Info().Str("date", date).Int("rows", len(actuals)).Msg("Actuals saved")
	return nil
}

// GetActualsForDate returns all realized-move rows stored for the date.
func (s *SQLiteStore) GetActualsForDate(ctx context.Context, date string) ([]models.ActualResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, model, predicted_change_pct, actual_change_pct, prediction_type
		FROM actuals
		WHERE date = ?
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
func (s *SQLiteStore) RecentHistory(ctx context.Context, days int) ([]models.PredictionSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, model, market_summary, winners, losers
		FROM predictions
		ORDER BY date DESC, model
		LIMIT ?
	`, days)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var history []models.PredictionSet
	for rows.Next() {
		var (
			set             models.PredictionSet
			winners, losers string
		)
		if err := rows.Scan(&set.Date, &set.Model, &set.MarketSummary, &winners, &losers); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(winners), &set.Winners); err != nil {
			return nil, fmt.Errorf("unmarshaling winners: %w", err)
		}
		if err := json.Unmarshal([]byte(losers), &set.Losers); err != nil {
			return nil, fmt.Errorf("unmarshaling losers: %w", err)
		}
		history = append(history, set)
	}
	return history, rows.Err()
}

// Close closes the database file.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
