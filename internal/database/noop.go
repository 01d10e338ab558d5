package database

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/models"
)

// NoopStore discards everything. It keeps the pipeline runnable with no
// database configured: the JSON export still works, history does not.
type NoopStore struct{}

// NewNoopStore returns a store that persists nothing.
func NewNoopStore() *NoopStore {
	log.Warn().Str("component", "database").Msg("No database configured, predictions will not be persisted")
	return &NoopStore{}
}

func (*NoopStore) SavePredictions(context.Context, string, models.ModelResults) error {
	return nil
}

func (*NoopStore) GetPredictionsForDate(context.Context, string) (models.ModelResults, error) {
	return models.ModelResults{}, nil
}

func (*NoopStore) SaveActuals(context.Context, string, []models.ActualResult) error {
	return nil
}

func (*NoopStore) GetActualsForDate(context.Context, string) ([]models.ActualResult, error) {
	return nil, nil
}

func (*NoopStore) RecentHistory(context.Context, int) ([]models.PredictionSet, error) {
	return nil, nil
}

func (*NoopStore) Close() error { return nil }
