package models

import "context"

// Engine is a prediction backend. Analyze submits the shared analysis prompt
// and returns the engine's raw text output. Retry policy and credential
// checks are internal to each implementation.
type Engine interface {
	Name() string
	Analyze(ctx context.Context, prompt string) (string, error)
}

// Store persists daily predictions and realized results.
type Store interface {
	SavePredictions(ctx context.Context, date string, results ModelResults) error
	GetPredictionsForDate(ctx context.Context, date string) (ModelResults, error)
	SaveActuals(ctx context.Context, date string, rows []ActualResult) error
	GetActualsForDate(ctx context.Context, date string) ([]ActualResult, error)
	RecentHistory(ctx context.Context, days int) ([]PredictionSet, error)
	Close() error
}
