// Package config loads application configuration from environment variables,
// with an optional .env file and an optional YAML ticker-universe override.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	// Data source credentials. Yahoo needs none; FMP is optional and only
	// enables the fallback path.
	FMPAPIKey string

	// Prediction engine credentials and models.
	AnthropicAPIKey string
	ClaudeModel     string
	GeminiAPIKey    string
	GeminiModel     string
	EngineMaxTokens int
	EngineTimeout   time.Duration

	// News context.
	NewsAPIKey string

	// Persistence. DatabaseURL wins over SQLitePath; with neither set the
	// pipeline runs without history.
	DatabaseURL string
	SQLitePath  string

	// Export, publishing and notification.
	OutputJSONPath string
	GitHubToken    string
	GitHubRepo     string
	TelegramToken  string
	TelegramChatID int64

	// Fetch pacing.
	Universe       []string
	HistoryDays    int
	BatchSize      int
	BatchPause     time.Duration
	CallDelay      time.Duration
	CallJitter     time.Duration
	AbortThreshold int
	RequestTimeout time.Duration

	// Scheduling and observability.
	CronSpec    string
	MetricsAddr string
	LogLevel    string
}

// Load initializes configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		FMPAPIKey: os.Getenv("FMP_API_KEY"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:     getEnvWithDefault("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnvWithDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		EngineMaxTokens: getEnvIntWithDefault("ENGINE_MAX_TOKENS", 8192),
		EngineTimeout:   getEnvDurationWithDefault("ENGINE_TIMEOUT", 120*time.Second),

		NewsAPIKey: os.Getenv("NEWS_API_KEY"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),

		OutputJSONPath: getEnvWithDefault("OUTPUT_JSON_PATH", "data.json"),
		GitHubToken:    os.Getenv("GITHUB_TOKEN"),
		GitHubRepo:     os.Getenv("GITHUB_REPO"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),

		HistoryDays:    getEnvIntWithDefault("HISTORY_DAYS", 90),
		BatchSize:      getEnvIntWithDefault("FETCH_BATCH_SIZE", 20),
		BatchPause:     getEnvDurationWithDefault("FETCH_BATCH_PAUSE", 3*time.Second),
		CallDelay:      getEnvDurationWithDefault("FETCH_CALL_DELAY", 300*time.Millisecond),
		CallJitter:     getEnvDurationWithDefault("FETCH_CALL_JITTER", 200*time.Millisecond),
		AbortThreshold: getEnvIntWithDefault("FETCH_ABORT_THRESHOLD", 100),
		RequestTimeout: getEnvDurationWithDefault("REQUEST_TIMEOUT", 15*time.Second),

		CronSpec:    getEnvWithDefault("CRON_SPEC", "0 13 * * 1-5"),
		MetricsAddr: getEnvWithDefault("METRICS_ADDR", ":9090"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
	}

	universe, err := loadUniverse(os.Getenv("UNIVERSE_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Universe = universe

	return cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
