// Package config provides configuration management for Recall.
// It loads settings from environment variables with the RECALL_ prefix and
// provides sensible defaults for all configuration options. The scoring and
// lifecycle constants live in a separate versioned ScoringConfig (see
// scoring.go) so they can be tuned and hot-reloaded independently.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all wiring-level configuration for the Recall core.
type Config struct {
	Store     StoreConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Lifecycle LifecycleConfig
}

// StoreConfig contains persistence and capacity settings.
type StoreConfig struct {
	DataPath          string        // Directory for the persisted artifacts (default: ./data)
	MaxRecordsPerUser int           // Per-user capacity cap (default: 1000)
	SaveDebounce      time.Duration // Debounce window coalescing mutations into one save (default: 10s)
	ScoringPath       string        // Optional path to a scoring config YAML file
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider          string        // Provider: ollama, openai, fallback (default: fallback)
	OllamaURL         string        // Ollama API URL (default: http://localhost:11434)
	OllamaModel       string        // Ollama embedding model (default: nomic-embed-text)
	OpenAIBaseURL     string        // OpenAI-compatible base URL (default: https://api.openai.com/v1)
	OpenAIAPIKey      string        // OpenAI API key
	OpenAIModel       string        // OpenAI embedding model (default: text-embedding-3-small)
	Dimension         int           // Vector dimension, also used by the fallback embedder (default: 256)
	Timeout           time.Duration // Per-call provider timeout (default: 5s)
	RequestsPerSecond float64       // Outbound rate limit toward the provider (default: 10)
	CacheEntries      int64         // Approximate embedding cache capacity (default: 4096)
}

// IndexConfig contains keyword index configuration.
type IndexConfig struct {
	Backend     string // Keyword index backend: sqlite, postgres, none (default: sqlite)
	SQLitePath  string // Path to the sqlite index file (default: {DataPath}/keyword.db)
	PostgresDSN string // Postgres connection string for the postgres backend
	QueueSize   int    // Async notifier queue capacity (default: 256)
}

// LifecycleConfig contains lifecycle sweep configuration.
type LifecycleConfig struct {
	Interval time.Duration // Sweep interval (default: 24h)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the RECALL_ prefix.
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DataPath:          getEnv("RECALL_DATA_PATH", "./data"),
			MaxRecordsPerUser: getEnvInt("RECALL_MAX_RECORDS_PER_USER", 1000),
			SaveDebounce:      getEnvDuration("RECALL_SAVE_DEBOUNCE", 10*time.Second),
			ScoringPath:       getEnv("RECALL_SCORING_PATH", ""),
		},
		Embedding: EmbeddingConfig{
			Provider:          getEnv("RECALL_EMBED_PROVIDER", "fallback"),
			OllamaURL:         getEnv("RECALL_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("RECALL_OLLAMA_MODEL", "nomic-embed-text"),
			OpenAIBaseURL:     getEnv("RECALL_OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:      getEnv("RECALL_OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("RECALL_OPENAI_MODEL", "text-embedding-3-small"),
			Dimension:         getEnvInt("RECALL_EMBED_DIMENSION", 256),
			Timeout:           getEnvDuration("RECALL_EMBED_TIMEOUT", 5*time.Second),
			RequestsPerSecond: getEnvFloat("RECALL_EMBED_RPS", 10),
			CacheEntries:      int64(getEnvInt("RECALL_EMBED_CACHE_ENTRIES", 4096)),
		},
		Index: IndexConfig{
			Backend:     getEnv("RECALL_INDEX_BACKEND", "sqlite"),
			SQLitePath:  getEnv("RECALL_INDEX_SQLITE_PATH", ""),
			PostgresDSN: getEnv("RECALL_INDEX_POSTGRES_DSN", ""),
			QueueSize:   getEnvInt("RECALL_INDEX_QUEUE_SIZE", 256),
		},
		Lifecycle: LifecycleConfig{
			Interval: getEnvDuration("RECALL_LIFECYCLE_INTERVAL", 24*time.Hour),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default is used.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "10s", "24h") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
