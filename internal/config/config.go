// Package config provides configuration management for the memory subsystem.
// Settings come from three layers with increasing precedence: built-in
// defaults, an optional YAML file, and environment variables with the
// MEMOS_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the memory subsystem.
type Config struct {
	Observation   ObservationConfig   `yaml:"observation"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Summarizer    SummarizerConfig    `yaml:"summarizer"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Graph         GraphConfig         `yaml:"graph"`
	Persistence   PersistenceConfig   `yaml:"persistence"`
	Intake        IntakeConfig        `yaml:"intake"`
}

// ObservationConfig controls the observation ring buffer.
type ObservationConfig struct {
	BufferSize int `yaml:"buffer_size"` // Ring capacity (default: 50)
}

// EmbeddingConfig controls the embedding collaborator.
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"`     // "openai" or "mock" (default: mock when no API key)
	APIKey      string        `yaml:"api_key"`      // API key for the OpenAI-compatible endpoint
	BaseURL     string        `yaml:"base_url"`     // Override endpoint URL (empty = provider default)
	Model       string        `yaml:"model"`        // Embedding model name
	Dimension   int           `yaml:"dimension"`    // Vector dimension (default: 128)
	Timeout     time.Duration `yaml:"timeout"`      // Per-call bound (default: 10s)
	RatePerSec  float64       `yaml:"rate_per_sec"` // Embedding worker rate limit (default: 5)
	QueueSize   int           `yaml:"queue_size"`   // Pending-embedding queue capacity (default: 256)
	CacheSize   int           `yaml:"cache_size"`   // Query-embedding LRU capacity (default: 512)
}

// SummarizerConfig controls the summarization collaborator used by the
// consolidation engine.
type SummarizerConfig struct {
	Model   string        `yaml:"model"`   // Completion model name
	Timeout time.Duration `yaml:"timeout"` // Per-call bound (default: 15s)
}

// ConsolidationConfig controls when and how old records are merged.
type ConsolidationConfig struct {
	Threshold    int           `yaml:"threshold"`      // Total live records before a pass triggers (default: 50)
	Interval     time.Duration `yaml:"interval"`       // Max time between passes (default: 1h)
	MinBucket    int           `yaml:"min_bucket"`     // Buckets below this size are skipped (default: 10)
	MinGroupSize int           `yaml:"min_group_size"` // Tag groups below this size are skipped (default: 3)
}

// GraphConfig controls the relationship graph's optional remote tier.
type GraphConfig struct {
	RemoteDSN     string        `yaml:"remote_dsn"`     // Postgres DSN for the sync tier (empty = local only)
	RemoteTimeout time.Duration `yaml:"remote_timeout"` // Per-call bound on remote operations (default: 5s)
}

// PersistenceConfig selects the optional snapshot hook.
type PersistenceConfig struct {
	Driver string `yaml:"driver"` // "", "sqlite", or "pgvector"
	DSN    string `yaml:"dsn"`    // File path (sqlite) or connection string (pgvector)
}

// IntakeConfig controls the websocket observation intake endpoint.
type IntakeConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve the intake endpoint (default: false)
	Addr    string `yaml:"addr"`    // Listen address (default: 127.0.0.1:6367)
}

// Load builds the configuration from defaults, the optional YAML file named
// by MEMOS_CONFIG, and MEMOS_-prefixed environment variables, in that order
// of precedence.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("MEMOS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// loadFile merges settings from a YAML file into the config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	c.Observation.BufferSize = getEnvInt("MEMOS_OBSERVATION_BUFFER_SIZE", c.Observation.BufferSize)

	c.Embedding.Provider = getEnv("MEMOS_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.APIKey = getEnv("MEMOS_EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.BaseURL = getEnv("MEMOS_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = getEnv("MEMOS_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimension = getEnvInt("MEMOS_EMBEDDING_DIMENSION", c.Embedding.Dimension)
	c.Embedding.Timeout = getEnvDuration("MEMOS_EMBEDDING_TIMEOUT", c.Embedding.Timeout)
	c.Embedding.RatePerSec = getEnvFloat("MEMOS_EMBEDDING_RATE_PER_SEC", c.Embedding.RatePerSec)
	c.Embedding.QueueSize = getEnvInt("MEMOS_EMBEDDING_QUEUE_SIZE", c.Embedding.QueueSize)
	c.Embedding.CacheSize = getEnvInt("MEMOS_EMBEDDING_CACHE_SIZE", c.Embedding.CacheSize)

	c.Summarizer.Model = getEnv("MEMOS_SUMMARIZER_MODEL", c.Summarizer.Model)
	c.Summarizer.Timeout = getEnvDuration("MEMOS_SUMMARIZER_TIMEOUT", c.Summarizer.Timeout)

	c.Consolidation.Threshold = getEnvInt("MEMOS_CONSOLIDATION_THRESHOLD", c.Consolidation.Threshold)
	c.Consolidation.Interval = getEnvDuration("MEMOS_CONSOLIDATION_INTERVAL", c.Consolidation.Interval)
	c.Consolidation.MinBucket = getEnvInt("MEMOS_CONSOLIDATION_MIN_BUCKET", c.Consolidation.MinBucket)
	c.Consolidation.MinGroupSize = getEnvInt("MEMOS_CONSOLIDATION_MIN_GROUP_SIZE", c.Consolidation.MinGroupSize)

	c.Graph.RemoteDSN = getEnv("MEMOS_GRAPH_REMOTE_DSN", c.Graph.RemoteDSN)
	c.Graph.RemoteTimeout = getEnvDuration("MEMOS_GRAPH_REMOTE_TIMEOUT", c.Graph.RemoteTimeout)

	c.Persistence.Driver = getEnv("MEMOS_PERSIST_DRIVER", c.Persistence.Driver)
	c.Persistence.DSN = getEnv("MEMOS_PERSIST_DSN", c.Persistence.DSN)

	c.Intake.Enabled = getEnvBool("MEMOS_INTAKE_ENABLED", c.Intake.Enabled)
	c.Intake.Addr = getEnv("MEMOS_INTAKE_ADDR", c.Intake.Addr)
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Observation.BufferSize <= 0 {
		return fmt.Errorf("config: observation buffer size must be positive, got %d", c.Observation.BufferSize)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Consolidation.Threshold <= 0 {
		return fmt.Errorf("config: consolidation threshold must be positive, got %d", c.Consolidation.Threshold)
	}
	if c.Consolidation.Interval <= 0 {
		return fmt.Errorf("config: consolidation interval must be positive, got %s", c.Consolidation.Interval)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Observation: ObservationConfig{
			BufferSize: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:   "mock",
			Model:      "text-embedding-3-small",
			Dimension:  128,
			Timeout:    10 * time.Second,
			RatePerSec: 5,
			QueueSize:  256,
			CacheSize:  512,
		},
		Summarizer: SummarizerConfig{
			Model:   "gpt-4o-mini",
			Timeout: 15 * time.Second,
		},
		Consolidation: ConsolidationConfig{
			Threshold:    50,
			Interval:     time.Hour,
			MinBucket:    10,
			MinGroupSize: 3,
		},
		Graph: GraphConfig{
			RemoteTimeout: 5 * time.Second,
		},
		Intake: IntakeConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6367",
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
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("10s", "1h") or
// returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
