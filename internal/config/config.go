// Package config loads process configuration for the context engine with
// the hierarchy: flags (handled by caller) > env vars > config file >
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ebernie/kode-context/internal/logger"
)

// Config represents the top-level configuration structure.
type Config struct {
	Index     IndexConfig     `mapstructure:"index"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Weights   WeightsConfig   `mapstructure:"weights"`
	Diversity DiversityConfig `mapstructure:"diversity"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Logging   logger.Config   `mapstructure:"logging"`
}

// IndexConfig locates the external index service.
type IndexConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RetrievalConfig parameterizes the retrieval pipeline.
type RetrievalConfig struct {
	MaxResults                int           `mapstructure:"max_results"`
	EarlyTerminationEnabled   bool          `mapstructure:"early_termination_enabled"`
	EarlyTerminationThreshold float64       `mapstructure:"early_termination_threshold"`
	KeywordBudget             time.Duration `mapstructure:"keyword_budget"`
	VectorBudget              time.Duration `mapstructure:"vector_budget"`
	StructuralBudget          time.Duration `mapstructure:"structural_budget"`
	RerankBudget              time.Duration `mapstructure:"rerank_budget"`
}

// WeightsConfig holds the multiplicative boosts composed on top of the
// pipeline score.
type WeightsConfig struct {
	ModifiedOverlap  float64 `mapstructure:"modified_overlap"`
	TestFile         float64 `mapstructure:"test_file"`
	DescriptionMatch float64 `mapstructure:"description_match"`
}

// DiversityConfig parameterizes result diversification.
type DiversityConfig struct {
	MaxChunksPerFile      int     `mapstructure:"max_chunks_per_file"`
	DiversityFactor       float64 `mapstructure:"diversity_factor"`
	MinResultsPerCategory int     `mapstructure:"min_results_per_category"`
}

// QueueConfig parameterizes the background indexing queue and worker.
type QueueConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxConcurrentJobs  int           `mapstructure:"max_concurrent_jobs"`
	AutoQueueThreshold int           `mapstructure:"auto_queue_threshold"`
	LowPriorityAbove   int           `mapstructure:"low_priority_above"`
}

// JournalConfig enables the optional Postgres job journal.
type JournalConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LoadConfig loads the configuration using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.kode-context")

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Loaded configuration", "file", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Index service
	v.SetDefault("index.base_url", "http://127.0.0.1:8000")
	v.SetDefault("index.request_timeout", "30s")

	// Retrieval pipeline
	v.SetDefault("retrieval.max_results", 20)
	v.SetDefault("retrieval.early_termination_enabled", true)
	v.SetDefault("retrieval.early_termination_threshold", 0.9)
	v.SetDefault("retrieval.keyword_budget", "100ms")
	v.SetDefault("retrieval.vector_budget", "500ms")
	v.SetDefault("retrieval.structural_budget", "500ms")
	v.SetDefault("retrieval.rerank_budget", "100ms")

	// Weighting
	v.SetDefault("weights.modified_overlap", 2.0)
	v.SetDefault("weights.test_file", 1.5)
	v.SetDefault("weights.description_match", 1.3)

	// Diversification
	v.SetDefault("diversity.max_chunks_per_file", 3)
	v.SetDefault("diversity.diversity_factor", 0.3)
	v.SetDefault("diversity.min_results_per_category", 2)

	// Background queue
	v.SetDefault("queue.poll_interval", "5s")
	v.SetDefault("queue.max_concurrent_jobs", 1)
	v.SetDefault("queue.auto_queue_threshold", 100)
	v.SetDefault("queue.low_priority_above", 500)

	// Journal (off unless configured)
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.driver", "postgres")
	v.SetDefault("journal.host", "localhost")
	v.SetDefault("journal.port", 5432)
	v.SetDefault("journal.database", "kodecontext")
	v.SetDefault("journal.username", "postgres")
	// Password has no default
	v.SetDefault("journal.ssl_mode", "disable")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Index.BaseURL) == "" {
		return errors.New("index.base_url is required")
	}
	if c.Retrieval.MaxResults < 0 {
		return errors.New("retrieval.max_results cannot be negative")
	}
	if c.Retrieval.EarlyTerminationThreshold < 0 {
		return errors.New("retrieval.early_termination_threshold cannot be negative")
	}
	if c.Diversity.DiversityFactor < 0 || c.Diversity.DiversityFactor > 1 {
		return errors.New("diversity.diversity_factor must be within [0, 1]")
	}
	if c.Queue.MaxConcurrentJobs < 1 {
		return errors.New("queue.max_concurrent_jobs must be at least 1")
	}
	if c.Journal.Enabled && c.Journal.Password == "" {
		return errors.New("journal.password is required when the journal is enabled")
	}
	return nil
}

// GetDSN builds the journal connection string.
func (j *JournalConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		j.Host,
		j.Port,
		j.Username,
		j.Password,
		j.Database,
		j.SSLMode,
	)
}
