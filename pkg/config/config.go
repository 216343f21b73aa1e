// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Postgres, Redis, Kafka, Arxiv, Embedding, Index,
// Pipeline, Notification, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Postgres     PostgresConfig     `yaml:"postgres"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Arxiv        ArxivConfig        `yaml:"arxiv"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Index        IndexConfig        `yaml:"index"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Notification NotificationConfig `yaml:"notification"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

// PostgresConfig holds PostgreSQL connection parameters for the
// organization and paper repositories.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters. Redis backs the
// seen-paper dedup cache and run-scoped scratch keys.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	SeenTTL  time.Duration `yaml:"seenTtl"`
}

// KafkaConfig holds the broker list and the audit topic that receives
// per-stage pipeline run events.
type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	RunEventsTopic string   `yaml:"runEventsTopic"`
}

// ArxivConfig controls the external paper source client.
type ArxivConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Categories     []string      `yaml:"categories"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
	PageSize       int           `yaml:"pageSize"`
}

// ExtractionConfig controls the full-text extraction service. An empty
// endpoint switches the pipeline to abstract-only indexing.
type ExtractionConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// EmbeddingConfig controls the embedding provider.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	CacheSize int    `yaml:"cacheSize"`
}

// IndexConfig controls the search-index bulk client.
type IndexConfig struct {
	BaseURL            string        `yaml:"baseUrl"`
	IndexName          string        `yaml:"indexName"`
	BulkSize           int           `yaml:"bulkSize"`
	MaxConcurrentBulks int           `yaml:"maxConcurrentBulks"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
}

// PipelineConfig controls stage orchestration: worker counts, per-tenant
// limits, and the per-stage timeout safeguard.
type PipelineConfig struct {
	Workers          int           `yaml:"workers"`
	MaxOrganizations int           `yaml:"maxOrganizations"`
	PerOrgFetchLimit int           `yaml:"perOrgFetchLimit"`
	IngestionCeiling int           `yaml:"ingestionCeiling"`
	StageTimeout     time.Duration `yaml:"stageTimeout"`
	DurationCeiling  time.Duration `yaml:"durationCeiling"`
	ChunkSize        int           `yaml:"chunkSize"`
	ChunkOverlap     int           `yaml:"chunkOverlap"`
	ReplaceExisting  bool          `yaml:"replaceExisting"`
}

// NotificationConfig wires the terminal run notification channel.
type NotificationConfig struct {
	WebhookURL string        `yaml:"webhookUrl"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig controls span tracing of pipeline stages.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) and applies environment-
// variable overrides. It returns a Config populated with sensible defaults
// for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Arxiv.BaseURL == "" {
		return apperrors.New(apperrors.ErrConfiguration, "arxiv.baseUrl is required")
	}
	if c.Index.BaseURL == "" {
		return apperrors.New(apperrors.ErrConfiguration, "index.baseUrl is required")
	}
	if c.Pipeline.Workers <= 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return apperrors.Newf(apperrors.ErrConfiguration,
			"pipeline.chunkOverlap (%d) must be smaller than pipeline.chunkSize (%d)",
			c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "researchcopilot",
			User:            "researchcopilot",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			SeenTTL:  30 * 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled:        false,
			Brokers:        []string{"localhost:9092"},
			RunEventsTopic: "pipeline-run-events",
		},
		Arxiv: ArxivConfig{
			BaseURL:        "https://export.arxiv.org",
			Categories:     []string{"cs.AI", "cs.CL", "cs.LG"},
			RequestTimeout: 20 * time.Second,
			MaxRetries:     3,
			PageSize:       100,
		},
		Extraction: ExtractionConfig{
			RequestTimeout: 30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:11434/v1",
			Model:     "nomic-embed-text",
			CacheSize: 10000,
		},
		Index: IndexConfig{
			BaseURL:            "http://localhost:9200",
			IndexName:          "papers",
			BulkSize:           200,
			MaxConcurrentBulks: 4,
			RequestTimeout:     30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:          4,
			MaxOrganizations: 50,
			PerOrgFetchLimit: 25,
			IngestionCeiling: 100,
			StageTimeout:     10 * time.Minute,
			DurationCeiling:  30 * time.Minute,
			ChunkSize:        1200,
			ChunkOverlap:     200,
			ReplaceExisting:  true,
		},
		Notification: NotificationConfig{
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Tracing: TracingConfig{
			Enabled: true,
		},
	}
}

// applyEnvOverrides reads RC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RC_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("RC_ARXIV_BASE_URL"); v != "" {
		cfg.Arxiv.BaseURL = v
	}
	if v := os.Getenv("RC_ARXIV_CATEGORIES"); v != "" {
		cfg.Arxiv.Categories = strings.Split(v, ",")
	}
	if v := os.Getenv("RC_EXTRACTION_ENDPOINT"); v != "" {
		cfg.Extraction.Endpoint = v
	}
	if v := os.Getenv("RC_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("RC_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("RC_INDEX_BASE_URL"); v != "" {
		cfg.Index.BaseURL = v
	}
	if v := os.Getenv("RC_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("RC_NOTIFICATION_WEBHOOK_URL"); v != "" {
		cfg.Notification.WebhookURL = v
	}
	if v := os.Getenv("RC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
