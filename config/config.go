// Package config provides unified configuration loading for docqa.
//
// Priority: built-in defaults, then the YAML file, then environment
// variables. A .env file in the working directory is loaded into the
// environment first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete docqa configuration.
type Config struct {
	// LLM is the completion provider configuration.
	LLM LLMConfig `yaml:"llm"`

	// Embedding is the embedding provider configuration.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Rerank is the rerank scoring provider configuration.
	Rerank RerankConfig `yaml:"rerank"`

	// Qdrant is the vector index configuration.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Database is the fragment ledger configuration.
	Database DatabaseConfig `yaml:"database"`

	// Chunking controls fragment sizing.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval controls query expansion and candidate selection.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Answer controls answer composition.
	Answer AnswerConfig `yaml:"answer"`

	// Telemetry is the OTel exporter configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Log is the logging configuration.
	Log LogConfig `yaml:"log"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Dimensions        int           `yaml:"dimensions"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// RerankConfig configures the rerank provider. Provider "none" selects the
// passthrough reranker.
type RerankConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// QdrantConfig configures the Qdrant vector index.
type QdrantConfig struct {
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	APIKey               string        `yaml:"api_key"`
	Collection           string        `yaml:"collection"`
	Timeout              time.Duration `yaml:"timeout"`
	AutoCreateCollection bool          `yaml:"auto_create_collection"`
}

// DatabaseConfig configures the fragment ledger. Driver is one of
// "sqlite", "postgres", "mysql".
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// ChunkingConfig controls fragment sizing.
type ChunkingConfig struct {
	MaxTokens     int    `yaml:"max_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	Encoding      string `yaml:"encoding"`
}

// RetrievalConfig controls query expansion and candidate selection.
type RetrievalConfig struct {
	MaxExpansions int `yaml:"max_expansions"`
	FetchK        int `yaml:"fetch_k"`
	TopK          int `yaml:"top_k"`
	AnswerPoolK   int `yaml:"answer_pool_k"`
}

// AnswerConfig controls answer composition.
type AnswerConfig struct {
	HistoryWindow int    `yaml:"history_window"`
	PreviewChars  int    `yaml:"preview_chars"`
	DefaultMode   string `yaml:"default_mode"`
}

// TelemetryConfig configures OTel exporters.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "groq",
			BaseURL:     "https://api.groq.com/openai",
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.0,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			Timeout:    30 * time.Second,
		},
		Rerank: RerankConfig{
			Provider: "none",
			BaseURL:  "https://api.cohere.ai",
			Model:    "rerank-v3.5",
			Timeout:  30 * time.Second,
		},
		Qdrant: QdrantConfig{
			Host:                 "localhost",
			Port:                 6333,
			Collection:           "docqa_fragments",
			Timeout:              30 * time.Second,
			AutoCreateCollection: true,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "docqa.db",
			MaxIdleConns: 2,
			MaxOpenConns: 10,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     350,
			OverlapTokens: 50,
			Encoding:      "cl100k_base",
		},
		Retrieval: RetrievalConfig{
			MaxExpansions: 3,
			FetchK:        10,
			TopK:          4,
			AnswerPoolK:   6,
		},
		Answer: AnswerConfig{
			HistoryWindow: 4,
			PreviewChars:  300,
			DefaultMode:   "strict",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "docqa",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment variables, in that priority order.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (c *Config) applyEnv() {
	setString(&c.LLM.APIKey, "DOCQA_LLM_API_KEY", "GROQ_API_KEY")
	setString(&c.LLM.BaseURL, "DOCQA_LLM_BASE_URL")
	setString(&c.LLM.Model, "DOCQA_LLM_MODEL")
	setString(&c.Embedding.APIKey, "DOCQA_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	setString(&c.Embedding.BaseURL, "DOCQA_EMBEDDING_BASE_URL")
	setString(&c.Embedding.Model, "DOCQA_EMBEDDING_MODEL")
	setString(&c.Rerank.Provider, "DOCQA_RERANK_PROVIDER")
	setString(&c.Rerank.APIKey, "DOCQA_RERANK_API_KEY", "COHERE_API_KEY")
	setString(&c.Qdrant.Host, "DOCQA_QDRANT_HOST")
	setInt(&c.Qdrant.Port, "DOCQA_QDRANT_PORT")
	setString(&c.Qdrant.APIKey, "DOCQA_QDRANT_API_KEY")
	setString(&c.Qdrant.Collection, "DOCQA_QDRANT_COLLECTION")
	setString(&c.Database.Driver, "DOCQA_DATABASE_DRIVER")
	setString(&c.Database.DSN, "DOCQA_DATABASE_DSN")
	setString(&c.Log.Level, "DOCQA_LOG_LEVEL")
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks invariants that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be > 0")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, max_tokens)")
	}
	if c.Retrieval.FetchK <= 0 || c.Retrieval.TopK <= 0 || c.Retrieval.AnswerPoolK <= 0 {
		return fmt.Errorf("retrieval fetch_k, top_k, and answer_pool_k must be > 0")
	}
	if c.Retrieval.MaxExpansions <= 0 {
		return fmt.Errorf("retrieval.max_expansions must be > 0")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres, or mysql, got %q", c.Database.Driver)
	}
	switch c.Rerank.Provider {
	case "none", "cohere":
	default:
		return fmt.Errorf("rerank.provider must be none or cohere, got %q", c.Rerank.Provider)
	}
	switch c.Answer.DefaultMode {
	case "strict", "hybrid":
	default:
		return fmt.Errorf("answer.default_mode must be strict or hybrid, got %q", c.Answer.DefaultMode)
	}
	return nil
}
