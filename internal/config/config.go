// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (QUIZFORGE_* overrides)
//  2. Config file (~/.quizforge/config.yaml or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - AI: provider, generation model, embedder model, temperature
//   - Vector store: Qdrant host/port, embedding dimension
//   - Indexing: documents root, metadata DB path, chunking parameters
//   - Retrieval: top-k, similarity threshold
//   - Generation: batch sizes, token budget, timeouts, cache
//   - Observability: optional OTLP trace endpoint
//
// Validation uses sentinel errors so callers can branch with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the generation model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDim indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidQdrantHost indicates the Qdrant host is empty.
	ErrInvalidQdrantHost = errors.New("invalid qdrant host")

	// ErrInvalidQdrantPort indicates the Qdrant port is out of range.
	ErrInvalidQdrantPort = errors.New("invalid qdrant port")

	// ErrInvalidDocumentsDir indicates the documents root is empty.
	ErrInvalidDocumentsDir = errors.New("invalid documents directory")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates a retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidBatchSize indicates the generation batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidTimeout indicates a timeout is non-positive.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidCache indicates cache size or TTL is out of range.
	ErrInvalidCache = errors.New("invalid cache configuration")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"`             // "ollama" (default), "googleai"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`         // e.g. "llama3.1", "gemini-2.5-flash"
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"` // e.g. "nomic-embed-text"
	EmbeddingDim  int     `mapstructure:"embedding_dim" json:"embedding_dim"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	OllamaHost    string  `mapstructure:"ollama_host" json:"ollama_host"`

	// Vector store configuration
	QdrantHost string `mapstructure:"qdrant_host" json:"qdrant_host"`
	QdrantPort int    `mapstructure:"qdrant_port" json:"qdrant_port"`

	// Indexing configuration
	DocumentsDir   string `mapstructure:"documents_dir" json:"documents_dir"`       // root holding one subdirectory per subject
	MetadataDBPath string `mapstructure:"metadata_db_path" json:"metadata_db_path"` // sqlite file for checksums + collection registry
	ChunkSize      int    `mapstructure:"chunk_size" json:"chunk_size"`             // target chunk length in runes
	ChunkOverlap   int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	SimilarityThreshold float32 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	SearchTopK          int     `mapstructure:"search_top_k" json:"search_top_k"` // MCQ context retrieval
	ChatTopK            int     `mapstructure:"chat_top_k" json:"chat_top_k"`     // chat retrieval, kept small for latency

	// Generation configuration
	MaxQuestions      int `mapstructure:"max_questions" json:"max_questions"` // upper bound on a single request
	BatchSize         int `mapstructure:"batch_size" json:"batch_size"`       // chunked generation batch size
	TokensPerQuestion int `mapstructure:"tokens_per_question" json:"tokens_per_question"`
	TokenOverhead     int `mapstructure:"token_overhead" json:"token_overhead"`
	MaxOutputTokens   int `mapstructure:"max_output_tokens" json:"max_output_tokens"`

	// Timeouts in seconds
	GenerationTimeoutSec int `mapstructure:"generation_timeout_sec" json:"generation_timeout_sec"`
	ChatTimeoutSec       int `mapstructure:"chat_timeout_sec" json:"chat_timeout_sec"`

	// Response cache
	CacheSize   int `mapstructure:"cache_size" json:"cache_size"`
	CacheTTLMin int `mapstructure:"cache_ttl_min" json:"cache_ttl_min"`

	// LLM call rate limit, requests per second (0 disables limiting)
	RateLimitRPS float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`

	// Observability (optional OTLP HTTP trace export)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // host:port of an OTLP HTTP collector; empty disables tracing
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// GenerationTimeout returns the MCQ generation wall-clock timeout.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSec) * time.Second
}

// ChatTimeout returns the chat generation wall-clock timeout.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.ChatTimeoutSec) * time.Second
}

// CacheTTL returns the response cache time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMin) * time.Minute
}

// Load loads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".quizforge")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a fully populated configuration without touching the
// filesystem. Tests start from this and override what they need.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are hardcoded and always unmarshal cleanly.
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("BUG: unmarshaling defaults: %v", err))
	}
	return &cfg
}

// setDefaults registers every default value on v.
func setDefaults(v *viper.Viper) {
	// AI defaults: local-first via Ollama
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model_name", "llama3.1")
	v.SetDefault("embedder_model", "nomic-embed-text")
	v.SetDefault("embedding_dim", 768)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Qdrant defaults (gRPC port)
	v.SetDefault("qdrant_host", "localhost")
	v.SetDefault("qdrant_port", 6334)

	// Indexing defaults
	v.SetDefault("documents_dir", "./documents")
	v.SetDefault("metadata_db_path", "./data/index_metadata.db")
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)

	// Retrieval defaults
	v.SetDefault("similarity_threshold", 0.3)
	v.SetDefault("search_top_k", 5)
	v.SetDefault("chat_top_k", 3)

	// Generation defaults
	v.SetDefault("max_questions", 50)
	v.SetDefault("batch_size", 5)
	v.SetDefault("tokens_per_question", 150)
	v.SetDefault("token_overhead", 200)
	v.SetDefault("max_output_tokens", 4096)
	v.SetDefault("generation_timeout_sec", 60)
	v.SetDefault("chat_timeout_sec", 20)

	// Cache defaults: 1h TTL enforced at read
	v.SetDefault("cache_size", 128)
	v.SetDefault("cache_ttl_min", 60)

	v.SetDefault("rate_limit_rps", 2.0)

	// Tracing defaults: disabled until an endpoint is configured
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "quizforge")
	v.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds runtime override variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "QUIZFORGE_PROVIDER")
	mustBind("model_name", "QUIZFORGE_MODEL_NAME")
	mustBind("embedder_model", "QUIZFORGE_EMBEDDER_MODEL")
	mustBind("ollama_host", "QUIZFORGE_OLLAMA_HOST")
	mustBind("qdrant_host", "QUIZFORGE_QDRANT_HOST")
	mustBind("qdrant_port", "QUIZFORGE_QDRANT_PORT")
	mustBind("documents_dir", "QUIZFORGE_DOCUMENTS_DIR")
	mustBind("metadata_db_path", "QUIZFORGE_METADATA_DB_PATH")
	mustBind("tracing.endpoint", "QUIZFORGE_OTLP_ENDPOINT")

	// NOTE: GEMINI_API_KEY is read directly by the Genkit GoogleAI plugin,
	// not via viper. Validate() checks its presence for that provider.
}
