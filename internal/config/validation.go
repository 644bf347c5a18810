package config

import (
	"fmt"
	"os"
)

// Validate checks configuration values and returns sentinel errors usable
// with errors.Is(). Called by Load() so invalid configuration fails fast.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderOllama, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (supported: ollama, googleai)", ErrInvalidProvider, c.Provider)
	}

	// GoogleAI reads its key from the environment inside the Genkit plugin;
	// check it here so the failure happens at startup, not mid-request.
	if c.Provider == ProviderGoogleAI && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for the googleai provider", ErrInvalidProvider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbeddingDim < 1 || c.EmbeddingDim > 8192 {
		return fmt.Errorf("%w: must be between 1 and 8192, got %d", ErrInvalidEmbeddingDim, c.EmbeddingDim)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.QdrantHost == "" {
		return fmt.Errorf("%w: qdrant_host cannot be empty", ErrInvalidQdrantHost)
	}
	if c.QdrantPort < 1 || c.QdrantPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidQdrantPort, c.QdrantPort)
	}

	if c.DocumentsDir == "" {
		return fmt.Errorf("%w: documents_dir cannot be empty", ErrInvalidDocumentsDir)
	}

	if c.ChunkSize < 100 || c.ChunkSize > 20000 {
		return fmt.Errorf("%w: chunk_size must be between 100 and 20000, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.SearchTopK < 1 || c.SearchTopK > 50 {
		return fmt.Errorf("%w: search_top_k must be between 1 and 50, got %d", ErrInvalidTopK, c.SearchTopK)
	}
	if c.ChatTopK < 1 || c.ChatTopK > 10 {
		return fmt.Errorf("%w: chat_top_k must be between 1 and 10, got %d", ErrInvalidTopK, c.ChatTopK)
	}

	if c.MaxQuestions < 1 || c.MaxQuestions > 200 {
		return fmt.Errorf("%w: max_questions must be between 1 and 200, got %d", ErrInvalidBatchSize, c.MaxQuestions)
	}
	if c.BatchSize < 1 || c.BatchSize > c.MaxQuestions {
		return fmt.Errorf("%w: batch_size must be between 1 and max_questions, got %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.TokensPerQuestion < 1 || c.TokenOverhead < 0 || c.MaxOutputTokens < c.TokensPerQuestion {
		return fmt.Errorf("%w: token budget parameters are inconsistent", ErrInvalidBatchSize)
	}

	if c.GenerationTimeoutSec < 1 {
		return fmt.Errorf("%w: generation_timeout_sec must be positive, got %d", ErrInvalidTimeout, c.GenerationTimeoutSec)
	}
	if c.ChatTimeoutSec < 1 {
		return fmt.Errorf("%w: chat_timeout_sec must be positive, got %d", ErrInvalidTimeout, c.ChatTimeoutSec)
	}

	if c.CacheSize < 1 || c.CacheSize > 100000 {
		return fmt.Errorf("%w: cache_size must be between 1 and 100000, got %d", ErrInvalidCache, c.CacheSize)
	}
	if c.CacheTTLMin < 1 {
		return fmt.Errorf("%w: cache_ttl_min must be positive, got %d", ErrInvalidCache, c.CacheTTLMin)
	}

	return nil
}
