package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizforge/quizforge/internal/config"
	"github.com/quizforge/quizforge/internal/engine"
	"github.com/quizforge/quizforge/internal/generation"
	"github.com/quizforge/quizforge/internal/index"
	"github.com/quizforge/quizforge/internal/log"
	"github.com/quizforge/quizforge/internal/observability"
	"github.com/quizforge/quizforge/internal/resource"
)

// app holds the wired components behind one CLI invocation.
// Call close() to release connections and flush traces.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	manager *resource.Manager
	meta    *index.MetaStore

	traceShutdown func(context.Context) error
}

// setup loads configuration and initializes shared dependencies. Partial
// resource initialization is tolerated; commands fail later with a typed
// error if the dependency they need is down.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := slog.Default()

	traceShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	manager := resource.NewManager(cfg, logger)
	if err := manager.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing resources: %w", err)
	}

	meta, err := index.OpenMetaStore(cfg.MetadataDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	return &app{
		cfg:           cfg,
		logger:        logger,
		manager:       manager,
		meta:          meta,
		traceShutdown: traceShutdown,
	}, nil
}

func (a *app) close() {
	if err := a.meta.Close(); err != nil {
		a.logger.Warn("closing metadata store", "error", err)
	}
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("closing resources", "error", err)
	}
	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			a.logger.Warn("flushing traces", "error", err)
		}
	}
}

// builder wires an IndexBuilder, requiring the embedder and vector store.
func (a *app) builder() (*index.Builder, error) {
	embedder, err := a.manager.Embedder()
	if err != nil {
		return nil, err
	}
	store, err := a.manager.VectorStore()
	if err != nil {
		return nil, err
	}

	return index.NewBuilder(store, a.meta, embedder, index.Options{
		DocumentsDir: a.cfg.DocumentsDir,
		ChunkSize:    a.cfg.ChunkSize,
		ChunkOverlap: a.cfg.ChunkOverlap,
		EmbeddingDim: a.cfg.EmbeddingDim,
		Concurrency:  2,
	}, a.logger.With("component", "index")), nil
}

// engine wires a QueryEngine, requiring every dependency.
func (a *app) engine() (*engine.Engine, error) {
	embedder, err := a.manager.Embedder()
	if err != nil {
		return nil, err
	}
	generator, err := a.manager.Generator()
	if err != nil {
		return nil, err
	}
	store, err := a.manager.VectorStore()
	if err != nil {
		return nil, err
	}

	return engine.New(embedder, generator, store, a.meta, engine.Options{
		ModelName:           a.cfg.ModelName,
		SimilarityThreshold: a.cfg.SimilarityThreshold,
		SearchTopK:          a.cfg.SearchTopK,
		ChatTopK:            a.cfg.ChatTopK,
		MaxQuestions:        a.cfg.MaxQuestions,
		TokensPerQuestion:   a.cfg.TokensPerQuestion,
		TokenOverhead:       a.cfg.TokenOverhead,
		MaxOutputTokens:     a.cfg.MaxOutputTokens,
		GenerationTimeout:   a.cfg.GenerationTimeout(),
		ChatTimeout:         a.cfg.ChatTimeout(),
		CacheSize:           a.cfg.CacheSize,
		CacheTTL:            a.cfg.CacheTTL(),
		RateLimitRPS:        a.cfg.RateLimitRPS,
	}, a.logger.With("component", "engine")), nil
}

// coordinator wires a generation coordinator on top of the engine.
func (a *app) coordinator(e *engine.Engine) *generation.Coordinator {
	return generation.NewCoordinator(e, generation.Options{
		DefaultBatchSize: a.cfg.BatchSize,
		MaxTotal:         a.cfg.MaxQuestions,
	}, a.logger.With("component", "generation"))
}
