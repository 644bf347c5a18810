// Package resource owns the process-wide model and storage dependencies: the
// embedding model, the vector store connection, and the language model. Each
// dependency initializes independently; a missing one degrades status instead
// of failing the process, and callers consult status (or get a typed error)
// before using a dependent feature.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quizforge/quizforge/internal/config"
	"github.com/quizforge/quizforge/internal/engine"
	"github.com/quizforge/quizforge/internal/log"
	"github.com/quizforge/quizforge/internal/vectorstore"
)

// ErrDependencyUnavailable is returned by accessors whose dependency failed
// to initialize.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// Component identifies one managed dependency.
type Component string

const (
	ComponentEmbedder    Component = "embedder"
	ComponentVectorStore Component = "vector_store"
	ComponentLLM         Component = "llm"
)

// State is the aggregate manager state.
type State string

const (
	// StateReady means every dependency initialized.
	StateReady State = "ready"
	// StatePartial means some dependencies are usable.
	StatePartial State = "partial"
	// StateError means nothing initialized.
	StateError State = "error"
)

// ComponentStatus is the health of one dependency.
type ComponentStatus struct {
	Ready     bool
	Error     string
	CheckedAt time.Time
}

// Status is a snapshot of the manager.
type Status struct {
	State       State
	Initialized bool
	Components  map[Component]ComponentStatus
}

// Store is the vector store surface the rest of the system consumes.
type Store interface {
	Close() error
	ListCollections(ctx context.Context) ([]string, error)
	EnsureCollection(ctx context.Context, name string, dim int) (bool, error)
	DropCollection(ctx context.Context, name string) error
	DeleteBySourceFile(ctx context.Context, collection, sourceFile string) error
	UpsertChunks(ctx context.Context, collection string, chunks []vectorstore.Chunk) error
	Search(ctx context.Context, collection string, vector []float32, k int, minScore float32) ([]vectorstore.Hit, error)
}

// Manager lazily initializes and hands out the shared dependencies.
// Initialization runs at most once per Manager; construct one per process
// and inject it.
type Manager struct {
	cfg    *config.Config
	logger log.Logger

	mu          sync.Mutex
	initialized bool
	embedder    engine.Embedder
	generator   engine.TextGenerator
	store       Store
	components  map[Component]ComponentStatus

	// Factory hooks, swappable in tests.
	setupModels func(ctx context.Context) (engine.Embedder, engine.TextGenerator, error)
	openStore   func() (Store, error)
}

// NewManager wires a Manager around a validated config.
func NewManager(cfg *config.Config, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}

	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		components: make(map[Component]ComponentStatus),
	}
	m.setupModels = m.setupGenkitModels
	m.openStore = func() (Store, error) {
		return vectorstore.Connect(cfg.QdrantHost, cfg.QdrantPort, logger)
	}
	return m
}

// Initialize brings up every dependency, once. Subsequent calls return the
// first outcome without re-initializing; individual failures degrade status
// rather than aborting the rest. Initialize errors only when no dependency
// came up at all.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return m.initErrLocked()
	}
	m.initialized = true
	now := time.Now()

	embedder, generator, err := m.setupModels(ctx)
	if err != nil {
		m.logger.Error("model initialization failed", "error", err)
		m.components[ComponentEmbedder] = ComponentStatus{Error: err.Error(), CheckedAt: now}
		m.components[ComponentLLM] = ComponentStatus{Error: err.Error(), CheckedAt: now}
	} else {
		m.embedder = embedder
		m.generator = generator
		m.components[ComponentEmbedder] = m.probeEmbedder(ctx, now)
		m.components[ComponentLLM] = m.probeLLM(ctx, now)
	}

	store, err := m.openStore()
	if err != nil {
		m.logger.Error("vector store initialization failed", "error", err)
		m.components[ComponentVectorStore] = ComponentStatus{Error: err.Error(), CheckedAt: now}
	} else {
		m.store = store
		m.components[ComponentVectorStore] = m.probeStore(ctx, now)
	}

	status := m.statusLocked()
	m.logger.Info("resource manager initialized", "state", status.State)
	return m.initErrLocked()
}

// initErrLocked maps overall state to Initialize's return value.
func (m *Manager) initErrLocked() error {
	if m.statusLocked().State == StateError {
		return fmt.Errorf("%w: no dependency initialized", ErrDependencyUnavailable)
	}
	return nil
}

// setupGenkitModels initializes Genkit and adapts its model handles.
func (m *Manager) setupGenkitModels(ctx context.Context) (engine.Embedder, engine.TextGenerator, error) {
	g, embedder, err := initGenkit(ctx, m.cfg, m.logger)
	if err != nil {
		return nil, nil, err
	}
	gen := &genkitGenerator{
		g:           g,
		modelName:   qualifiedModelName(m.cfg.Provider, m.cfg.ModelName),
		temperature: float64(m.cfg.Temperature),
	}
	return &genkitEmbedder{embedder: embedder}, gen, nil
}

// probeEmbedder runs a warmup inference so the first real query does not pay
// the model load cost.
func (m *Manager) probeEmbedder(ctx context.Context, now time.Time) ComponentStatus {
	vec, err := m.embedder.EmbedText(ctx, "warmup")
	if err != nil {
		m.logger.Warn("embedder warmup failed", "error", err)
		return ComponentStatus{Error: err.Error(), CheckedAt: now}
	}
	if len(vec) != m.cfg.EmbeddingDim {
		err := fmt.Errorf("embedder returned %d dimensions, config expects %d", len(vec), m.cfg.EmbeddingDim)
		m.logger.Warn("embedder dimension mismatch", "error", err)
		return ComponentStatus{Error: err.Error(), CheckedAt: now}
	}
	return ComponentStatus{Ready: true, CheckedAt: now}
}

// probeLLM runs a warmup generation to confirm the model is pulled and
// responsive.
func (m *Manager) probeLLM(ctx context.Context, now time.Time) ComponentStatus {
	if _, err := m.generator.Generate(ctx, "Reply with OK.", 8); err != nil {
		m.logger.Warn("llm warmup failed", "error", err)
		return ComponentStatus{Error: err.Error(), CheckedAt: now}
	}
	return ComponentStatus{Ready: true, CheckedAt: now}
}

// probeStore lists collections as a connectivity check.
func (m *Manager) probeStore(ctx context.Context, now time.Time) ComponentStatus {
	if _, err := m.store.ListCollections(ctx); err != nil {
		m.logger.Warn("vector store probe failed", "error", err)
		return ComponentStatus{Error: err.Error(), CheckedAt: now}
	}
	return ComponentStatus{Ready: true, CheckedAt: now}
}

// Embedder returns the embedding model, or ErrDependencyUnavailable.
func (m *Manager) Embedder() (engine.Embedder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.components[ComponentEmbedder].Ready {
		return nil, fmt.Errorf("%w: embedder", ErrDependencyUnavailable)
	}
	return m.embedder, nil
}

// Generator returns the language model, or ErrDependencyUnavailable.
func (m *Manager) Generator() (engine.TextGenerator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.components[ComponentLLM].Ready {
		return nil, fmt.Errorf("%w: llm", ErrDependencyUnavailable)
	}
	return m.generator, nil
}

// VectorStore returns the vector store client, or ErrDependencyUnavailable.
func (m *Manager) VectorStore() (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.components[ComponentVectorStore].Ready {
		return nil, fmt.Errorf("%w: vector store", ErrDependencyUnavailable)
	}
	return m.store, nil
}

// Status snapshots the manager. The component map is a copy.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	components := make(map[Component]ComponentStatus, len(m.components))
	ready := 0
	for c, s := range m.components {
		components[c] = s
		if s.Ready {
			ready++
		}
	}

	state := StateError
	switch {
	case len(m.components) > 0 && ready == len(m.components):
		state = StateReady
	case ready > 0:
		state = StatePartial
	}

	return Status{State: state, Initialized: m.initialized, Components: components}
}

// HealthCheck re-probes the live dependencies and returns the refreshed
// status. Dependencies that never initialized stay down; health checks do
// not re-initialize.
func (m *Manager) HealthCheck(ctx context.Context) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()

	if m.embedder != nil {
		m.components[ComponentEmbedder] = m.probeEmbedder(ctx, now)
	}
	if m.generator != nil {
		m.components[ComponentLLM] = m.probeLLM(ctx, now)
	}
	if m.store != nil {
		m.components[ComponentVectorStore] = m.probeStore(ctx, now)
	}

	return m.statusLocked()
}

// Close releases held connections.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("closing vector store: %w", err)
		}
		m.store = nil
	}
	return nil
}
