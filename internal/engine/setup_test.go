package engine

import (
	"context"
	"crypto/sha256"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/quizforge/quizforge/internal/index"
	"github.com/quizforge/quizforge/internal/vectorstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEmbedder returns deterministic vectors derived from the text hash.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = float32(sum[i]) / 255
	}
	return vec, nil
}

// scriptedGenerator replays canned responses in order, repeating the last one
// once the script runs out.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int

	// block, when set, makes Generate ignore its context and sleep,
	// simulating a model call that outlives the caller's deadline.
	block time.Duration
	// released is closed when a blocked call finally returns, letting
	// tests wait out the leaked goroutine before goleak runs.
	released chan struct{}
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string, _ int) (string, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()

	if g.block > 0 {
		time.Sleep(g.block)
		if g.released != nil {
			close(g.released)
		}
	}
	if g.err != nil {
		return "", g.err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	idx := call - 1
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}
	return g.responses[idx], nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeStore serves pre-seeded hits per collection.
type fakeStore struct {
	mu    sync.Mutex
	hits  map[string][]vectorstore.Hit
	err   error
	calls int
}

func (s *fakeStore) Search(_ context.Context, collection string, _ []float32, k int, minScore float32) ([]vectorstore.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	var out []vectorstore.Hit
	for _, h := range s.hits[collection] {
		if h.Similarity >= minScore {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// fakeResolver maps subjects to collections in memory.
type fakeResolver struct {
	collections map[string]string
}

func (r *fakeResolver) ActiveCollection(_ context.Context, subject string) (string, error) {
	return r.collections[subject], nil
}

func (r *fakeResolver) Subjects(_ context.Context) ([]string, error) {
	subjects := make([]string, 0, len(r.collections))
	for s := range r.collections {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (r *fakeResolver) Records(_ context.Context) ([]index.SubjectRecord, error) {
	var records []index.SubjectRecord
	subjects, _ := r.Subjects(context.Background())
	for _, s := range subjects {
		records = append(records, index.SubjectRecord{Subject: s, Collection: r.collections[s]})
	}
	return records, nil
}

func hit(content, sourceFile string, similarity float32) vectorstore.Hit {
	return vectorstore.Hit{
		Content:    content,
		Metadata:   map[string]any{"source_file": sourceFile},
		Similarity: similarity,
	}
}

func newTestEngine(t *testing.T, gen TextGenerator, store *fakeStore, resolver *fakeResolver) *Engine {
	t.Helper()
	return New(&fakeEmbedder{}, gen, store, resolver, Options{
		ModelName:           "test-model",
		SimilarityThreshold: 0.3,
		SearchTopK:          5,
		ChatTopK:            3,
		GenerationTimeout:   2 * time.Second,
		ChatTimeout:         2 * time.Second,
		Retry:               RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}, nil)
}
