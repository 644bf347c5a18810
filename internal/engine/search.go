package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/quizforge/quizforge/internal/vectorstore"
)

// Search embeds the query and retrieves the k most similar chunks. With a
// subject it targets that subject's active collection; without one it fans
// out across every indexed subject and merges the results by similarity.
// Results below the configured threshold are excluded.
func (e *Engine) Search(ctx context.Context, query, subject string, k int) ([]vectorstore.Hit, error) {
	if k <= 0 {
		k = e.opts.SearchTopK
	}

	vector, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if subject != "" {
		return e.searchSubject(ctx, subject, vector, k)
	}
	return e.searchAll(ctx, vector, k)
}

func (e *Engine) searchSubject(ctx context.Context, subject string, vector []float32, k int) ([]vectorstore.Hit, error) {
	collection, err := e.subjects.ActiveCollection(ctx, subject)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, fmt.Errorf("subject %q: %w", subject, ErrNoContent)
	}

	hits, err := e.store.Search(ctx, collection, vector, k, e.opts.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("searching subject %q: %w", subject, err)
	}
	return hits, nil
}

func (e *Engine) searchAll(ctx context.Context, vector []float32, k int) ([]vectorstore.Hit, error) {
	subjects, err := e.subjects.Subjects(ctx)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, ErrNoContent
	}

	var merged []vectorstore.Hit
	for _, subject := range subjects {
		hits, err := e.searchSubject(ctx, subject, vector, k)
		if err != nil {
			// A single degraded subject must not sink the fan-out.
			e.logger.Warn("subject search failed during fan-out", "subject", subject, "error", err)
			continue
		}
		merged = append(merged, hits...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Similarity > merged[j].Similarity })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// sourceFiles extracts the distinct source filenames behind a hit list,
// preserving first-seen order.
func sourceFiles(hits []vectorstore.Hit) []string {
	seen := make(map[string]bool, len(hits))
	var sources []string
	for _, h := range hits {
		name, ok := h.Metadata["source_file"].(string)
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sources = append(sources, name)
	}
	return sources
}
