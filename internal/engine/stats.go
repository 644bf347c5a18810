package engine

import (
	"context"

	"github.com/quizforge/quizforge/internal/index"
)

// Stats describes the engine's current corpus and cache state.
type Stats struct {
	Subjects []index.SubjectRecord
	Cache    CacheStats
}

// Stats reports per-subject index records and cache effectiveness.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	records, err := e.subjects.Records(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Subjects: records, Cache: e.cache.stats()}, nil
}
