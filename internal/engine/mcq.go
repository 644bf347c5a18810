package engine

import (
	"context"
	"fmt"
	"time"
)

// GenerateMCQ produces a validated batch of multiple-choice questions for a
// subject. Fresh cached results are returned without touching the model.
// Fewer validated questions than requested is a success; the caller decides
// whether to top up.
func (e *Engine) GenerateMCQ(ctx context.Context, req MCQRequest) (*MCQResult, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid generation request: %w", err)
	}
	if req.NumQuestions > e.opts.MaxQuestions {
		return nil, fmt.Errorf("invalid generation request: %d questions exceeds limit of %d", req.NumQuestions, e.opts.MaxQuestions)
	}

	key := cacheKey(req.Subject, req.NumQuestions, req.Difficulty)
	if cached, ok := e.cache.get(key); ok {
		cached.FromCache = true
		e.logger.Debug("generation served from cache", "subject", req.Subject, "count", req.NumQuestions)
		return &cached, nil
	}

	start := time.Now()

	questions, sources, err := e.generateQuestions(ctx, req.Subject, req.Difficulty, req.NumQuestions, "")
	if err != nil {
		return nil, err
	}

	result := MCQResult{
		Questions:      questions,
		SourcesUsed:    sources,
		ModelUsed:      e.opts.ModelName,
		GenerationTime: time.Since(start),
	}
	e.cache.put(key, result)

	e.logger.Info("questions generated",
		"subject", req.Subject,
		"requested", req.NumQuestions,
		"validated", len(questions),
		"sources", len(sources),
		"elapsed", result.GenerationTime)
	return &result, nil
}

// GenerateBatch produces one slice of a larger multi-batch run. Batches
// bypass the response cache, and slices after the first carry a prompt hint
// to cover different material than earlier slices.
func (e *Engine) GenerateBatch(ctx context.Context, subject, difficulty string, count, sequence int) ([]Question, error) {
	if err := e.validate.Struct(MCQRequest{Subject: subject, NumQuestions: count, Difficulty: difficulty}); err != nil {
		return nil, fmt.Errorf("invalid batch request: %w", err)
	}
	if count > e.opts.MaxQuestions {
		return nil, fmt.Errorf("invalid batch request: %d questions exceeds limit of %d", count, e.opts.MaxQuestions)
	}

	var extra string
	if sequence > 1 {
		extra = fmt.Sprintf("This is part %d of a longer exam. Do not repeat earlier questions; cover different aspects of the material.", sequence)
	}

	questions, _, err := e.generateQuestions(ctx, subject, difficulty, count, extra)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// generateQuestions runs the retrieve→prompt→generate→parse→validate
// pipeline shared by cached and batch generation.
func (e *Engine) generateQuestions(ctx context.Context, subject, difficulty string, count int, extraInstruction string) ([]Question, []string, error) {
	hits, err := e.Search(ctx, retrievalQuery(subject, difficulty), subject, e.opts.SearchTopK)
	if err != nil {
		return nil, nil, err
	}
	if len(hits) == 0 {
		return nil, nil, fmt.Errorf("subject %q: %w", subject, ErrNoContent)
	}

	prompt := buildMCQPrompt(hits, count, difficulty)
	if extraInstruction != "" {
		prompt += "\n\n" + extraInstruction
	}
	budget := min(e.opts.TokensPerQuestion*count+e.opts.TokenOverhead, e.opts.MaxOutputTokens)

	raw, err := e.timedGenerate(ctx, prompt, budget, e.opts.GenerationTimeout)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := parseQuestions(raw)
	if err != nil {
		return nil, nil, err
	}

	questions := e.validateQuestions(subject, candidates)
	if len(questions) == 0 {
		return nil, nil, fmt.Errorf("%w: %d candidates rejected (raw: %q)", ErrValidationFailure, len(candidates), excerpt(raw))
	}
	if len(questions) > count {
		questions = questions[:count]
	}

	return questions, sourceFiles(hits), nil
}

// validateQuestions filters candidates down to well-formed questions.
// Rejections are individual and logged; one bad candidate never sinks the
// batch.
func (e *Engine) validateQuestions(subject string, candidates []Question) []Question {
	valid := make([]Question, 0, len(candidates))
	for i, q := range candidates {
		if reason := checkQuestion(q); reason != "" {
			e.logger.Warn("discarding generated question",
				"subject", subject,
				"index", i,
				"reason", reason)
			continue
		}
		valid = append(valid, q)
	}
	return valid
}

// checkQuestion returns a rejection reason, or empty for a valid question.
// The correct answer must string-match exactly one of the four options.
func checkQuestion(q Question) string {
	if q.Question == "" {
		return "empty question text"
	}
	if q.CorrectAnswer == "" {
		return "empty correct answer"
	}

	matches := 0
	for _, opt := range q.options() {
		if opt == "" {
			return "empty option"
		}
		if opt == q.CorrectAnswer {
			matches++
		}
	}
	switch matches {
	case 0:
		return "correct answer does not match any option"
	case 1:
		return ""
	default:
		return "correct answer matches multiple options"
	}
}

// retrievalQuery is the text embedded to retrieve study material for a
// subject. Difficulty nudges retrieval toward matching passages but carries
// no hard semantics.
func retrievalQuery(subject, difficulty string) string {
	return fmt.Sprintf("key concepts, definitions and facts about %s (%s level)", subject, difficulty)
}
