package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category, matched
// case-insensitively. Provider SDKs do not expose typed errors for these.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "connection refused", "temporary"},
}

// retryableError reports whether err is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
	}
	return false
}

// generateWithRetry invokes the model with rate limiting on each attempt and
// exponential backoff between transient failures.
func (e *Engine) generateWithRetry(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var lastErr error
	delay := e.opts.Retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= e.opts.Retry.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := e.gen.Generate(ctx, prompt, maxTokens)
		if err == nil {
			e.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return text, nil
		}

		lastErr = err
		if !retryableError(err) {
			return "", fmt.Errorf("model call: %w", err)
		}
		if attempt == e.opts.Retry.MaxRetries {
			break
		}

		e.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, e.opts.Retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("model call after %d retries: %w", e.opts.Retry.MaxRetries, lastErr)
}

// timedGenerate runs a model call joined against a hard wall-clock deadline.
// The model's own cancellation handling is not trusted; the call runs in its
// own goroutine and the deadline wins regardless.
func (e *Engine) timedGenerate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		text, err := e.generateWithRetry(ctx, prompt, maxTokens)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, timeout)
		}
		return out.text, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, timeout)
		}
		return "", ctx.Err()
	}
}
