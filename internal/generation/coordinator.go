// Package generation coordinates large question batches. The first slice is
// generated synchronously so the caller gets usable questions immediately;
// the remainder is produced by a supervised background worker whose progress
// can be polled and whose job can be cancelled cooperatively.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizforge/quizforge/internal/engine"
	"github.com/quizforge/quizforge/internal/log"
)

// ErrJobNotFound is returned when a generation id is unknown or pruned.
var ErrJobNotFound = errors.New("generation job not found")

// BatchGenerator produces one slice of questions. The query engine satisfies
// this.
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, subject, difficulty string, count, sequence int) ([]engine.Question, error)
}

// Options tunes coordinator behavior.
type Options struct {
	// DefaultBatchSize is used when a request leaves BatchSize zero.
	DefaultBatchSize int
	// MaxTotal caps how many questions one job may request.
	MaxTotal int
	// Retention is how long terminal jobs stay pollable before pruning.
	Retention time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultBatchSize <= 0 {
		o.DefaultBatchSize = 5
	}
	if o.MaxTotal <= 0 {
		o.MaxTotal = 200
	}
	if o.Retention <= 0 {
		o.Retention = time.Hour
	}
}

// StartRequest asks for a new generation run.
type StartRequest struct {
	Subject     string
	Difficulty  string
	TotalNeeded int
	BatchSize   int
}

// StartResult carries the job handle and the synchronously generated first
// slice. Reused is set when an equivalent job already existed.
type StartResult struct {
	GenerationID     string
	InitialQuestions []engine.Question
	Reused           bool
}

// Coordinator owns the job table and one worker goroutine per active job.
// Safe for concurrent use.
type Coordinator struct {
	source BatchGenerator
	opts   Options
	logger log.Logger

	mu       sync.RWMutex
	jobs     map[string]*job
	byFinger map[string]string

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewCoordinator wires a Coordinator. Callers must Close it on shutdown so
// in-flight workers wind down.
func NewCoordinator(source BatchGenerator, opts Options, logger log.Logger) *Coordinator {
	if logger == nil {
		logger = log.NewNop()
	}
	opts.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		source:   source,
		opts:     opts,
		logger:   logger,
		jobs:     make(map[string]*job),
		byFinger: make(map[string]string),
		baseCtx:  ctx,
		stop:     cancel,
		now:      time.Now,
	}
}

// Close cancels background work and waits for workers to exit. Jobs still
// running are marked cancelled by their workers.
func (c *Coordinator) Close() {
	c.stop()
	c.wg.Wait()
}

// Start begins a generation run. The first batch is generated before Start
// returns; the rest continues in the background. An equivalent existing job
// (same subject, total, difficulty) is returned unchanged instead of being
// regenerated.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if req.TotalNeeded <= 0 || req.TotalNeeded > c.opts.MaxTotal {
		return nil, fmt.Errorf("total_needed must be in 1..%d, got %d", c.opts.MaxTotal, req.TotalNeeded)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = c.opts.DefaultBatchSize
	}

	finger := fmt.Sprintf("%s|%d|%s", req.Subject, req.TotalNeeded, req.Difficulty)

	c.mu.Lock()
	c.pruneLocked()
	if existing := c.lookupLocked(finger); existing != nil {
		res := &StartResult{
			GenerationID:     existing.id,
			InitialQuestions: firstSlice(existing.questions, req.BatchSize),
			Reused:           true,
		}
		c.mu.Unlock()
		c.logger.Debug("reusing generation job", "id", res.GenerationID, "subject", req.Subject)
		return res, nil
	}
	c.mu.Unlock()

	first := min(req.BatchSize, req.TotalNeeded)
	initial, err := c.source.GenerateBatch(ctx, req.Subject, req.Difficulty, first, 1)
	if err != nil {
		return nil, fmt.Errorf("generating initial batch: %w", err)
	}

	j := &job{
		id:          uuid.NewString(),
		fingerprint: finger,
		subject:     req.Subject,
		difficulty:  req.Difficulty,
		total:       req.TotalNeeded,
		batchSize:   req.BatchSize,
		questions:   initial,
		status:      StatusGenerating,
		nextSeq:     2,
		createdAt:   c.now(),
	}

	c.mu.Lock()
	if len(j.questions) >= j.total {
		j.status = StatusCompleted
		j.finishedAt = c.now()
	}
	c.jobs[j.id] = j
	c.byFinger[finger] = j.id
	spawn := j.status == StatusGenerating
	if spawn {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if spawn {
		go c.work(j)
	}

	c.logger.Info("generation job started",
		"id", j.id,
		"subject", req.Subject,
		"total", req.TotalNeeded,
		"initial", len(initial))
	return &StartResult{GenerationID: j.id, InitialQuestions: initial}, nil
}

// GetProgress snapshots a job's progress.
func (c *Coordinator) GetProgress(generationID string) (Progress, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	j, ok := c.jobs[generationID]
	if !ok {
		return Progress{}, fmt.Errorf("%w: %s", ErrJobNotFound, generationID)
	}
	return j.progressLocked(), nil
}

// Questions returns a copy of everything the job has generated so far.
func (c *Coordinator) Questions(generationID string) ([]engine.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	j, ok := c.jobs[generationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, generationID)
	}
	out := make([]engine.Question, len(j.questions))
	copy(out, j.questions)
	return out, nil
}

// Cancel requests cooperative cancellation. The in-flight batch finishes
// normally; the worker observes the flag at the next batch boundary.
// Cancelling a terminal job is a no-op acknowledgement.
func (c *Coordinator) Cancel(generationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[generationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, generationID)
	}
	if !j.status.terminal() {
		j.cancelled = true
	}
	return nil
}

// work is the job's single background worker. Batches append in increasing
// sequence order; the first failed batch marks the job failed.
func (c *Coordinator) work(j *job) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if j.cancelled || c.baseCtx.Err() != nil {
			j.status = StatusCancelled
			j.finishedAt = c.now()
			c.mu.Unlock()
			c.logger.Info("generation job cancelled", "id", j.id, "generated", len(j.questions))
			return
		}
		remaining := j.total - len(j.questions)
		if remaining <= 0 {
			j.status = StatusCompleted
			j.finishedAt = c.now()
			c.mu.Unlock()
			c.logger.Info("generation job completed", "id", j.id, "total", len(j.questions))
			return
		}
		count := min(j.batchSize, remaining)
		seq := j.nextSeq
		c.mu.Unlock()

		batch, err := c.source.GenerateBatch(c.baseCtx, j.subject, j.difficulty, count, seq)

		c.mu.Lock()
		switch {
		case err != nil:
			j.status = StatusFailed
			j.errMsg = err.Error()
			j.finishedAt = c.now()
			c.mu.Unlock()
			c.logger.Error("generation job failed", "id", j.id, "batch", seq, "error", err)
			return
		case len(batch) == 0:
			j.status = StatusFailed
			j.errMsg = fmt.Sprintf("batch %d produced no questions", seq)
			j.finishedAt = c.now()
			c.mu.Unlock()
			c.logger.Error("generation job failed", "id", j.id, "batch", seq, "error", j.errMsg)
			return
		default:
			j.questions = append(j.questions, batch...)
			j.nextSeq++
			c.mu.Unlock()
			c.logger.Debug("batch appended", "id", j.id, "batch", seq, "size", len(batch))
		}
	}
}

// lookupLocked finds a reusable job for a fingerprint. Failed and cancelled
// jobs do not block a fresh run.
func (c *Coordinator) lookupLocked(finger string) *job {
	id, ok := c.byFinger[finger]
	if !ok {
		return nil
	}
	j, ok := c.jobs[id]
	if !ok {
		delete(c.byFinger, finger)
		return nil
	}
	if j.status == StatusFailed || j.status == StatusCancelled {
		return nil
	}
	return j
}

// pruneLocked drops terminal jobs past the retention window.
func (c *Coordinator) pruneLocked() {
	cutoff := c.now().Add(-c.opts.Retention)
	for id, j := range c.jobs {
		if j.status.terminal() && !j.finishedAt.IsZero() && j.finishedAt.Before(cutoff) {
			delete(c.jobs, id)
			if c.byFinger[j.fingerprint] == id {
				delete(c.byFinger, j.fingerprint)
			}
		}
	}
}

func firstSlice(questions []engine.Question, n int) []engine.Question {
	if n > len(questions) {
		n = len(questions)
	}
	out := make([]engine.Question, n)
	copy(out, questions[:n])
	return out
}
