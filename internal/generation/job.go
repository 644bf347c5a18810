package generation

import (
	"time"

	"github.com/quizforge/quizforge/internal/engine"
)

// Status is the lifecycle state of a generation job.
type Status string

// Jobs are created generating because the first batch runs synchronously in
// Start; there is no pending state.
const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// terminal reports whether the status can never change again.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Progress is a point-in-time snapshot of a job, safe to hand to pollers.
type Progress struct {
	GenerationID   string
	Subject        string
	TotalNeeded    int
	GeneratedCount int
	Status         Status
	Percentage     float64
	Error          string
}

// job is the coordinator-private state of one generation run. All fields are
// guarded by the coordinator's mutex; only the owning worker mutates them
// after creation.
type job struct {
	id          string
	fingerprint string
	subject     string
	difficulty  string
	total       int
	batchSize   int

	questions []engine.Question
	status    Status
	errMsg    string
	cancelled bool
	nextSeq   int

	createdAt  time.Time
	finishedAt time.Time
}

// progressLocked snapshots the job. Caller holds the coordinator lock.
func (j *job) progressLocked() Progress {
	pct := 0.0
	if j.total > 0 {
		pct = float64(len(j.questions)) / float64(j.total) * 100
		if pct > 100 {
			pct = 100
		}
	}
	return Progress{
		GenerationID:   j.id,
		Subject:        j.subject,
		TotalNeeded:    j.total,
		GeneratedCount: len(j.questions),
		Status:         j.status,
		Percentage:     pct,
		Error:          j.errMsg,
	}
}
