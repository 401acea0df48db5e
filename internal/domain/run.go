package domain

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Failure is the terminal record of one failed job.
type Failure struct {
	Path  string
	Flags ErrorFlags
}

// BatchRun is the aggregate state of one batch execution. Counters and the
// failure list are safe for concurrent use by workers.
type BatchRun struct {
	ID        string
	Direction Direction
	Total     int
	StartedAt time.Time

	succeeded atomic.Int64
	failed    atomic.Int64

	mu         sync.Mutex
	failures   []Failure
	finishedAt time.Time
	incomplete bool
}

// NewBatchRun creates a run whose total is fixed at enqueue time.
func NewBatchRun(dir Direction, total int) *BatchRun {
	return &BatchRun{
		ID:        uuid.New().String(),
		Direction: dir,
		Total:     total,
		StartedAt: time.Now(),
	}
}

// Record counts a terminal job. Failed jobs are appended to the failure list.
func (r *BatchRun) Record(job *Job) {
	if job.State == StateSucceeded {
		r.succeeded.Add(1)
		return
	}
	r.mu.Lock()
	r.failures = append(r.failures, Failure{Path: job.Path, Flags: job.Flags})
	r.mu.Unlock()
	r.failed.Add(1)
}

// Finish stamps the end time. incomplete marks a run whose wait timed out.
func (r *BatchRun) Finish(incomplete bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = time.Now()
	r.incomplete = incomplete
}

// Snapshot is a point-in-time copy of the run counters.
type Snapshot struct {
	Total     int
	Succeeded int
	Failed    int
}

// Done returns the number of jobs in a terminal state.
func (s Snapshot) Done() int {
	return s.Succeeded + s.Failed
}

// Percent returns completion as an integer in [0, 100]. An empty run is
// complete.
func (s Snapshot) Percent() int {
	if s.Total <= 0 {
		return 100
	}
	done := s.Done()
	if done >= s.Total {
		return 100
	}
	return done * 100 / s.Total
}

// Snapshot reads both counters. Succeeded is read before failed, and a job
// is counted in exactly one of them, so the sum never exceeds Total.
func (r *BatchRun) Snapshot() Snapshot {
	return Snapshot{
		Total:     r.Total,
		Succeeded: int(r.succeeded.Load()),
		Failed:    int(r.failed.Load()),
	}
}

// Summary returns an immutable view of the run for reporting and history.
func (r *BatchRun) Summary() RunSummary {
	snap := r.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	failures := make([]Failure, len(r.failures))
	copy(failures, r.failures)
	return RunSummary{
		ID:         r.ID,
		Direction:  r.Direction,
		Total:      snap.Total,
		Succeeded:  snap.Succeeded,
		Failed:     snap.Failed,
		Incomplete: r.incomplete,
		StartedAt:  r.StartedAt,
		FinishedAt: r.finishedAt,
		Failures:   failures,
	}
}

// RunSummary is the persisted and reported outcome of a batch run.
type RunSummary struct {
	ID         string
	Direction  Direction
	SourceDir  string
	TargetDir  string
	Total      int
	Succeeded  int
	Failed     int
	Incomplete bool
	StartedAt  time.Time
	FinishedAt time.Time
	Failures   []Failure
}

// Elapsed returns the wall-clock duration of the run.
func (s RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// OK reports whether every job succeeded and the run completed.
func (s RunSummary) OK() bool {
	return !s.Incomplete && s.Failed == 0 && s.Succeeded == s.Total
}
