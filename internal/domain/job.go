package domain

import "fmt"

// Direction selects which pipeline a job runs.
type Direction string

const (
	Encrypt Direction = "encrypt"
	Decrypt Direction = "decrypt"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// Job represents one discovered path transformed in one direction.
type Job struct {
	Path      string
	Direction Direction
	State     JobState
	Flags     ErrorFlags
}

// NewJob creates a pending job for a path relative to the source root.
func NewJob(path string, dir Direction) *Job {
	return &Job{Path: path, Direction: dir, State: StatePending}
}

// Start moves a pending job to running.
func (j *Job) Start() error {
	if j.State != StatePending {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, j.State, StateRunning, j.Path)
	}
	j.State = StateRunning
	return nil
}

// Finish records the accumulated flags and moves a running job to its
// terminal state. Zero flags mean success.
func (j *Job) Finish(flags ErrorFlags) error {
	if j.State != StateRunning {
		return fmt.Errorf("%w: %s -> terminal (%s)", ErrInvalidTransition, j.State, j.Path)
	}
	j.Flags = flags
	if flags == 0 {
		j.State = StateSucceeded
	} else {
		j.State = StateFailed
	}
	return nil
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool {
	return j.State == StateSucceeded || j.State == StateFailed
}
