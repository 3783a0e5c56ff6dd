package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run is an in-flight or finished evaluation request tracked by the daemon.
type Run struct {
	ID         uuid.UUID
	Kind       RunKind
	ProblemID  string
	Language   Language
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunKind names the operation a run performs
type RunKind string

const (
	RunKindExecute  RunKind = "execute"
	RunKindValidate RunKind = "validate"
	RunKindTestRun  RunKind = "testrun"
)

// RunStatus represents the current state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// NewRun creates a running Run with a fresh id
func NewRun(kind RunKind, problemID string, lang Language) *Run {
	return &Run{
		ID:        uuid.New(),
		Kind:      kind,
		ProblemID: problemID,
		Language:  lang,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Finish marks the run terminal with the given status
func (r *Run) Finish(status RunStatus) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
}

// IsTerminal returns true if the run is in a terminal state
func (r *Run) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusCancelled
}

// Elapsed returns how long the run has been going, or took
func (r *Run) Elapsed() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}
