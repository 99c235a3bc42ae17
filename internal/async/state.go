// Package async runs the index rebuild as a single background job whose
// progress is published as immutable snapshots.
package async

import (
	"time"
)

// StartStatus is the outcome of Coordinator.Start.
type StartStatus string

const (
	// StatusStarted means a new job was launched.
	StatusStarted StartStatus = "started"
	// StatusAlreadyRunning means a job was in flight; nothing changed.
	StatusAlreadyRunning StartStatus = "already_running"
)

// Phase summarises a JobState.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseFailed  Phase = "failed"
)

// JobState is an immutable snapshot of the indexing job. A new value is
// published for every change, so readers never see a torn update.
type JobState struct {
	JobID      string     `json:"job_id,omitempty"`
	Running    bool       `json:"running"`
	Progress   int        `json:"progress"`
	Total      int        `json:"total"`
	Error      string     `json:"error,omitempty"`
	Messages   int        `json:"messages,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Phase reports idle, running, or failed (idle with an error).
func (s JobState) Phase() Phase {
	switch {
	case s.Running:
		return PhaseRunning
	case s.Error != "":
		return PhaseFailed
	default:
		return PhaseIdle
	}
}

// Percent returns progress as 0-100, or 0 before the total is known.
func (s JobState) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Progress) / float64(s.Total) * 100.0
}

// Elapsed is the job's run time so far, or its total run time once finished.
func (s JobState) Elapsed() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(*s.StartedAt)
	}
	return time.Since(*s.StartedAt)
}
