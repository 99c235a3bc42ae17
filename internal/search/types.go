// Package search answers queries against the message index: ranked hits,
// whole conversations, index status, and rebuild triggers.
package search

import (
	"time"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/store"
)

// SearchResponse is the result of a search. Store failures are reported in
// Error alongside an empty Results list.
type SearchResponse struct {
	Results []*store.Hit `json:"results"`
	Query   string       `json:"query"`
	Count   int          `json:"count"`
	Error   string       `json:"error,omitempty"`
}

// ConversationResponse holds every message of one session in timestamp order.
type ConversationResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []*store.Message `json:"messages"`
}

// IndexingJob is the public view of the rebuild job.
type IndexingJob struct {
	Running    bool       `json:"running"`
	Progress   int        `json:"progress"`
	Total      int        `json:"total"`
	Error      *string    `json:"error"`
	JobID      string     `json:"jobId,omitempty"`
	Messages   int        `json:"messages"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewIndexingJob converts a coordinator snapshot.
func NewIndexingJob(s async.JobState) IndexingJob {
	job := IndexingJob{
		Running:    s.Running,
		Progress:   s.Progress,
		Total:      s.Total,
		JobID:      s.JobID,
		Messages:   s.Messages,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Error != "" {
		msg := s.Error
		job.Error = &msg
	}
	return job
}

// StatusResponse describes the index and the rebuild job.
type StatusResponse struct {
	Indexed      bool        `json:"indexed"`
	LastIndexed  *string     `json:"lastIndexed"`
	MessageCount int         `json:"messageCount"`
	IndexingJob  IndexingJob `json:"indexingJob"`
}

// ReindexResponse reports whether a rebuild was launched.
type ReindexResponse struct {
	Status async.StartStatus `json:"status"`
}

// Rebuilder starts and reports on background rebuilds. *async.Coordinator
// implements it.
type Rebuilder interface {
	Start() async.StartStatus
	State() async.JobState
}
