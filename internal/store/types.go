// Package store persists conversation messages in a full-text index together
// with a small key/value metadata table. Two backends implement Store:
// SQLite FTS5 (default) and Bleve.
package store

import (
	"context"
)

// Metadata keys written at the end of a successful rebuild.
const (
	MetaLastIndexed  = "last_indexed"
	MetaMessageCount = "message_count"
)

// Message is one indexed conversation turn.
type Message struct {
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Project   string `json:"project"`
	FilePath  string `json:"file_path"`
}

// Hit is a ranked search result. Content is replaced by a highlighted snippet.
type Hit struct {
	SessionID string  `json:"session_id"`
	Timestamp string  `json:"timestamp"`
	Role      string  `json:"role"`
	Snippet   string  `json:"snippet"`
	Project   string  `json:"project"`
	FilePath  string  `json:"file_path"`
	Score     float64 `json:"score"`
}

// Stats summarises index contents.
type Stats struct {
	Messages int `json:"messages"`
	Sessions int `json:"sessions"`
}

// Store is a full-text searchable message collection.
//
// Search takes a match expression of space separated terms, each optionally
// suffixed with '*' for prefix matching. All terms must match. A malformed
// expression yields an error carrying errors.ErrCodeInvalidQuery.
type Store interface {
	// Reset drops every message and all metadata, leaving an empty index.
	Reset(ctx context.Context) error

	// Insert writes one batch of messages atomically.
	Insert(ctx context.Context, msgs []*Message) error

	Search(ctx context.Context, match string, limit int) ([]*Hit, error)

	// Conversation returns a session's messages ordered by timestamp,
	// then by insertion order.
	Conversation(ctx context.Context, sessionID string) ([]*Message, error)

	// SetMetadata overwrites the given keys in one transaction.
	SetMetadata(ctx context.Context, kv map[string]string) error
	Metadata(ctx context.Context) (map[string]string, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Config holds index and snippet settings shared by both backends.
type Config struct {
	// SnippetTokens bounds the snippet window.
	SnippetTokens int

	HighlightStart string
	HighlightEnd   string
	Ellipsis       string
}

// DefaultConfig returns the snippet shape used by the search API.
func DefaultConfig() Config {
	return Config{
		SnippetTokens:  64,
		HighlightStart: "<mark>",
		HighlightEnd:   "</mark>",
		Ellipsis:       "...",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SnippetTokens <= 0 {
		c.SnippetTokens = d.SnippetTokens
	}
	if c.HighlightStart == "" && c.HighlightEnd == "" {
		c.HighlightStart, c.HighlightEnd = d.HighlightStart, d.HighlightEnd
	}
	if c.Ellipsis == "" {
		c.Ellipsis = d.Ellipsis
	}
	return c
}
