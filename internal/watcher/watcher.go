package watcher

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/chatsearch/internal/scanner"
)

// Operation is the kind of change observed on a path.
type Operation int

const (
	// OpCreate means a new file appeared.
	OpCreate Operation = iota
	// OpModify means a file was appended to or rewritten.
	OpModify
	// OpDelete means a file was removed.
	OpDelete
	// OpRename means a file was moved away; the new name arrives as OpCreate.
	OpRename
)

// String returns the upper-case operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change, relative to the watched root.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a HybridWatcher.
type Options struct {
	// DebounceWindow is how long the tree must be quiet before a batch is
	// emitted. Default: 2s
	DebounceWindow time.Duration

	// PollInterval is the scan period in polling mode. Default: 5s
	PollInterval time.Duration

	// EventBufferSize bounds queued batches. Default: 16
	EventBufferSize int

	// ExcludePatterns are skipped, using the scanner's pattern rules.
	ExcludePatterns []string

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns the standard watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  2 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = d.EventBufferSize
	}
	return o
}

// filter decides which relative paths are reported.
type filter struct {
	exclude []string
}

// skipDir reports whether a directory should not be descended into.
func (f filter) skipDir(relPath string) bool {
	if relPath == "." || relPath == "" {
		return false
	}
	return scanner.MatchesAny(relPath, f.exclude)
}

// keepFile reports whether a file change is relevant to the index.
func (f filter) keepFile(relPath string) bool {
	if !strings.EqualFold(filepath.Ext(relPath), scanner.TranscriptExt) {
		return false
	}
	return !scanner.MatchesAny(relPath, f.exclude)
}
