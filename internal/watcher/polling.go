package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects transcript changes by rescanning the tree on a
// fixed interval. Used where fsnotify cannot be initialised.
type PollingWatcher struct {
	interval time.Duration
	filter   filter

	mu       sync.Mutex
	files    map[string]fileSnapshot
	events   chan FileEvent
	stopCh   chan struct{}
	stopped  bool
	rootPath string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher. excludes use scanner pattern rules.
func NewPollingWatcher(interval time.Duration, excludes []string) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		filter:   filter{exclude: excludes},
		files:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 256),
		stopCh:   make(chan struct{}),
	}
}

// Start records a baseline and then polls until ctx ends or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	p.mu.Lock()
	p.rootPath = absRoot
	p.files = p.snapshot()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

// snapshot walks the tree. Callers hold mu.
func (p *PollingWatcher) snapshot() map[string]fileSnapshot {
	files := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(p.rootPath, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if p.filter.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.filter.keepFile(rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		files[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return files
}

// poll diffs a fresh snapshot against the previous one.
func (p *PollingWatcher) poll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	now := time.Now()
	current := p.snapshot()
	for rel, snap := range current {
		prev, existed := p.files[rel]
		switch {
		case !existed:
			p.emit(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emit(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range p.files {
		if _, ok := current[rel]; !ok {
			p.emit(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}
	p.files = current
}

// emit sends without blocking. Callers hold mu.
func (p *PollingWatcher) emit(e FileEvent) {
	select {
	case p.events <- e:
	default:
		slog.Warn("poll_event_dropped",
			slog.String("path", e.Path),
			slog.String("op", e.Operation.String()))
	}
}

// Events returns the raw, undebounced event stream.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Stop ends polling and closes Events. Safe to call twice.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	return nil
}
