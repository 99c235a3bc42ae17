package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// startWatcher runs w on root and waits until the initial watch is in place.
func startWatcher(t *testing.T, w *HybridWatcher, root string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, root)
	}()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-done
	})
	require.Eventually(t, func() bool { return w.RootPath() != "" }, time.Second, 5*time.Millisecond)
	// allow the recursive add or baseline scan to finish
	time.Sleep(100 * time.Millisecond)
}

// collect gathers event paths until one containing want arrives.
func collect(t *testing.T, w *HybridWatcher, want string) []FileEvent {
	t.Helper()
	var all []FileEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events closed")
			all = append(all, batch...)
			for _, e := range batch {
				if e.Path == want {
					return all
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s; got %v", want, all)
		}
	}
}

func TestHybridWatcher_ReportsTranscriptChangesOnly(t *testing.T) {
	// Given: a watched projects tree
	root := t.TempDir()
	writeTranscript(t, filepath.Join(root, "proj", "existing.jsonl"), "{}\n")
	w, err := NewHybridWatcher(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	startWatcher(t, w, root)

	// When: a transcript and an unrelated file are written
	writeTranscript(t, filepath.Join(root, "proj", "notes.txt"), "x")
	writeTranscript(t, filepath.Join(root, "proj", "existing.jsonl"), "{}\n{}\n")

	// Then: only the transcript is reported
	events := collect(t, w, filepath.Join("proj", "existing.jsonl"))
	for _, e := range events {
		assert.NotEqual(t, filepath.Join("proj", "notes.txt"), e.Path)
	}
}

func TestHybridWatcher_PicksUpNewProjectDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewHybridWatcher(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	startWatcher(t, w, root)

	writeTranscript(t, filepath.Join(root, "new-proj", "deep", "s.jsonl"), "{}\n")

	collect(t, w, filepath.Join("new-proj", "deep", "s.jsonl"))
}

func TestHybridWatcher_ExcludedDirectoryIsIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "archive"), 0o755))
	w, err := NewHybridWatcher(Options{
		DebounceWindow:  50 * time.Millisecond,
		ExcludePatterns: []string{"archive/**"},
	})
	require.NoError(t, err)
	startWatcher(t, w, root)

	writeTranscript(t, filepath.Join(root, "archive", "old.jsonl"), "{}\n")
	writeTranscript(t, filepath.Join(root, "live", "s.jsonl"), "{}\n")

	events := collect(t, w, filepath.Join("live", "s.jsonl"))
	for _, e := range events {
		assert.NotContains(t, e.Path, "archive")
	}
}

func TestHybridWatcher_PollingMode(t *testing.T) {
	// Given: a watcher forced into polling mode
	root := t.TempDir()
	writeTranscript(t, filepath.Join(root, "p", "gone.jsonl"), "{}\n")
	w, err := NewHybridWatcher(Options{
		ForcePolling:   true,
		PollInterval:   20 * time.Millisecond,
		DebounceWindow: 30 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "polling", w.Mode())
	startWatcher(t, w, root)

	// When: one transcript is created and another removed
	writeTranscript(t, filepath.Join(root, "p", "new.jsonl"), "{}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "p", "gone.jsonl")))

	// Then: both changes are reported
	events := collect(t, w, filepath.Join("p", "new.jsonl"))
	ops := map[string]Operation{}
	for _, e := range events {
		ops[e.Path] = e.Operation
	}
	if _, ok := ops[filepath.Join("p", "gone.jsonl")]; !ok {
		events = append(events, collect(t, w, filepath.Join("p", "gone.jsonl"))...)
		for _, e := range events {
			ops[e.Path] = e.Operation
		}
	}
	assert.Equal(t, OpCreate, ops[filepath.Join("p", "new.jsonl")])
	assert.Equal(t, OpDelete, ops[filepath.Join("p", "gone.jsonl")])
}

func TestHybridWatcher_StartRejectsMissingRoot(t *testing.T) {
	w, err := NewHybridWatcher(DefaultOptions())
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestHybridWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewHybridWatcher(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
