package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/watcher"
)

// Watcher Integration Tests - These run the watcher, the rebuild trigger and
// the coordinator together and check that transcript changes become
// searchable without an explicit reindex.

func startWatchPipeline(t *testing.T, p *pipeline, root string, opts watcher.Options) {
	t.Helper()

	w, err := watcher.NewHybridWatcher(opts)
	require.NoError(t, err)

	trigger := watcher.NewTrigger(p.coord, 0)
	p.coord.OnComplete(trigger.JobDone)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() {
		_ = w.Start(ctx, root)
		done <- struct{}{}
	}()
	go func() {
		_ = trigger.Run(ctx, w.Events())
		done <- struct{}{}
	}()

	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-done
		<-done
		_ = p.coord.Wait()
	})

	// let the watcher register its directories
	time.Sleep(200 * time.Millisecond)
}

func searchCount(p *pipeline, query string) int {
	return p.engine.Search(context.Background(), query, 0).Count
}

func TestWatcher_NewTranscript_BecomesSearchable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	modes := map[string]watcher.Options{
		"fsnotify": {DebounceWindow: 100 * time.Millisecond},
		"polling":  {DebounceWindow: 100 * time.Millisecond, PollInterval: 100 * time.Millisecond, ForcePolling: true},
	}

	for name, opts := range modes {
		t.Run(name, func(t *testing.T) {
			// Given: an indexed tree being watched
			root := seedProjects(t)
			p := newPipeline(t, string(store.BackendSQLite), root)
			p.rebuild(t)
			startWatchPipeline(t, p, root, opts.WithDefaults())
			require.Equal(t, 0, searchCount(p, "zeppelin"))

			// When: a new session is written in a new project directory
			writeTranscript(t, filepath.Join(root, "-Users-alice-code-new", "s9.jsonl"),
				transcriptLine("S9", "user", "2025-02-01T00:00:00Z", "Plan the zeppelin launch"))

			// Then: a rebuild picks it up
			require.Eventually(t, func() bool {
				return searchCount(p, "zeppelin") == 1
			}, 10*time.Second, 50*time.Millisecond)
		})
	}
}

func TestWatcher_AppendedMessage_BecomesSearchable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed, watched tree
	root := seedProjects(t)
	p := newPipeline(t, string(store.BackendSQLite), root)
	p.rebuild(t)
	startWatchPipeline(t, p, root, watcher.Options{DebounceWindow: 100 * time.Millisecond}.WithDefaults())

	// When: a line is appended to an existing transcript
	path := filepath.Join(root, "-Users-alice-code-web", "s2.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(transcriptLine("S2", "assistant", "2025-01-02T09:00:10Z", "The stylesheet failed to load"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: the new message is searchable and the old ones remain
	require.Eventually(t, func() bool {
		return searchCount(p, "stylesheet") == 1
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, 3, searchCount(p, "pipeline"))
}

func TestWatcher_IgnoresNonTranscriptFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched tree
	root := seedProjects(t)
	p := newPipeline(t, string(store.BackendSQLite), root)
	p.rebuild(t)
	first := p.coord.State().JobID
	startWatchPipeline(t, p, root, watcher.Options{DebounceWindow: 100 * time.Millisecond}.WithDefaults())

	// When: only a non-transcript file changes
	require.NoError(t, os.WriteFile(filepath.Join(root, "-Users-alice-code-api", "notes.txt"), []byte("x"), 0o644))
	time.Sleep(500 * time.Millisecond)

	// Then: no rebuild ran
	assert.Equal(t, first, p.coord.State().JobID)
}
