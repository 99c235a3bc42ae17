package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

// MockRenderer records renderer calls.
type MockRenderer struct {
	mu        sync.Mutex
	events    []ui.ProgressEvent
	errors    []ui.ErrorEvent
	completed *ui.CompletionStats
}

func (m *MockRenderer) Start(context.Context) error { return nil }
func (m *MockRenderer) Stop() error { return nil }

func (m *MockRenderer) UpdateProgress(ev ui.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *MockRenderer) AddError(ev ui.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, ev)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = &stats
}

// recordingReporter captures progress callbacks.
type recordingReporter struct {
	total    int
	files    int
	messages int
}

func (r *recordingReporter) SetTotal(n int) { r.total = n }
func (r *recordingReporter) FileDone(messages int) {
	r.files++
	r.messages = messages
}

func line(session, role, text string) string {
	return fmt.Sprintf(`{"type":%q,"sessionId":%q,"timestamp":"2025-01-01T00:00:00Z","message":{"role":%q,"content":%q}}`,
		role, session, role, text) + "\n"
}

func writeTranscript(t *testing.T, root, rel string, lines ...string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "")), 0o644))
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open("", string(store.BackendSQLite), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestRunner_Run_IndexesAllTranscripts(t *testing.T) {
	// Given: two projects with three sessions
	root := t.TempDir()
	writeTranscript(t, root, "-home-me-code-alpha/s1.jsonl",
		line("s1", "user", "how do I configure the widget"),
		line("s1", "assistant", "set widget.enabled in the config"))
	writeTranscript(t, root, "-home-me-code-alpha/s2.jsonl",
		line("s2", "user", "unrelated question"))
	writeTranscript(t, root, "-home-me-code-beta/s3.jsonl",
		line("s3", "user", "another widget question"),
		"not json\n")

	st := newStore(t)
	renderer := &MockRenderer{}
	r, err := NewRunner(RunnerDependencies{Store: st, Renderer: renderer, Now: fixedNow},
		RunnerConfig{ProjectsDir: root})
	require.NoError(t, err)
	rep := &recordingReporter{}

	// When: running a rebuild
	result, err := r.Run(context.Background(), rep)

	// Then: every valid message is searchable
	require.NoError(t, err)
	assert.Equal(t, 3, result.Files)
	assert.Equal(t, 4, result.Messages)
	assert.Equal(t, 3, result.Sessions)
	assert.Zero(t, result.Failed)

	hits, err := st.Search(context.Background(), "widget", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	// Then: metadata is written
	meta, err := st.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T12:00:00Z", meta[store.MetaLastIndexed])
	assert.Equal(t, "4", meta[store.MetaMessageCount])

	// Then: progress and renderer were driven
	assert.Equal(t, 3, rep.total)
	assert.Equal(t, 3, rep.files)
	assert.Equal(t, 4, rep.messages)
	require.NotNil(t, renderer.completed)
	assert.Equal(t, 4, renderer.completed.Messages)
	assert.Equal(t, ui.StageScanning, renderer.events[0].Stage)
}

func TestRunner_Run_IsFullRebuild(t *testing.T) {
	// Given: an indexed tree
	root := t.TempDir()
	writeTranscript(t, root, "p/s1.jsonl", line("s1", "user", "first version"))
	st := newStore(t)
	r, err := NewRunner(RunnerDependencies{Store: st}, RunnerConfig{ProjectsDir: root})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), nil)
	require.NoError(t, err)

	// When: the file changes and the index is rebuilt
	writeTranscript(t, root, "p/s1.jsonl", line("s1", "user", "second version"))
	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	// Then: only the new content remains
	assert.Equal(t, 1, result.Messages)
	hits, err := st.Search(context.Background(), "first", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	hits, err = st.Search(context.Background(), "second", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRunner_Run_SmallBatchesFlushEveryFile(t *testing.T) {
	root := t.TempDir()
	for i := range 5 {
		writeTranscript(t, root, fmt.Sprintf("p/s%d.jsonl", i), line(fmt.Sprintf("s%d", i), "user", "batch test"))
	}
	st := newStore(t)
	r, err := NewRunner(RunnerDependencies{Store: st}, RunnerConfig{ProjectsDir: root, BatchFiles: 1})
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 5, result.Messages)
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Messages)
	assert.Equal(t, 5, stats.Sessions)
}

func TestRunner_Run_OversizeFileIsSkipped(t *testing.T) {
	// Given: one file over the size cap
	root := t.TempDir()
	writeTranscript(t, root, "p/small.jsonl", line("a", "user", "ok"))
	writeTranscript(t, root, "p/big.jsonl", line("b", "user", strings.Repeat("x", 2048)))
	st := newStore(t)
	renderer := &MockRenderer{}
	r, err := NewRunner(RunnerDependencies{Store: st, Renderer: renderer},
		RunnerConfig{ProjectsDir: root, MaxFileSize: 1024})
	require.NoError(t, err)

	// When: running
	result, err := r.Run(context.Background(), nil)

	// Then: the rebuild continues and the skip is reported
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, renderer.errors, 1)
	assert.True(t, renderer.errors[0].IsWarn)
	assert.Equal(t, 1, renderer.completed.Warnings)
}

func TestRunner_Run_MissingRootFails(t *testing.T) {
	st := newStore(t)
	r, err := NewRunner(RunnerDependencies{Store: st},
		RunnerConfig{ProjectsDir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)

	assert.Error(t, err)
}

func TestRunner_Run_CancelledContextFails(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "p/s1.jsonl", line("s1", "user", "x"))
	st := newStore(t)
	r, err := NewRunner(RunnerDependencies{Store: st}, RunnerConfig{ProjectsDir: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, nil)

	assert.Error(t, err)
}

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerDependencies{}, RunnerConfig{})
	assert.Error(t, err)
}

func TestRunner_IndexFunc_DrivesCoordinator(t *testing.T) {
	// Given: a coordinator backed by the runner
	root := t.TempDir()
	writeTranscript(t, root, "p/s1.jsonl", line("s1", "user", "async job"), line("s1", "assistant", "done"))
	st := newStore(t)
	r, err := NewRunner(RunnerDependencies{Store: st}, RunnerConfig{ProjectsDir: root})
	require.NoError(t, err)
	coord := async.NewCoordinator(async.Config{}, r.IndexFunc())

	// When: starting and waiting
	require.Equal(t, async.StatusStarted, coord.Start())
	require.NoError(t, coord.Wait())

	// Then: the job state reflects the run
	state := coord.State()
	assert.False(t, state.Running)
	assert.Equal(t, 1, state.Total)
	assert.Equal(t, 1, state.Progress)
	assert.Equal(t, 2, state.Messages)
}
