package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chatsearch/internal/async"
)

// fakeStarter counts Start calls and reports a configurable outcome.
type fakeStarter struct {
	mu      sync.Mutex
	calls   int
	running bool
}

func (f *fakeStarter) Start() async.StartStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.running {
		return async.StatusAlreadyRunning
	}
	return async.StatusStarted
}

func (f *fakeStarter) setRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = v
}

func (f *fakeStarter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func runTrigger(t *testing.T, tr *Trigger) chan []FileEvent {
	t.Helper()
	batches := make(chan []FileEvent)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx, batches)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

var oneChange = []FileEvent{{Path: "p/s.jsonl", Operation: OpModify}}

func TestTrigger_StartsRebuildOnChange(t *testing.T) {
	starter := &fakeStarter{}
	batches := runTrigger(t, NewTrigger(starter, 0))

	batches <- oneChange
	batches <- nil

	assert.Eventually(t, func() bool { return starter.Calls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTrigger_SpacesRebuildsByMinInterval(t *testing.T) {
	// Given: a trigger limited to one rebuild per 150ms
	starter := &fakeStarter{}
	batches := runTrigger(t, NewTrigger(starter, 150*time.Millisecond))

	// When: three change batches arrive at once
	batches <- oneChange
	batches <- oneChange
	batches <- oneChange

	// Then: one rebuild runs now and a single deferred one follows
	assert.Eventually(t, func() bool { return starter.Calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, starter.Calls())
	assert.Eventually(t, func() bool { return starter.Calls() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, starter.Calls())
}

func TestTrigger_ReplaysChangeSeenDuringRebuild(t *testing.T) {
	// Given: a rebuild already running
	starter := &fakeStarter{running: true}
	tr := NewTrigger(starter, 0)
	batches := runTrigger(t, tr)

	// When: a change arrives, then the running job completes
	batches <- oneChange
	require.Eventually(t, func() bool { return starter.Calls() == 1 }, time.Second, 5*time.Millisecond)
	starter.setRunning(false)
	tr.JobDone(async.JobState{})

	// Then: the change is replayed as a new rebuild
	assert.Eventually(t, func() bool { return starter.Calls() == 2 }, time.Second, 5*time.Millisecond)

	// and a second completion with nothing pending starts nothing
	tr.JobDone(async.JobState{})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, starter.Calls())
}

func TestTrigger_ReplaysThroughCoordinator(t *testing.T) {
	// Given: a coordinator whose first rebuild blocks until released
	release := make(chan struct{})
	var runs atomic.Int32
	coord := async.NewCoordinator(async.Config{DataDir: t.TempDir()}, func(ctx context.Context, p *async.Progress) error {
		if runs.Add(1) == 1 {
			<-release
		}
		return nil
	})
	tr := NewTrigger(coord, 0)
	coord.OnComplete(tr.JobDone)
	batches := runTrigger(t, tr)

	// When: one change starts a rebuild and a second arrives mid-rebuild
	batches <- oneChange
	require.Eventually(t, coord.Running, time.Second, 5*time.Millisecond)
	batches <- oneChange
	close(release)

	// Then: the pending change is replayed as a second rebuild
	assert.Eventually(t, func() bool { return runs.Load() == 2 && !coord.Running() }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, coord.Wait())
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.False(t, tr.dirty)
}

func TestTrigger_RunReturnsWhenBatchesClose(t *testing.T) {
	tr := NewTrigger(&fakeStarter{}, 0)
	batches := make(chan []FileEvent)
	close(batches)

	assert.NoError(t, tr.Run(context.Background(), batches))
}
