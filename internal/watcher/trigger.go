package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/chatsearch/internal/async"
)

// Starter launches a rebuild. *async.Coordinator implements it.
type Starter interface {
	Start() async.StartStatus
}

// Trigger converts change batches into rebuild requests. Requests are spaced
// at least minInterval apart; a change seen while a rebuild is running is
// remembered and replayed once that rebuild completes.
type Trigger struct {
	starter Starter
	limiter *rate.Limiter

	mu        sync.Mutex
	scheduled *time.Timer
	dirty     bool
	closed    bool
}

// NewTrigger creates a trigger. minInterval <= 0 disables spacing.
func NewTrigger(starter Starter, minInterval time.Duration) *Trigger {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Trigger{
		starter: starter,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run consumes batches until ctx ends or batches is closed.
func (t *Trigger) Run(ctx context.Context, batches <-chan []FileEvent) error {
	defer t.close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			slog.Debug("transcripts_changed",
				slog.Int("files", len(batch)),
				slog.String("first", batch[0].Path))
			t.request()
		}
	}
}

// JobDone replays a request that arrived while a rebuild was running.
// Register it with Coordinator.OnComplete.
func (t *Trigger) JobDone(async.JobState) {
	t.mu.Lock()
	replay := t.dirty
	t.dirty = false
	t.mu.Unlock()

	if replay {
		t.request()
	}
}

// request starts a rebuild now, or schedules one for when the limiter allows.
func (t *Trigger) request() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.scheduled != nil {
		return
	}

	r := t.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		t.fireLocked()
		return
	}

	slog.Debug("reindex_deferred", slog.Duration("delay", delay))
	t.scheduled = time.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.scheduled = nil
		if !t.closed {
			t.fireLocked()
		}
	})
}

func (t *Trigger) fireLocked() {
	status := t.starter.Start()
	if status == async.StatusAlreadyRunning {
		t.dirty = true
	}
	slog.Info("reindex_triggered",
		slog.String("source", "watcher"),
		slog.String("status", string(status)))
}

func (t *Trigger) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.scheduled != nil {
		t.scheduled.Stop()
		t.scheduled = nil
	}
}
