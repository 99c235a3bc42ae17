package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/chatsearch/internal/errors"
)

// IndexFunc performs one full rebuild, reporting through p.
type IndexFunc func(ctx context.Context, p *Progress) error

// Config configures a Coordinator.
type Config struct {
	// DataDir holds the cross-process lock. Empty disables locking.
	DataDir string
}

// Coordinator runs at most one IndexFunc at a time in the background.
// The job cannot be cancelled once started.
type Coordinator struct {
	config Config

	// IndexFunc is the rebuild to run; injected so tests can substitute it.
	IndexFunc IndexFunc

	state   atomic.Pointer[JobState]
	running atomic.Bool

	mu         sync.Mutex
	current    *jobRun
	onComplete []func(JobState)
}

// jobRun is one Start call. done closes after the OnComplete hooks return.
type jobRun struct {
	jobID string
	done  chan struct{}
	err   error
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(cfg Config, fn IndexFunc) *Coordinator {
	c := &Coordinator{config: cfg, IndexFunc: fn}
	c.state.Store(&JobState{})
	return c
}

// OnComplete registers fn to run after every job with its final state.
func (c *Coordinator) OnComplete(fn func(JobState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = append(c.onComplete, fn)
}

// State returns the current snapshot.
func (c *Coordinator) State() JobState {
	return *c.state.Load()
}

// Running reports whether a job is in flight.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Start launches a rebuild unless one is already running, in which case it
// changes nothing and reports StatusAlreadyRunning. It never blocks.
func (c *Coordinator) Start() StartStatus {
	if !c.running.CompareAndSwap(false, true) {
		return StatusAlreadyRunning
	}

	now := time.Now()
	st := &JobState{JobID: uuid.NewString(), Running: true, StartedAt: &now}
	c.state.Store(st)

	r := &jobRun{jobID: st.JobID, done: make(chan struct{})}
	c.mu.Lock()
	c.current = r
	c.mu.Unlock()

	slog.Info("index_job_started", slog.String("job_id", st.JobID))
	go c.run(r)
	return StatusStarted
}

// Wait blocks until the current job, if any, finishes and returns its error.
func (c *Coordinator) Wait() error {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r == nil {
		return nil
	}
	<-r.done
	return r.err
}

// run executes the job, publishes the idle state, and only then runs the
// hooks, so a hook may Start the next job.
func (c *Coordinator) run(r *jobRun) {
	defer close(r.done)
	jobID := r.jobID

	err := c.execute(jobID)

	final := c.State()
	final.Running = false
	now := time.Now()
	final.FinishedAt = &now
	if err != nil {
		final.Error = err.Error()
		slog.Error("index_job_failed",
			append([]any{slog.String("job_id", jobID)}, errors.LogAttrs(err)...)...)
	} else {
		slog.Info("index_job_completed",
			slog.String("job_id", jobID),
			slog.Int("files", final.Progress),
			slog.Int("messages", final.Messages),
			slog.Duration("duration", final.Elapsed()))
	}
	r.err = err
	c.state.Store(&final)
	c.running.Store(false)

	c.mu.Lock()
	hooks := append([]func(JobState){}, c.onComplete...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(final)
	}
}

// execute runs the IndexFunc under the file lock, converting panics to errors.
func (c *Coordinator) execute(jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeIndexFailed, fmt.Sprintf("index job panicked: %v", r), nil)
		}
	}()

	if c.IndexFunc == nil {
		return errors.InternalError("no index function configured", nil)
	}

	if c.config.DataDir != "" {
		lock := NewFileLock(c.config.DataDir)
		acquired, lockErr := lock.TryLock()
		if lockErr != nil {
			return errors.IOError("cannot acquire index lock", lockErr)
		}
		if !acquired {
			return errors.New(errors.ErrCodeIndexLocked, "index is being rebuilt by another process", nil).
				WithDetail("lock", lock.Path())
		}
		defer func() { _ = lock.Unlock() }()
	}

	// rebuilds are not cancellable
	ctx := context.WithoutCancel(context.Background())
	return c.IndexFunc(ctx, &Progress{c: c, jobID: jobID})
}

// Progress publishes job counters. Each call swaps in a new snapshot.
type Progress struct {
	c     *Coordinator
	jobID string
}

func (p *Progress) update(fn func(*JobState)) {
	next := *p.c.state.Load()
	if next.JobID != p.jobID {
		return
	}
	fn(&next)
	p.c.state.Store(&next)
}

// SetTotal records how many files this run will process.
func (p *Progress) SetTotal(total int) {
	p.update(func(s *JobState) { s.Total = total })
}

// FileDone records one more processed file and the running message count.
func (p *Progress) FileDone(messages int) {
	p.update(func(s *JobState) {
		s.Progress++
		s.Messages = messages
	})
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() JobState {
	return p.c.State()
}
