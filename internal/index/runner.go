// Package index provides the full-rebuild pipeline: scan transcripts, extract
// messages, and bulk-load them into the store.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/scanner"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

// DefaultBatchFiles is how many files are buffered per insert transaction.
const DefaultBatchFiles = 50

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// ProjectsDir is the transcript root to scan.
	ProjectsDir string

	ExcludePatterns []string
	MaxFileSize     int64

	// BatchFiles is the flush interval in files (0 = DefaultBatchFiles).
	BatchFiles int
}

// RunnerResult contains the outcome of a rebuild.
type RunnerResult struct {
	Files    int
	Messages int
	Sessions int

	// Failed counts files that could not be read or were rejected by the scanner.
	Failed   int
	Duration time.Duration
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Store receives the rebuilt index (required).
	Store store.Store

	// Scanner discovers transcripts; created on demand when nil.
	Scanner *scanner.Scanner

	// Renderer shows progress; optional.
	Renderer ui.Renderer

	// Now stamps last_indexed; defaults to time.Now.
	Now func() time.Time
}

// Reporter receives job progress. *async.Progress implements it.
type Reporter interface {
	SetTotal(total int)
	FileDone(messages int)
}

// Runner executes full rebuilds.
type Runner struct {
	store    store.Store
	scanner  *scanner.Scanner
	renderer ui.Renderer
	now      func() time.Time
	config   RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(deps RunnerDependencies, cfg RunnerConfig) (*Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	sc := deps.Scanner
	if sc == nil {
		var err error
		if sc, err = scanner.New(); err != nil {
			return nil, err
		}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.BatchFiles <= 0 {
		cfg.BatchFiles = DefaultBatchFiles
	}

	return &Runner{
		store:    deps.Store,
		scanner:  sc,
		renderer: deps.Renderer,
		now:      now,
		config:   cfg,
	}, nil
}

// IndexFunc adapts the runner for an async.Coordinator.
func (r *Runner) IndexFunc() async.IndexFunc {
	return func(ctx context.Context, p *async.Progress) error {
		_, err := r.Run(ctx, p)
		return err
	}
}

// Run enumerates transcripts, resets the store, and reinserts every message.
// Metadata is written only after all batches are committed. A failure part
// way through leaves the store partially populated.
func (r *Runner) Run(ctx context.Context, progress Reporter) (*RunnerResult, error) {
	start := time.Now()
	result := &RunnerResult{}

	// Stage 1: enumerate
	r.progress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Scanning " + r.config.ProjectsDir})
	slog.Info("index_scan_started", slog.String("path", r.config.ProjectsDir))

	files, scanErrs, err := r.scanner.List(ctx, &scanner.ScanOptions{
		RootDir:         r.config.ProjectsDir,
		ExcludePatterns: r.config.ExcludePatterns,
		MaxFileSize:     r.config.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}
	for _, e := range scanErrs {
		result.Failed++
		r.fileError("", e)
	}
	scanDur := time.Since(start)
	if progress != nil {
		progress.SetTotal(len(files))
	}
	slog.Info("index_scan_complete",
		slog.Int("files", len(files)),
		slog.Int64("duration_ms", scanDur.Milliseconds()))

	// Stage 2: reset and load
	indexStart := time.Now()
	if err := r.store.Reset(ctx); err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "failed to reset index", err)
	}

	batch := make([]*store.Message, 0, 1024)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.store.Insert(ctx, batch); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to insert batch", err)
		}
		batch = batch[:0]
		return nil
	}

	for i, f := range files {
		r.progress(ui.ProgressEvent{
			Stage:       ui.StageIndexing,
			Current:     i,
			Total:       len(files),
			CurrentFile: f.Path,
		})

		n, readErr := scanner.ReadFile(ctx, f, func(m *store.Message) error {
			batch = append(batch, m)
			return nil
		})
		result.Messages += n
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.Failed++
			r.fileError(f.Path, readErr)
		}

		result.Files++
		if progress != nil {
			progress.FileDone(result.Messages)
		}

		if (i+1)%r.config.BatchFiles == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	// Stage 3: metadata
	if err := r.store.SetMetadata(ctx, map[string]string{
		store.MetaLastIndexed:  r.now().Format(time.RFC3339),
		store.MetaMessageCount: strconv.Itoa(result.Messages),
	}); err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "failed to write metadata", err)
	}

	if st, err := r.store.Stats(ctx); err == nil {
		result.Sessions = st.Sessions
	}
	result.Duration = time.Since(start)
	indexDur := time.Since(indexStart)

	if r.renderer != nil {
		r.renderer.Complete(ui.CompletionStats{
			Files:    result.Files,
			Messages: result.Messages,
			Sessions: result.Sessions,
			Duration: result.Duration,
			Warnings: result.Failed,
			Stages:   ui.StageTimings{Scan: scanDur, Index: indexDur},
		})
	}

	slog.Info("index_complete",
		slog.Int("files", result.Files),
		slog.Int("messages", result.Messages),
		slog.Int("sessions", result.Sessions),
		slog.Int("failed_files", result.Failed),
		slog.Int64("duration_total_ms", result.Duration.Milliseconds()),
		slog.Int64("duration_scan_ms", scanDur.Milliseconds()),
		slog.Int64("duration_index_ms", indexDur.Milliseconds()),
		slog.String("path", r.config.ProjectsDir))

	return result, nil
}

func (r *Runner) progress(ev ui.ProgressEvent) {
	if r.renderer != nil {
		r.renderer.UpdateProgress(ev)
	}
}

// fileError logs a per-file failure; the rebuild continues.
func (r *Runner) fileError(path string, err error) {
	attrs := append([]any{slog.String("file", path)}, errors.LogAttrs(err)...)
	slog.Warn("index_file_skipped", attrs...)
	if r.renderer != nil {
		r.renderer.AddError(ui.ErrorEvent{File: path, Err: err, IsWarn: true})
	}
}
