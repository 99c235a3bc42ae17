package cmd

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/daemon"
	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/index"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/telemetry"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

// backend returns the configured backend unless only an index built with
// the other backend exists, in which case that one is used.
func backend(cfg *config.Config) string {
	base := store.BasePath(cfg.Paths.DataDir)
	if store.Detect(base) == "" {
		return cfg.Store.Backend
	}
	configured := store.IndexPath(cfg.Paths.DataDir, cfg.Store.Backend)
	if _, err := os.Stat(configured); err == nil {
		return cfg.Store.Backend
	}
	found := string(store.Detect(base))
	slog.Warn("store_backend_mismatch",
		slog.String("configured", cfg.Store.Backend),
		slog.String("found", found))
	return found
}

// openStore opens the index under the data directory with the given backend.
func openStore(cfg *config.Config, backend string) (store.Store, error) {
	scfg := store.DefaultConfig()
	scfg.SnippetTokens = cfg.Store.SnippetTokens
	return store.Open(store.BasePath(cfg.Paths.DataDir), backend, scfg)
}

// indexSize sums the on-disk size of the index file or directory.
func indexSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func engineConfig(cfg *config.Config) search.EngineConfig {
	return search.EngineConfig{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		CacheSize:    cfg.Search.CacheSize,
	}
}

// newRunner builds the rebuild pipeline. renderer may be nil.
func newRunner(cfg *config.Config, st store.Store, renderer ui.Renderer) (*index.Runner, error) {
	return index.NewRunner(index.RunnerDependencies{
		Store:    st,
		Renderer: renderer,
	}, index.RunnerConfig{
		ProjectsDir:     cfg.Paths.ProjectsDir,
		ExcludePatterns: cfg.Paths.Exclude,
		MaxFileSize:     cfg.MaxFileSize(),
		BatchFiles:      cfg.Store.BatchFiles,
	})
}

// service is a read-write engine with an in-process rebuild coordinator.
type service struct {
	store       store.Store
	engine      *search.Engine
	coordinator *async.Coordinator
	metrics     *telemetry.Metrics
}

// newService wires store, runner, coordinator and engine together. Rebuild
// completion invalidates the search cache and updates the index metrics.
func newService(cfg *config.Config) (*service, error) {
	st, err := openStore(cfg, backend(cfg))
	if err != nil {
		return nil, err
	}

	runner, err := newRunner(cfg, st, nil)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	run := runner.IndexFunc()
	coord := async.NewCoordinator(async.Config{DataDir: cfg.Paths.DataDir},
		func(ctx context.Context, p *async.Progress) error {
			metrics.IndexStarted()
			return run(ctx, p)
		})

	engine, err := search.NewEngine(st, coord, engineConfig(cfg),
		search.WithMetrics(telemetry.NewQueryMetrics(telemetry.DefaultQueryMetricsConfig(), metrics)))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	coord.OnComplete(engine.OnRebuildComplete)
	coord.OnComplete(func(s async.JobState) {
		var jobErr error
		if s.Error != "" {
			jobErr = errors.New(errors.ErrCodeIndexFailed, s.Error, nil)
		}
		metrics.IndexFinished(s.Elapsed(), s.Messages, jobErr)
	})

	return &service{store: st, engine: engine, coordinator: coord, metrics: metrics}, nil
}

// autoIndex starts a background rebuild when no index has been built yet.
func (s *service) autoIndex(ctx context.Context, enabled bool) {
	if !enabled || s.engine.Status(ctx).Indexed {
		return
	}
	slog.Info("auto_index_started", slog.String("status", string(s.coordinator.Start())))
}

// Close waits for a running rebuild, then closes the store.
func (s *service) Close() error {
	if s.coordinator.Running() {
		slog.Info("waiting_for_rebuild")
	}
	_ = s.coordinator.Wait()
	return s.store.Close()
}

// readOnlyEngine opens the index for a one-shot query.
func readOnlyEngine(cfg *config.Config) (*search.Engine, func(), error) {
	st, err := openStore(cfg, backend(cfg))
	if err != nil {
		return nil, nil, err
	}
	engine, err := search.NewEngine(st, nil, engineConfig(cfg))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return engine, func() { _ = st.Close() }, nil
}

// serverClient returns a client for a running server, or nil.
func serverClient(cfg *config.Config) *daemon.Client {
	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)
	dcfg.SocketPath = cfg.SocketPath()
	dcfg.PIDPath = cfg.PIDPath()

	client := daemon.NewClient(dcfg)
	if !client.IsRunning() {
		return nil
	}
	return client
}
