package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/daemon"
	"github.com/Aman-CERP/chatsearch/internal/httpapi"
	"github.com/Aman-CERP/chatsearch/internal/output"
	"github.com/Aman-CERP/chatsearch/internal/watcher"
)

type serveOptions struct {
	httpAddr string
	noHTTP   bool
	watch    bool
	noWatch  bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve searches over HTTP and the local socket",
		Long: `Run the long-lived search server.

The server owns the index: it answers the HTTP API and the local socket
used by the other commands, runs rebuilds in the background, and with
--watch rebuilds automatically when transcripts change.

HTTP endpoints (also under /api/v1):
  GET  /search?q=<query>&limit=<n>
  GET  /conversation/<session_id>
  GET  /status
  POST /reindex
  GET  /stats
  GET  /health
  GET  /metrics

Examples:
  chatsearch serve
  chatsearch serve --http-addr 127.0.0.1:9100 --watch
  chatsearch serve --no-http`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.Server.HTTPAddr = opts.httpAddr
			}
			switch {
			case opts.watch:
				cfg.Watch.Enabled = true
			case opts.noWatch:
				cfg.Watch.Enabled = false
			}
			root.fileLogging(cfg, true)
			return runServe(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", httpapi.DefaultAddr, "HTTP listen address")
	cmd.Flags().BoolVar(&opts.noHTTP, "no-http", false, "Serve the local socket only")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild automatically when transcripts change")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Disable watching even if enabled in config")
	cmd.MarkFlagsMutuallyExclusive("watch", "no-watch")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts serveOptions) error {
	out := output.New(cmd.OutOrStdout())

	pid := daemon.NewPIDFile(cfg.PIDPath())
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pid.Remove() }()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("store_close_failed", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.autoIndex(ctx, cfg.Server.AutoIndex)

	g, gctx := errgroup.WithContext(ctx)

	sock, err := daemon.NewServer(cfg.SocketPath(), svc.engine)
	if err != nil {
		return err
	}
	g.Go(func() error { return sock.ListenAndServe(gctx) })
	out.Statusf("", "Socket: %s", cfg.SocketPath())

	if !opts.noHTTP {
		api, err := httpapi.NewServer(httpapi.Config{Addr: cfg.Server.HTTPAddr}, svc.engine, svc.metrics)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := api.ListenAndServe(gctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		out.Statusf("", "HTTP:   http://%s", cfg.Server.HTTPAddr)
	}

	if cfg.Watch.Enabled {
		if err := startWatching(gctx, g, cfg, svc); err != nil {
			return err
		}
		out.Statusf("", "Watching %s", cfg.Paths.ProjectsDir)
	}

	out.Status("", "Press Ctrl+C to stop")
	slog.Info("server_started",
		slog.Int("pid", os.Getpid()),
		slog.String("http_addr", cfg.Server.HTTPAddr),
		slog.Bool("http", !opts.noHTTP),
		slog.Bool("watch", cfg.Watch.Enabled))

	err = g.Wait()
	slog.Info("server_stopping")
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startWatching runs the transcript watcher and the rebuild trigger in g.
// A watcher failure is logged and leaves the server running without it.
func startWatching(ctx context.Context, g *errgroup.Group, cfg *config.Config, svc *service) error {
	opts := watcher.DefaultOptions()
	opts.DebounceWindow = cfg.DebounceDuration()
	opts.ExcludePatterns = cfg.Paths.Exclude

	w, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return err
	}

	trigger := watcher.NewTrigger(svc.coordinator, cfg.MinIntervalDuration())
	svc.coordinator.OnComplete(trigger.JobDone)

	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		if err := w.Start(ctx, cfg.Paths.ProjectsDir); err != nil && !stderrors.Is(err, context.Canceled) {
			slog.Error("watcher_failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		for err := range w.Errors() {
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		err := trigger.Run(ctx, w.Events())
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return nil
}
