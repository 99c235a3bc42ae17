package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/output"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

type indexOptions struct {
	noTUI   bool
	noColor bool
	local   bool
	backend string
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the conversation index",
		Long: `Rebuild the index from every transcript under the projects directory.

The rebuild is always complete: the index is cleared and every message is
reinserted. When 'chatsearch serve' is running the request is handed to it,
since it owns the index; use --local to rebuild in this process instead.

Examples:
  chatsearch index
  chatsearch index --no-tui
  chatsearch index --backend bleve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := root.config()
			if err != nil {
				return err
			}
			root.fileLogging(cfg, false)
			return runIndex(ctx, cmd, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Rebuild in this process even if a server is running")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: sqlite or bleve (default from config)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts indexOptions) error {
	out := output.NewStyled(cmd.OutOrStdout(), opts.noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))

	if !opts.local && opts.backend == "" {
		if client := serverClient(cfg); client != nil {
			resp, err := client.Reindex(ctx)
			if err != nil {
				return err
			}
			switch resp.Status {
			case async.StatusStarted:
				out.Success("Rebuild started by the running server")
			default:
				out.Status("", "A rebuild is already running on the server")
			}
			out.Status("", "Follow it with: chatsearch status")
			return nil
		}
	}

	if opts.backend != "" {
		cfg.Store.Backend = opts.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(cfg.Paths.ProjectsDir); err != nil {
		return errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("projects directory not found: %s", cfg.Paths.ProjectsDir), err).
			WithSuggestion("set paths.projects_dir in the config or CHATSEARCH_PROJECTS_DIR")
	}

	st, err := openStore(cfg, cfg.Store.Backend)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(opts.noColor),
		ui.WithRootDir(cfg.Paths.ProjectsDir)))

	runner, err := newRunner(cfg, st, renderer)
	if err != nil {
		return err
	}

	coord := async.NewCoordinator(async.Config{DataDir: cfg.Paths.DataDir}, runner.IndexFunc())

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	slog.Info("index_command_started",
		slog.String("projects_dir", cfg.Paths.ProjectsDir),
		slog.String("backend", cfg.Store.Backend))

	coord.Start()
	jobErr := coord.Wait()
	_ = renderer.Stop()

	if jobErr != nil {
		return jobErr
	}
	return nil
}
