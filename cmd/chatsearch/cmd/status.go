package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var jsonOutput, noColor bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long: `Show whether the transcripts are indexed, how many messages and
sessions the index holds, where it lives, and the state of any rebuild.

When 'chatsearch serve' is running the rebuild progress comes from it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			info := collectStatus(cmd.Context(), cfg)

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

// collectStatus asks the running server when there is one, and otherwise
// reads the index directly.
func collectStatus(ctx context.Context, cfg *config.Config) ui.StatusInfo {
	b := backend(cfg)
	path := store.IndexPath(cfg.Paths.DataDir, b)
	info := ui.StatusInfo{
		Backend:     b,
		IndexPath:   path,
		IndexSize:   indexSize(path),
		ProjectsDir: cfg.Paths.ProjectsDir,
		Server:      "stopped",
	}

	if client := serverClient(cfg); client != nil {
		resp, err := client.Status(ctx)
		if err == nil {
			info.Server = "running"
			applyStatus(&info, resp)
			return info
		}
		slog.Warn("server_status_failed", slog.String("error", err.Error()))
	}

	if store.Detect(store.BasePath(cfg.Paths.DataDir)) == "" {
		return info
	}

	st, err := openStore(cfg, b)
	if err != nil {
		slog.Warn("status_open_failed", slog.String("error", err.Error()))
		return info
	}
	defer func() { _ = st.Close() }()

	engine, err := search.NewEngine(st, nil, engineConfig(cfg))
	if err != nil {
		return info
	}
	applyStatus(&info, engine.Status(ctx))

	if stats, err := st.Stats(ctx); err == nil {
		info.Sessions = stats.Sessions
	}
	return info
}

func applyStatus(info *ui.StatusInfo, resp *search.StatusResponse) {
	info.Indexed = resp.Indexed
	info.MessageCount = resp.MessageCount
	if resp.LastIndexed != nil {
		if t, err := time.Parse(time.RFC3339, *resp.LastIndexed); err == nil {
			info.LastIndexed = t
		}
	}

	job := resp.IndexingJob
	if job.JobID == "" {
		return
	}
	info.Job = &ui.JobInfo{
		Running:  job.Running,
		Progress: job.Progress,
		Total:    job.Total,
		Messages: job.Messages,
	}
	if job.Total > 0 {
		info.Job.Percent = float64(job.Progress) / float64(job.Total) * 100
	}
	if job.Error != nil {
		info.Job.Error = *job.Error
	}
}
