package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/daemon"
	"github.com/Aman-CERP/chatsearch/internal/output"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	jsonOutput bool
	noColor    bool
	local      bool // bypass a running server
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed conversations",
		Long: `Search every indexed message for the query words.

Each word matches as a prefix and all words must appear, so "sqli wal"
finds messages mentioning both "sqlite" and "WAL". Punctuation is ignored.
Results are ranked by relevance with matches highlighted.

Examples:
  chatsearch search "connection pool"
  chatsearch search retry backoff -n 5
  chatsearch search migration --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			root.fileLogging(cfg, false)
			return runSearch(cmd.Context(), cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Query the index directly even if a server is running")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, query string, opts searchOptions) error {
	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.NewStyled(cmd.OutOrStdout(), opts.noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))

	resp, err := searchVia(ctx, cfg, query, opts)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", resp.Count))

	if opts.jsonOutput {
		return out.JSON(resp)
	}
	out.Hits(resp)
	return nil
}

// searchVia asks the running server first and falls back to the local index.
func searchVia(ctx context.Context, cfg *config.Config, query string, opts searchOptions) (*search.SearchResponse, error) {
	if !opts.local {
		if client := serverClient(cfg); client != nil {
			resp, err := client.Search(ctx, daemon.SearchParams{Query: query, Limit: opts.limit})
			if err == nil {
				return resp, nil
			}
			slog.Warn("server_search_failed", slog.String("error", err.Error()))
		}
	}

	engine, closeFn, err := readOnlyEngine(cfg)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return engine.Search(ctx, query, opts.limit), nil
}
