package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/logging"
	"github.com/Aman-CERP/chatsearch/internal/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index to an MCP client over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Tools: search_conversations, get_conversation, index_status, reindex.
Logs go to the log file only, since stdout carries the protocol.

Example client configuration:
  {"mcpServers": {"chatsearch": {"command": "chatsearch", "args": ["mcp"]}}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			if cleanup, err := logging.SetupMCPMode(cfg.LogDir(), cfg.Logging.Level); err == nil {
				root.onExit(cleanup)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := newService(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			svc.autoIndex(ctx, cfg.Server.AutoIndex)

			srv, err := mcp.NewServer(svc.engine)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
}
