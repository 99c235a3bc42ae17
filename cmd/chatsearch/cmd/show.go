package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/output"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

type showOptions struct {
	jsonOutput bool
	noColor    bool
	local      bool
}

func newShowCmd(root *rootOptions) *cobra.Command {
	var opts showOptions

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a whole conversation",
		Long: `Print every indexed message of one session in timestamp order.

Session IDs appear under each search result.

Examples:
  chatsearch show 3f2a9c1e-7b4d-4e0a-9a51-2c8d6f0e1b22
  chatsearch show 3f2a9c1e-7b4d-4e0a-9a51-2c8d6f0e1b22 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			root.fileLogging(cfg, false)
			return runShow(cmd.Context(), cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Read the index directly even if a server is running")

	return cmd
}

func runShow(ctx context.Context, cmd *cobra.Command, cfg *config.Config, sessionID string, opts showOptions) error {
	out := output.NewStyled(cmd.OutOrStdout(), opts.noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))

	resp, err := conversationVia(ctx, cfg, sessionID, opts.local)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return out.JSON(resp)
	}
	out.Conversation(resp)
	return nil
}

func conversationVia(ctx context.Context, cfg *config.Config, sessionID string, local bool) (*search.ConversationResponse, error) {
	if !local {
		if client := serverClient(cfg); client != nil {
			resp, err := client.Conversation(ctx, sessionID)
			if err == nil {
				return resp, nil
			}
			slog.Warn("server_conversation_failed", slog.String("error", err.Error()))
		}
	}

	engine, closeFn, err := readOnlyEngine(cfg)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return engine.Conversation(ctx, sessionID), nil
}
