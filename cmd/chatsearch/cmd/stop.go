package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/daemon"
	"github.com/Aman-CERP/chatsearch/internal/output"
)

func newStopCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running server",
		Long: `Stop the running 'chatsearch serve' process.

Sends SIGTERM and waits up to five seconds for a graceful shutdown, which
lets a running rebuild finish, then falls back to SIGKILL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			return runStop(cmd, daemon.NewPIDFile(cfg.PIDPath()))
		},
	}
}

func runStop(cmd *cobra.Command, pidFile *daemon.PIDFile) error {
	out := output.New(cmd.OutOrStdout())

	if !pidFile.IsRunning() {
		out.Status("", "Server is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Server stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Server not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill server: %w", err)
	}
	_ = pidFile.Remove()

	out.Success("Server killed")
	return nil
}
