// Package cmd provides the CLI commands for chatsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chatsearch/internal/config"
	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/logging"
	"github.com/Aman-CERP/chatsearch/internal/profiling"
	"github.com/Aman-CERP/chatsearch/pkg/version"
)

// rootOptions holds persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
	profile    profiling.Options

	cfg      *config.Config
	session  *profiling.Session
	cleanups []func()
}

// NewRootCmd creates the root command for the chatsearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chatsearch",
		Short: "Full-text search over local AI-assistant conversation transcripts",
		Long: `chatsearch indexes the JSONL transcripts under ~/.claude/projects and
answers prefix-matching keyword queries with highlighted snippets.

The index can be queried from this CLI, over HTTP ('chatsearch serve'),
or by MCP clients ('chatsearch mcp').

Examples:
  chatsearch index
  chatsearch search "sqlite wal"
  chatsearch show 3f2a9c1e-...
  chatsearch serve --watch`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.before()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return opts.after()
		},
	}
	cmd.SetVersionTemplate("chatsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (overrides ~/.config/chatsearch/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to stderr and the log file")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newStopCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a formatted error on failure.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
	}
	return err
}

func (o *rootOptions) before() error {
	if o.profile.Enabled() {
		s, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.session = s
	}

	if o.debug {
		logger, cleanup, err := logging.Setup(logging.Config{Level: "debug"})
		if err != nil {
			return fmt.Errorf("failed to set up debug logging: %w", err)
		}
		slog.SetDefault(logger)
		o.onExit(cleanup)
	}
	return nil
}

func (o *rootOptions) after() error {
	for i := len(o.cleanups) - 1; i >= 0; i-- {
		o.cleanups[i]()
	}
	o.cleanups = nil

	if err := o.session.Stop(); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// onExit registers fn to run after the command finishes.
func (o *rootOptions) onExit(fn func()) {
	o.cleanups = append(o.cleanups, fn)
}

// config loads the layered configuration once per invocation.
func (o *rootOptions) config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	o.cfg = cfg
	return cfg, nil
}

// fileLogging sends logs to the rotating log file, and to stderr as well
// when stderr is set or --debug is on.
func (o *rootOptions) fileLogging(cfg *config.Config, stderr bool) {
	logCfg := logging.DefaultConfig(cfg.LogDir())
	logCfg.Level = cfg.Logging.Level
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	logCfg.WriteToStderr = stderr || o.debug

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// logging is best effort for CLI commands
		slog.Debug("file_logging_unavailable", slog.String("error", err.Error()))
		return
	}
	o.onExit(cleanup)
}
