// Package cli implements the cakeday command line: it resolves
// configuration, sets up logging, and runs the service until signalled.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cakeday/internal/paths"
	"github.com/mesh-intelligence/cakeday/internal/service"
)

// rootOptions holds the global flag values.
type rootOptions struct {
	configDir string
	dataDir   string
	sweepAt   string
	listen    string
	verbose   bool
}

// NewRootCmd creates the "cakeday" command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "cakeday",
		Short: "Birthday reminder service",
		Long: `cakeday stores birthdays and other yearly events and sends each owner
a reminder on the day, from a daily sweep at a configured time.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, opts)
		},
	}
	root.SetVersionTemplate(versionTemplate)

	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/cakeday)")
	root.Flags().StringVar(&opts.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/cakeday)")
	root.Flags().StringVar(&opts.sweepAt, "sweep-at", "", "daily sweep time, HH:MM (default 09:00)")
	root.Flags().StringVar(&opts.listen, "listen", "", "HTTP listen address; empty disables the HTTP server")
	root.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newHashKeyCmd())
	return root
}

// Execute runs the root command with SIGINT and SIGTERM cancelling its
// context, and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "cakeday:", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

func runService(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configDir, err := paths.ResolveConfigDir(opts.configDir)
	if err != nil {
		return WrapExitError(ExitConfigError, "resolve config dir", err)
	}
	cfg, err := loadConfig(configDir, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitConfigError, "load config", err)
	}

	logger, err := newLogger(cfg.Log, opts.verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitConfigError, "configure logging", err)
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return classify(err)
	}

	logger.Info("starting cakeday", "version", Version, "config_dir", configDir, "data_dir", cfg.DataDir)
	svc, err := service.New(ctx, cfg,
		service.WithLogger(logger),
		service.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return classify(err)
	}

	if err := svc.Run(ctx); err != nil {
		return WrapExitError(ExitStartup, "service stopped", err)
	}
	logger.Info("cakeday stopped")
	return nil
}
