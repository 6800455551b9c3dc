// Package cmd provides the CLI commands for snipsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/logging"
	"github.com/Aman-CERP/snipsearch/pkg/version"
)

// Global flags
var (
	configDir      string
	logLevel       string
	verbose        bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the snipsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snipsearch",
		Short: "Search code snippets by metadata and file content",
		Long: `snipsearch searches a snippet library through two indexes: one over
snippet metadata (name, description, readme) and one over the content of
every snippet file. Hits from both are merged into one result per snippet,
with display names filled in from the database and average ratings attached.

Use "*" (or --all) to list every snippet.`,
		Version:            version.Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  startLogging,
		PersistentPostRunE: stopLogging,
	}

	cmd.SetVersionTemplate("snipsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "dir", ".", "Directory containing .snipsearch.yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror logs to stderr")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newRateCmd())
	cmd.AddCommand(newSnippetCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sends logs to ~/.snipsearch/logs/server.log.
// Serve never logs to stderr or stdout.
func startLogging(cmd *cobra.Command, _ []string) error {
	level := logLevel
	if level == "" {
		level = "info"
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = verbose
	if cmd.Name() == "serve" {
		cfg = logging.ServeConfig(level)
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("command_started", slog.String("command", cmd.CommandPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, snerrors.FormatForCLI(err))
	}
	return err
}
