// Package cmd provides the CLI commands for Mosaic.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mosaicsearch/mosaic/internal/logging"
	"github.com/mosaicsearch/mosaic/pkg/version"
)

// Debug logging flag shared by every subcommand.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the mosaic CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mosaic",
		Short: "Multimodal retrieval over a local media library",
		Long: `Mosaic indexes a library of text, image, and video content and answers
natural-language queries with a citation-annotated context bundle.

Queries fan out per modality, results merge with rank fusion, and the
fused set is packed into a readable narrative with per-type citation
markers. Run 'mosaic ingest' to build the index, 'mosaic search' to
query it, and 'mosaic serve' to expose it to MCP clients.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("mosaic version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.mosaic/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sets up debug logging if the flag is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug_logging_enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// stopLogging flushes the debug log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
