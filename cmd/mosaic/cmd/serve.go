package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mosaicsearch/mosaic/internal/logging"
	"github.com/mosaicsearch/mosaic/internal/mcp"
	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/search"
	"github.com/mosaicsearch/mosaic/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the library to MCP clients over stdio",
		Long: `Start the MCP server on stdio. AI clients call the "search" tool to
pull citation-annotated context out of the library and "library_status"
to inspect the index.

Stdout carries JSON-RPC exclusively; diagnostics go to the log file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use the offline hash embedder (no network)")

	return cmd
}

func runServe(ctx context.Context, offline bool) error {
	// Stdout is reserved for JSON-RPC from here on.
	cleanup, err := logging.SetupServeMode()
	if err == nil {
		defer cleanup()
	}

	a, err := openApp(ctx, ".", true, offline)
	if err != nil {
		return err
	}
	defer a.Close()

	// Query telemetry is flushed to a local SQLite store; serve mode is
	// the long-lived process where aggregates are worth keeping.
	var pipelineOpts []search.PipelineOption
	metricsStore, err := telemetry.NewSQLiteMetricsStore(telemetry.TelemetryDBPath(a.dataDir))
	if err != nil {
		slog.Warn("telemetry_disabled", slog.String("error", err.Error()))
	} else {
		metrics := telemetry.NewQueryMetrics(metricsStore)
		defer func() { _ = metrics.Close() }()
		pipelineOpts = append(pipelineOpts, search.WithMetrics(metrics))
	}

	processor, err := a.newProcessor(false)
	if err != nil {
		return err
	}
	if path := a.cfg.Search.LexiconPath; path != "" {
		watcher, werr := query.NewLexiconWatcher(processor, path, slog.Default())
		if werr != nil {
			slog.Warn("lexicon_watch_disabled",
				slog.String("path", path),
				slog.String("error", werr.Error()))
		} else {
			go func() { _ = watcher.Start(ctx) }()
			defer func() { _ = watcher.Stop() }()
		}
	}

	pipeline, err := a.newPipelineWith(processor, pipelineOpts...)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(pipeline, a.content, a.embedder, a.cfg)
	if err != nil {
		return err
	}
	server.SetLogger(slog.Default())

	slog.Info("serve_starting",
		slog.String("library", a.root),
		slog.String("data_dir", filepath.Base(a.dataDir)))

	transport := a.cfg.Server.Transport
	if transport == "" {
		transport = "stdio"
	}
	return server.Serve(ctx, transport)
}
