package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mosaicsearch/mosaic/internal/embed"
	"github.com/mosaicsearch/mosaic/internal/ingest"
	"github.com/mosaicsearch/mosaic/internal/ui"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	rebuild bool
	workers int
	offline bool
	plain   bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Scan the library and build the search indexes",
		Long: `Scan the library for text documents, images, and videos, extract
searchable records (text chunks, captions, transcript segments,
keyframes), embed them, and build the vector and keyword indexes.

Unchanged files are skipped on repeat runs; --rebuild re-ingests
everything. Image captions, video transcripts, and keyframe tables are
read from sidecar files next to the media
(photo.jpg + photo.caption.txt, clip.mp4 + clip.transcript.txt).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDir := "."
			if len(args) > 0 {
				startDir = args[0]
			}
			return runIngest(cmd.Context(), cmd, startDir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Re-ingest every file, ignoring stored fingerprints")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent files (default from config)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use the offline hash embedder (no network)")
	cmd.Flags().BoolVar(&opts.plain, "no-tui", false, "Plain text progress output")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, startDir string, opts ingestOptions) error {
	a, err := openApp(ctx, startDir, true, opts.offline)
	if err != nil {
		return err
	}
	defer a.Close()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithLibraryDir(a.root),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: "scanning " + a.root,
	})

	runner, err := ingest.NewRunner(ingest.RunnerDeps{
		Embedder:   a.embedder,
		Content:    a.content,
		Indexes:    a.indexes,
		Keyword:    a.keyword,
		IndexPaths: a.indexPaths(),
		Logger:     slog.Default(),
	}, a.cfg.Ingest.ChunkSize, a.cfg.Ingest.ChunkOverlap)
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers <= 0 {
		workers = a.cfg.Ingest.Workers
	}

	start := time.Now()
	res, err := runner.Run(ctx, ingest.RunConfig{
		Root:         a.root,
		DataDir:      a.dataDir,
		Include:      a.cfg.Ingest.Include,
		Exclude:      a.cfg.Ingest.Exclude,
		ChunkSize:    a.cfg.Ingest.ChunkSize,
		ChunkOverlap: a.cfg.Ingest.ChunkOverlap,
		Workers:      workers,
		MaxFiles:     a.cfg.Ingest.MaxFiles,
		Rebuild:      opts.rebuild,
		Progress: func(done, total int) {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Current: done,
				Total:   total,
			})
		},
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	for _, path := range res.Failed {
		renderer.AddError(ui.ErrorEvent{File: path, Err: fmt.Errorf("ingest failed"), IsWarn: true})
	}

	info := embed.GetInfo(ctx, a.embedder)
	renderer.Complete(ui.CompletionStats{
		Files:    res.Files,
		Records:  res.Records,
		Duration: time.Since(start),
		Warnings: len(res.Failed),
		Embedder: ui.EmbedderInfo{
			Backend:    string(info.Provider),
			Model:      info.Model,
			Dimensions: info.Dimensions,
		},
	})
	return nil
}
