package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mosaicsearch/mosaic/internal/config"
	"github.com/mosaicsearch/mosaic/internal/store"
	"github.com/mosaicsearch/mosaic/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show library index health",
		Long: `Display information about the library index:
  - Record counts per content type
  - Index generation
  - Storage sizes (content, keyword, vectors)
  - Embedder configuration and index model`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindLibraryRoot(".")
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if _, err := os.Stat(store.ContentDBPath(cfg.DataDir(root))); os.IsNotExist(err) {
		return fmt.Errorf("no index found in %s\nRun 'mosaic ingest' to create one", root)
	}

	a, err := openApp(ctx, ".", false, false)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := collectStatus(ctx, a)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, a *app) (ui.StatusInfo, error) {
	info := ui.StatusInfo{LibraryRoot: a.root}

	counts, err := a.content.CountByType(ctx)
	if err != nil {
		return info, err
	}
	info.RecordCounts = make(map[string]int, len(counts))
	for ct, n := range counts {
		info.RecordCounts[string(ct)] = n
		info.TotalRecords += n
	}

	if gen, err := a.content.Generation(ctx); err == nil {
		info.Generation = gen
	}

	contentPath := store.ContentDBPath(a.dataDir)
	info.ContentSize = getFileSize(contentPath)
	info.KeywordSize = getDirSize(store.KeywordIndexPath(a.dataDir))
	for _, m := range store.AllModalities {
		info.VectorSize += getFileSize(store.VectorIndexPath(a.dataDir, m))
	}
	info.TotalSize = info.ContentSize + info.KeywordSize + info.VectorSize

	if fi, err := os.Stat(contentPath); err == nil {
		info.LastIngested = fi.ModTime()
	}

	info.EmbedderType = a.cfg.Embeddings.Provider
	if info.EmbedderType == "" {
		info.EmbedderType = "auto"
	}
	if model, err := a.content.GetState(ctx, store.StateKeyIndexModel); err == nil && model != "" {
		info.EmbedderModel = model
		info.EmbedderStatus = "ready"
	} else {
		info.EmbedderStatus = "offline"
	}

	return info, nil
}

// getFileSize returns a file's size, or 0 if it does not exist.
func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// getDirSize sums regular file sizes under dir.
func getDirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, fi os.FileInfo, err error) error {
		if err == nil && fi.Mode().IsRegular() {
			total += fi.Size()
		}
		return nil
	})
	return total
}
