package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize bounds text files read into memory. Media files are
// never read whole, only probed, so the bound applies to text only.
const DefaultMaxFileSize = 10 * 1024 * 1024

// ScanOptions shape one library scan.
type ScanOptions struct {
	// Root is the library root directory.
	Root string

	// Include holds doublestar patterns relative to the root. Empty
	// includes every recognized media file.
	Include []string

	// Exclude holds doublestar patterns; an excluded path never scans.
	Exclude []string

	// MaxFileSize bounds text file size in bytes.
	MaxFileSize int64

	// MaxFiles aborts scans that would exceed this many files.
	MaxFiles int
}

// Scanner discovers ingestable media files under a library root.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan walks the root and returns every matching media file, sorted by
// relative path so repeated scans of an unchanged library are identical.
// Hidden directories, sidecars, and oversized text files are skipped.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) ([]*FileInfo, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root is not a directory: %s", root)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []*FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("scan_entry_failed",
				slog.String("path", path),
				slog.String("error", walkErr.Error()),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || matchesAny(opts.Exclude, rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		kind := KindForPath(rel)
		if kind == "" {
			return nil
		}
		if matchesAny(opts.Exclude, rel) {
			return nil
		}
		if len(opts.Include) > 0 && !matchesAny(opts.Include, rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if kind == KindText && fi.Size() > maxSize {
			s.logger.Warn("text_file_skipped",
				slog.String("path", rel),
				slog.Int64("size", fi.Size()),
				slog.Int64("max", maxSize),
			)
			return nil
		}

		files = append(files, &FileInfo{
			Path:    rel,
			AbsPath: path,
			Kind:    kind,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
			return fmt.Errorf("library exceeds %d files; narrow ingest.include or raise ingest.max_files", opts.MaxFiles)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Info("scan_completed",
		slog.String("root", root),
		slog.Int("files", len(files)),
	)
	return files, nil
}

// matchesAny reports whether rel matches any doublestar pattern. Invalid
// patterns never match.
func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
