package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mosaicsearch/mosaic/internal/embed"
	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// ProgressFunc reports ingest progress: files completed out of total.
type ProgressFunc func(done, total int)

// RunnerDeps are the collaborators a Runner writes through. Lifecycle
// (open/close) belongs to the caller.
type RunnerDeps struct {
	Embedder embed.Embedder
	Content  store.ContentStore
	Indexes  map[store.Modality]store.VectorIndex
	Keyword  store.KeywordIndex

	// IndexPaths, when set, are where each vector index is saved after a
	// successful run.
	IndexPaths map[store.Modality]string

	Logger *slog.Logger
}

// RunConfig shapes one ingest run.
type RunConfig struct {
	Root    string
	DataDir string

	Include []string
	Exclude []string

	ChunkSize    int
	ChunkOverlap int

	// Workers bounds files processed concurrently.
	Workers int

	MaxFiles int

	// Rebuild re-ingests every file, ignoring stored fingerprints.
	Rebuild bool

	Progress ProgressFunc
}

// Result summarizes a completed run.
type Result struct {
	Files    int
	Skipped  int
	Records  int
	PerType  map[store.ContentType]int
	Failed   []string
	Duration time.Duration

	// Generation is the index generation after the run.
	Generation uint64
}

// Runner executes ingest runs: scan, extract, embed, store. One file
// failing is logged and skipped; the run continues. Concurrent runs are
// excluded by a file lock in the data directory.
type Runner struct {
	deps      RunnerDeps
	scanner   *Scanner
	extractor *Extractor
	logger    *slog.Logger
}

// NewRunner creates a Runner. Embedder, content store, and at least one
// vector index are required.
func NewRunner(deps RunnerDeps, chunkSize, chunkOverlap int) (*Runner, error) {
	if deps.Embedder == nil {
		return nil, errors.New("ingest: embedder is required")
	}
	if deps.Content == nil {
		return nil, errors.New("ingest: content store is required")
	}
	if len(deps.Indexes) == 0 {
		return nil, errors.New("ingest: at least one vector index is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		deps:      deps,
		scanner:   NewScanner(logger),
		extractor: NewExtractor(chunkSize, chunkOverlap),
		logger:    logger,
	}, nil
}

// Run ingests the library at cfg.Root.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	start := time.Now()

	lock := newWriteLock(cfg.DataDir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	files, err := r.scanner.Scan(ctx, ScanOptions{
		Root:     cfg.Root,
		Include:  cfg.Include,
		Exclude:  cfg.Exclude,
		MaxFiles: cfg.MaxFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	result := &Result{PerType: make(map[store.ContentType]int)}
	var (
		mu   sync.Mutex
		done int
	)
	progress := func() {
		done++
		if cfg.Progress != nil {
			cfg.Progress(done, len(files))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := r.ingestFile(gctx, f, cfg.Rebuild)

			mu.Lock()
			defer mu.Unlock()
			progress()
			switch {
			case err != nil:
				r.logger.Warn("file_ingest_failed",
					slog.String("path", f.Path),
					slog.String("error", err.Error()),
				)
				result.Failed = append(result.Failed, f.Path)
			case outcome == nil:
				result.Skipped++
			default:
				result.Files++
				result.Records += len(outcome)
				for _, rec := range outcome {
					result.PerType[rec.ContentType]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := r.finish(ctx, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	r.logger.Info("ingest_completed",
		slog.Int("files", result.Files),
		slog.Int("skipped", result.Skipped),
		slog.Int("records", result.Records),
		slog.Int("failed", len(result.Failed)),
		slog.Uint64("generation", result.Generation),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// ingestFile processes one file end to end. A nil, nil return means the
// file was unchanged and skipped.
func (r *Runner) ingestFile(ctx context.Context, f *FileInfo, rebuild bool) ([]*store.ContentRecord, error) {
	fp := fingerprint(f)
	fpKey := "doc_fp:" + f.DocID()

	if !rebuild {
		stored, err := r.deps.Content.GetState(ctx, fpKey)
		if err == nil && stored == fp {
			return nil, nil
		}
	}

	records, err := r.extractor.Extract(f)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = embedText(rec)
	}
	vectors, err := r.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, mserrors.EmbeddingUnavailable("ingest embedding failed", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records))
	}

	// Replace any records a previous version of this file produced.
	if oldIDs, err := r.deps.Content.IDsByDoc(ctx, f.DocID()); err == nil && len(oldIDs) > 0 {
		for _, idx := range r.deps.Indexes {
			_ = idx.Delete(ctx, oldIDs)
		}
		if r.deps.Keyword != nil {
			_ = r.deps.Keyword.Delete(ctx, oldIDs)
		}
		if err := r.deps.Content.DeleteByDoc(ctx, f.DocID()); err != nil {
			return nil, fmt.Errorf("failed to drop stale records: %w", err)
		}
	}

	if err := r.deps.Content.Put(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store records: %w", err)
	}

	if err := r.indexVectors(ctx, f, records, vectors); err != nil {
		return nil, err
	}

	if r.deps.Keyword != nil {
		var docs []*store.KeywordDoc
		for _, rec := range records {
			if rec.ContentType == store.ContentTypeTextChunk {
				docs = append(docs, &store.KeywordDoc{ID: rec.ID, Content: rec.Text.Text})
			}
		}
		if len(docs) > 0 {
			if err := r.deps.Keyword.Index(ctx, docs); err != nil {
				return nil, fmt.Errorf("failed to index keywords: %w", err)
			}
		}
	}

	if err := r.deps.Content.SetState(ctx, fpKey, fp); err != nil {
		return nil, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return records, nil
}

// indexVectors adds each record's vector to its modality index with the
// filterable attributes the dispatcher queries on.
func (r *Runner) indexVectors(ctx context.Context, f *FileInfo, records []*store.ContentRecord, vectors [][]float32) error {
	idx, ok := r.deps.Indexes[f.Modality()]
	if !ok {
		return fmt.Errorf("no %s index registered", f.Modality())
	}

	ids := make([]string, len(records))
	attrs := make([]map[string]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		attrs[i] = map[string]string{
			"content_type": string(rec.ContentType),
			"year":         fmt.Sprintf("%d", rec.CreatedAt.Year()),
		}
	}
	if err := idx.Add(ctx, ids, vectors, attrs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	return nil
}

// finish bumps the generation, records the embedding fingerprint, and
// saves the vector indexes.
func (r *Runner) finish(ctx context.Context, result *Result) error {
	gen, err := r.deps.Content.BumpGeneration(ctx)
	if err != nil {
		return fmt.Errorf("failed to bump index generation: %w", err)
	}
	result.Generation = gen

	if err := r.deps.Content.SetState(ctx, store.StateKeyIndexModel, r.deps.Embedder.ModelName()); err != nil {
		return err
	}
	if err := r.deps.Content.SetState(ctx, store.StateKeyIndexDimension,
		fmt.Sprintf("%d", r.deps.Embedder.Dimensions())); err != nil {
		return err
	}

	for m, path := range r.deps.IndexPaths {
		idx, ok := r.deps.Indexes[m]
		if !ok {
			continue
		}
		if err := idx.Save(path); err != nil {
			return fmt.Errorf("failed to save %s index: %w", m, err)
		}
	}
	return nil
}

// embedText is the text a record is embedded under: its body, or its
// title when the body is empty (captionless media stays findable by
// name).
func embedText(rec *store.ContentRecord) string {
	if body := rec.Body(); body != "" {
		return body
	}
	return rec.Title
}

// fingerprint identifies a file version: path, size, and mtime.
func fingerprint(f *FileInfo) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", f.Path, f.Size, f.ModTime.UnixNano())))
	return hex.EncodeToString(sum[:16])
}
