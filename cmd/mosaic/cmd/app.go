package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mosaicsearch/mosaic/internal/bundle"
	"github.com/mosaicsearch/mosaic/internal/cache"
	"github.com/mosaicsearch/mosaic/internal/config"
	"github.com/mosaicsearch/mosaic/internal/embed"
	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/search"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// app bundles the opened stores and embedder one command run needs.
// Close releases everything in reverse open order.
type app struct {
	cfg      *config.Config
	root     string
	dataDir  string
	content  *store.SQLiteContentStore
	indexes  map[store.Modality]store.VectorIndex
	keyword  store.KeywordIndex
	embedder embed.Embedder
}

// openApp locates the library, loads configuration, and opens the
// stores. With needEmbedder false no embedder is constructed, so
// commands like status never touch the network.
func openApp(ctx context.Context, startDir string, needEmbedder, offline bool) (*app, error) {
	root, err := config.FindLibraryRoot(startDir)
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Library.Root = root

	dataDir := cfg.DataDir(root)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &app{cfg: cfg, root: root, dataDir: dataDir}

	a.content, err = store.NewSQLiteContentStore(store.ContentDBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	if needEmbedder {
		opts := embed.FactoryOptions{
			Provider:      cfg.Embeddings.Provider,
			Model:         cfg.Embeddings.Model,
			Dimensions:    cfg.Embeddings.Dimensions,
			BatchSize:     cfg.Embeddings.BatchSize,
			OllamaHost:    cfg.Embeddings.OllamaHost,
			OpenAIBaseURL: cfg.Embeddings.OpenAIBaseURL,
			CacheSize:     cfg.Embeddings.CacheSize,
		}
		if offline {
			opts.Provider = "offline"
		}
		if a.embedder, err = embed.NewEmbedder(ctx, opts); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	if err := a.openIndexes(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.keyword, err = store.NewBleveKeywordIndex(store.KeywordIndexPath(dataDir))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	return a, nil
}

// openIndexes opens one vector index per modality, loading any saved
// graph from disk. Dimensions follow the stored index state so a saved
// index keeps working when the configured embedder changes.
func (a *app) openIndexes(ctx context.Context) error {
	dims := 0
	if stored, err := a.content.GetState(ctx, store.StateKeyIndexDimension); err == nil && stored != "" {
		_, _ = fmt.Sscanf(stored, "%d", &dims)
	}
	if dims <= 0 && a.embedder != nil {
		dims = a.embedder.Dimensions()
	}
	if dims <= 0 {
		dims = a.cfg.Embeddings.Dimensions
	}
	if dims <= 0 {
		dims = embed.DefaultDimensions
	}

	a.indexes = make(map[store.Modality]store.VectorIndex, len(store.AllModalities))
	for _, m := range store.AllModalities {
		idx, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(m, dims))
		if err != nil {
			return fmt.Errorf("failed to create %s index: %w", m, err)
		}
		path := store.VectorIndexPath(a.dataDir, m)
		if _, err := os.Stat(path); err == nil {
			if err := idx.Load(path); err != nil {
				slog.Warn("vector_index_load_failed",
					slog.String("modality", string(m)),
					slog.String("error", err.Error()))
			}
		}
		a.indexes[m] = idx
	}
	return nil
}

// indexPaths returns the save location for each opened vector index.
func (a *app) indexPaths() map[store.Modality]string {
	paths := make(map[store.Modality]string, len(a.indexes))
	for m := range a.indexes {
		paths[m] = store.VectorIndexPath(a.dataDir, m)
	}
	return paths
}

// Close releases stores and the embedder. Safe on a partially opened
// app.
func (a *app) Close() {
	if a.keyword != nil {
		_ = a.keyword.Close()
	}
	for _, idx := range a.indexes {
		_ = idx.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.content != nil {
		_ = a.content.Close()
	}
}

// searchConfig maps the configuration file's search section onto the
// pipeline's config, falling back to pipeline defaults for zero values.
func (a *app) searchConfig() search.Config {
	sc := search.DefaultConfig()
	c := a.cfg.Search

	if c.DefaultLimit > 0 {
		sc.DefaultLimit = c.DefaultLimit
	}
	if c.MaxLimit > 0 {
		sc.MaxLimit = c.MaxLimit
	}
	if c.SimilarityThreshold > 0 {
		sc.SimilarityThreshold = c.SimilarityThreshold
	}
	if s, err := search.ParseStrategy(c.FusionStrategy); err == nil && c.FusionStrategy != "" {
		sc.Strategy = s
	}
	if len(c.FusionWeights) > 0 {
		sc.Weights = c.FusionWeights
	}
	if c.RRFConstant > 0 {
		sc.RRFConstant = c.RRFConstant
	}
	sc.HybridKeyword = c.HybridKeyword
	if c.RequestDeadlineMS > 0 {
		sc.RequestDeadline = time.Duration(c.RequestDeadlineMS) * time.Millisecond
	}
	if c.SearchTimeoutMS > 0 {
		sc.SearchTimeout = time.Duration(c.SearchTimeoutMS) * time.Millisecond
	}
	if c.EmbedTimeoutMS > 0 {
		sc.EmbedTimeout = time.Duration(c.EmbedTimeoutMS) * time.Millisecond
	}
	if c.EnrichTimeoutMS > 0 {
		sc.EnrichTimeout = time.Duration(c.EnrichTimeoutMS) * time.Millisecond
	}
	if c.EnrichWorkers > 0 {
		sc.EnrichWorkers = c.EnrichWorkers
	}
	if c.DedupThreshold > 0 {
		sc.DedupThreshold = c.DedupThreshold
	}
	return sc
}

// newProcessor builds the query processor. With loadOverlay false the
// lexicon overlay is skipped; serve mode installs it through a watcher
// instead so edits take effect without a restart.
func (a *app) newProcessor(loadOverlay bool) (*query.Processor, error) {
	procOpts := []query.Option{}
	if n := a.cfg.Search.MaxQueryLength; n > 0 {
		procOpts = append(procOpts, query.WithMaxQueryLength(n))
	}
	if path := a.cfg.Search.LexiconPath; path != "" && loadOverlay {
		overlay, err := query.LoadOverlay(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load lexicon overlay: %w", err)
		}
		procOpts = append(procOpts, query.WithLexicon(query.NewLexicon().WithOverlay(overlay)))
	}
	return query.NewProcessor(procOpts...), nil
}

// newPipeline assembles the search pipeline over the opened stores.
func (a *app) newPipeline(extra ...search.PipelineOption) (*search.Pipeline, error) {
	processor, err := a.newProcessor(true)
	if err != nil {
		return nil, err
	}
	return a.newPipelineWith(processor, extra...)
}

func (a *app) newPipelineWith(processor *query.Processor, extra ...search.PipelineOption) (*search.Pipeline, error) {
	sc := a.searchConfig()

	var keyword store.KeywordIndex
	if sc.HybridKeyword {
		keyword = a.keyword
	}
	dispatcher := search.NewDispatcher(a.indexes, keyword,
		search.WithSearchTimeout(sc.SearchTimeout))
	enricher := search.NewEnricher(a.content,
		search.WithEnrichWorkers(sc.EnrichWorkers),
		search.WithEnrichTimeout(sc.EnrichTimeout))

	bundles, err := cache.New(a.cfg.Cache.Backend, cache.Options{
		TTL:        time.Duration(a.cfg.Cache.TTLSeconds) * time.Second,
		MaxEntries: a.cfg.Cache.MaxEntries,
		RedisAddr:  a.cfg.Cache.RedisAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle cache: %w", err)
	}

	opts := []search.PipelineOption{
		search.WithBundleCache(bundles),
		search.WithBundleLimits(bundle.LimitsFromMaps(a.cfg.Bundle.CharBudget, a.cfg.Bundle.ItemCap)),
	}
	opts = append(opts, extra...)

	return search.NewPipeline(processor, a.embedder, dispatcher, enricher, a.content, sc, opts...)
}
