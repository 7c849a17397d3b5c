package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicsearch/mosaic/internal/bundle"
	"github.com/mosaicsearch/mosaic/internal/cache"
	"github.com/mosaicsearch/mosaic/internal/embed"
	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/store"
	"github.com/mosaicsearch/mosaic/internal/telemetry"
)

// ErrNilDependency is returned when a required collaborator is nil.
var ErrNilDependency = errors.New("nil dependency")

// Pipeline orchestrates one retrieval request end to end:
// validate → cache get → process → embed → dispatch → enrich per list →
// dedup per list → fuse → bundle → cache set → telemetry.
//
// Collaborators are injected at construction and never replaced; their
// lifecycle belongs to the caller. The pipeline itself is stateless and
// safe for concurrent use.
type Pipeline struct {
	cfg        Config
	processor  *query.Processor
	embedder   embed.Embedder
	dispatcher *Dispatcher
	enricher   *Enricher
	content    store.ContentStore
	dedup      *DedupFilter
	fuser      *Fuser
	builder    *bundle.Builder
	bundles    cache.Cache
	metrics    *telemetry.QueryMetrics
	logger     *slog.Logger
}

// PipelineOption configures optional collaborators.
type PipelineOption func(*Pipeline)

// WithBundleCache sets the bundle cache. Without one, every request is
// computed fresh.
func WithBundleCache(c cache.Cache) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.bundles = c
		}
	}
}

// WithMetrics sets the query telemetry collector.
func WithMetrics(m *telemetry.QueryMetrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithBundleLimits overrides the bundler's budgets and caps.
func WithBundleLimits(limits bundle.Limits) PipelineOption {
	return func(p *Pipeline) {
		p.builder = bundle.NewBuilder(limits)
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a Pipeline. The processor, embedder, dispatcher,
// enricher, and content store are required; cache and telemetry are
// optional.
func NewPipeline(
	processor *query.Processor,
	embedder embed.Embedder,
	dispatcher *Dispatcher,
	enricher *Enricher,
	content store.ContentStore,
	cfg Config,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if processor == nil {
		return nil, fmt.Errorf("%w: query processor is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", ErrNilDependency)
	}
	if enricher == nil {
		return nil, fmt.Errorf("%w: enricher is required", ErrNilDependency)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: content store is required", ErrNilDependency)
	}

	p := &Pipeline{
		cfg:        cfg,
		processor:  processor,
		embedder:   embedder,
		dispatcher: dispatcher,
		enricher:   enricher,
		content:    content,
		dedup:      NewDedupFilter(cfg.DedupThreshold, nil),
		fuser:      NewFuserWithK(cfg.RRFConstant),
		builder:    bundle.NewBuilder(bundle.DefaultLimits()),
		bundles:    cache.Nop{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.dedup = NewDedupFilter(cfg.DedupThreshold, p.logger)
	return p, nil
}

// Search runs one retrieval request and returns the assembled context
// bundle.
//
// Validation failures surface before any collaborator is called. An
// embedding failure is fatal; a single modality failing degrades to a
// partial bundle flagged with a warning; every requested modality failing
// is a retrieval error. The gather phase (embed + dispatch) runs under
// the configured aggregate deadline; once at least one list is gathered,
// deadline exhaustion degrades instead of failing.
func (p *Pipeline) Search(ctx context.Context, raw string, opts Options) (*bundle.ContextBundle, error) {
	start := time.Now()

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, mserrors.New(mserrors.ErrCodeQueryEmpty, "query text is empty", nil)
	}

	opts = opts.withDefaults(p.cfg)
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}
	log := p.logger.With(slog.String("request_id", opts.RequestID))

	log.Info("search_started",
		slog.String("query", trimmed),
		slog.Int("limit", opts.Limit),
		slog.String("strategy", string(opts.Strategy)),
	)

	key, cacheable := p.cacheKey(ctx, trimmed, opts, log)
	if cacheable {
		if cached := p.cacheGet(ctx, key, log); cached != nil {
			p.record(opts, cached, time.Since(start), true)
			log.Info("search_completed",
				slog.Int("results", cached.Stats.TotalItems),
				slog.Duration("duration", time.Since(start)),
				slog.Bool("cache_hit", true),
			)
			return cached, nil
		}
	}

	pq, err := p.processor.Process(raw)
	if err != nil {
		return nil, err
	}

	// Gather phase: the aggregate deadline bounds embed + dispatch. Later
	// stages resolve against the local store and keep their own per-call
	// timeouts, so a late deadline degrades the gather instead of starving
	// assembly of lists already in hand.
	gatherCtx, cancelGather := context.WithTimeout(ctx, p.cfg.RequestDeadline)
	defer cancelGather()

	ectx, cancelEmbed := context.WithTimeout(gatherCtx, p.cfg.EmbedTimeout)
	vector, err := p.embedder.Embed(ectx, pq.Corrected)
	cancelEmbed()
	if err != nil {
		return nil, mserrors.EmbeddingUnavailable("query embedding failed", err)
	}

	dres, err := p.dispatcher.Dispatch(gatherCtx, vector, pq, DispatchParams{
		Modalities: opts.Modalities,
		Limit:      opts.Limit,
		Threshold:  *opts.Threshold,
		Filters:    opts.Filters,
		Hybrid:     p.cfg.HybridKeyword,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	lists := p.assembleLists(ctx, dres)
	fused := p.fuser.Fuse(lists, opts.Strategy, opts.Weights)
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	items := make([]bundle.RankedItem, len(fused))
	for i, f := range fused {
		items[i] = bundle.RankedItem{
			Record:  f.Record,
			Score:   f.Score,
			Sources: sourceNames(f.Sources),
		}
	}
	ctxBundle := p.builder.Build(pq, items)
	p.annotatePartial(ctxBundle, dres, gatherCtx)

	if cacheable && !ctxBundle.Partial {
		p.cacheSet(ctx, key, ctxBundle, log)
	}

	p.record(opts, ctxBundle, time.Since(start), false)
	log.Info("search_completed",
		slog.Int("results", ctxBundle.Stats.TotalItems),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("partial", ctxBundle.Partial),
	)
	return ctxBundle, nil
}

// assembleLists enriches and deduplicates every gathered list, in
// canonical order: the modality lists first (text, image, video), then
// the keyword list. Failed branches contribute empty lists so fusion
// weights stay aligned with sources.
func (p *Pipeline) assembleLists(ctx context.Context, dres *DispatchResult) []RankedList {
	lists := make([]RankedList, 0, len(dres.Lists)+1)
	for _, m := range store.AllModalities {
		cands, requested := dres.Lists[m]
		if !requested {
			continue
		}
		enriched := p.enricher.Enrich(ctx, cands)
		lists = append(lists, RankedList{
			Source:  SourceForModality(m),
			Results: p.dedup.Apply(enriched),
		})
	}
	if dres.Keyword != nil {
		enriched := p.enricher.Enrich(ctx, dres.Keyword)
		lists = append(lists, RankedList{
			Source:  SourceKeyword,
			Results: p.dedup.Apply(enriched),
		})
	}
	return lists
}

// annotatePartial flags the bundle when some branches failed or the
// gather deadline expired while lists were still usable.
func (p *Pipeline) annotatePartial(b *bundle.ContextBundle, dres *DispatchResult, gatherCtx context.Context) {
	if len(dres.Failed) == 0 {
		return
	}
	b.Partial = true
	for _, branch := range dres.Failed {
		b.Warnings = append(b.Warnings,
			fmt.Sprintf("partial result: %s search unavailable", branch))
	}
	if gatherCtx.Err() != nil {
		b.Warnings = append(b.Warnings,
			"partial result: request deadline expired during gather")
	}
}

// cacheKey derives the bundle cache key. Keys embed the index generation
// so ingest invalidates cached bundles; when the generation cannot be
// read the request simply bypasses the cache.
func (p *Pipeline) cacheKey(ctx context.Context, trimmed string, opts Options, log *slog.Logger) (string, bool) {
	if _, nop := p.bundles.(cache.Nop); nop {
		return "", false
	}
	gen, err := p.content.Generation(ctx)
	if err != nil {
		log.Debug("cache_bypassed",
			slog.String("reason", "generation_unavailable"),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	modalities := make([]string, len(opts.Modalities))
	for i, m := range opts.Modalities {
		modalities[i] = string(m)
	}
	return cache.Key(cache.KeyParams{
		Query:      trimmed,
		Modalities: modalities,
		Limit:      opts.Limit,
		Threshold:  *opts.Threshold,
		Filters:    opts.Filters,
		Strategy:   string(opts.Strategy),
		Weights:    opts.Weights,
		Generation: gen,
	}), true
}

// cacheGet returns the cached bundle, or nil on miss. Cache failures are
// logged and treated as misses; a bundle that no longer decodes is
// evicted.
func (p *Pipeline) cacheGet(ctx context.Context, key string, log *slog.Logger) *bundle.ContextBundle {
	data, err := p.bundles.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Warn("bundle_cache_get_failed", slog.String("error", err.Error()))
		}
		return nil
	}

	var cached bundle.ContextBundle
	if err := json.Unmarshal(data, &cached); err != nil {
		log.Warn("bundle_cache_decode_failed", slog.String("error", err.Error()))
		_ = p.bundles.Delete(ctx, key)
		return nil
	}
	return &cached
}

// cacheSet stores a complete bundle. Failures never fail the request.
func (p *Pipeline) cacheSet(ctx context.Context, key string, b *bundle.ContextBundle, log *slog.Logger) {
	data, err := json.Marshal(b)
	if err != nil {
		log.Warn("bundle_cache_encode_failed", slog.String("error", err.Error()))
		return
	}
	if err := p.bundles.Set(ctx, key, data); err != nil {
		log.Warn("bundle_cache_set_failed", slog.String("error", err.Error()))
	}
}

// record emits one telemetry event per completed request.
func (p *Pipeline) record(opts Options, b *bundle.ContextBundle, latency time.Duration, cacheHit bool) {
	if p.metrics == nil {
		return
	}
	modalities := make([]string, len(opts.Modalities))
	for i, m := range opts.Modalities {
		modalities[i] = string(m)
	}
	p.metrics.Record(telemetry.QueryEvent{
		RequestID:   opts.RequestID,
		Query:       b.Query,
		Intent:      b.Intent,
		Strategy:    string(opts.Strategy),
		Modalities:  modalities,
		ResultCount: b.Stats.TotalItems,
		CacheHit:    cacheHit,
		Partial:     b.Partial,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

func sourceNames(sources []Source) []string {
	if len(sources) == 0 {
		return nil
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return names
}
