package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// Enricher resolves raw candidates into typed content records, one store
// lookup per candidate through a bounded worker pool. Output order equals
// input order; candidates that cannot be resolved cleanly are dropped,
// never surfaced half-populated.
type Enricher struct {
	store   store.ContentStore
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithEnrichWorkers bounds concurrent lookups.
func WithEnrichWorkers(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithEnrichTimeout bounds each lookup.
func WithEnrichTimeout(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithEnricherLogger sets the logger used for dropped candidates.
func WithEnricherLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnricher creates an Enricher over the content store.
func NewEnricher(cs store.ContentStore, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		store:   cs,
		workers: DefaultConfig().EnrichWorkers,
		timeout: DefaultConfig().EnrichTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich resolves each candidate to its content record. Workers write
// into per-candidate slots so concurrency never reorders results; the
// slots are compacted afterwards, dropping unresolvable candidates
// (unknown id, unknown modality, malformed payload) with a debug log.
func (e *Enricher) Enrich(ctx context.Context, candidates []*store.Candidate) []*EnrichedResult {
	if len(candidates) == 0 {
		return nil
	}

	slots := make([]*EnrichedResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, c := range candidates {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, e.timeout)
			defer cancel()

			rec, err := e.store.Get(lctx, c.ID)
			if err != nil {
				if mserrors.IsNotFound(err) {
					e.logger.Debug("candidate_dropped",
						slog.String("id", c.ID),
						slog.String("reason", "not_found"),
					)
				} else {
					e.logger.Debug("candidate_dropped",
						slog.String("id", c.ID),
						slog.String("reason", "lookup_failed"),
						slog.String("error", err.Error()),
					)
				}
				return nil
			}
			if err := rec.Validate(); err != nil {
				e.logger.Debug("candidate_dropped",
					slog.String("id", c.ID),
					slog.String("reason", "malformed_record"),
					slog.String("error", err.Error()),
				)
				return nil
			}

			slots[i] = &EnrichedResult{Candidate: c, Record: rec}
			return nil
		})
	}

	// Workers always return nil; Wait only propagates caller cancellation,
	// which leaves the affected slots empty.
	_ = g.Wait()

	results := make([]*EnrichedResult, 0, len(candidates))
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}
	return results
}
