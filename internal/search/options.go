package search

import (
	"fmt"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// Options are per-request overrides of the pipeline configuration. The
// zero value means "use the configured defaults" for every field.
type Options struct {
	// Limit is the maximum number of fused results the bundle draws from.
	// 0 uses the configured default; values over the maximum clamp.
	Limit int

	// Modalities restricts the dispatch fan-out. Empty dispatches every
	// modality with an index.
	Modalities []store.Modality

	// Threshold overrides the configured similarity threshold. Nil keeps
	// the default; 0 is a valid override meaning "no floor".
	Threshold *float64

	// Filters are attribute predicates every vector hit must satisfy,
	// e.g. {"year": ["2023", "2024"]}. Filter hints the query processor
	// extracts are merged in by the dispatcher.
	Filters map[string][]string

	// Strategy overrides the configured fusion strategy.
	Strategy Strategy

	// Weights override the configured per-list fusion weights.
	Weights map[string]float64

	// RequestID threads an external correlation id through logs and
	// telemetry. Empty means the pipeline assigns one.
	RequestID string
}

// withDefaults resolves the zero fields of opts against cfg and clamps
// the limit. Returned options are fully populated.
func (o Options) withDefaults(cfg Config) Options {
	if o.Limit <= 0 {
		o.Limit = cfg.DefaultLimit
	}
	if o.Limit > cfg.MaxLimit {
		o.Limit = cfg.MaxLimit
	}
	if len(o.Modalities) == 0 {
		o.Modalities = store.AllModalities
	}
	if o.Threshold == nil {
		t := cfg.SimilarityThreshold
		o.Threshold = &t
	}
	if o.Strategy == "" {
		o.Strategy = cfg.Strategy
	}
	if o.Weights == nil {
		o.Weights = cfg.Weights
	}
	return o
}

// validate rejects option combinations no collaborator should see.
func (o Options) validate() error {
	seen := make(map[store.Modality]struct{}, len(o.Modalities))
	for _, m := range o.Modalities {
		if _, err := store.ParseModality(string(m)); err != nil {
			return mserrors.New(mserrors.ErrCodeInvalidModality, err.Error(), nil)
		}
		if _, dup := seen[m]; dup {
			return mserrors.New(mserrors.ErrCodeInvalidModality,
				fmt.Sprintf("modality %q requested twice", m), nil)
		}
		seen[m] = struct{}{}
	}
	if o.Threshold != nil && (*o.Threshold < 0 || *o.Threshold > 1) {
		return mserrors.New(mserrors.ErrCodeInvalidQuery,
			fmt.Sprintf("similarity threshold %.3f out of range [0,1]", *o.Threshold), nil)
	}
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return mserrors.New(mserrors.ErrCodeInvalidQuery, err.Error(), nil)
	}
	for src, w := range o.Weights {
		if w < 0 {
			return mserrors.New(mserrors.ErrCodeInvalidQuery,
				fmt.Sprintf("fusion weight for %q is negative (%.3f)", src, w), nil)
		}
	}
	return nil
}

// weightFor resolves the fusion weight of one ranked list. Lists without
// an entry weigh 1.0 so an unweighted RRF run needs no weights map.
func weightFor(weights map[string]float64, src Source) float64 {
	if weights == nil {
		return 1.0
	}
	w, ok := weights[string(src)]
	if !ok {
		return 1.0
	}
	return w
}
