// Package search runs the retrieval pipeline: one query vector dispatched
// across per-modality vector indexes (plus an optional keyword search over
// text), raw hits enriched into typed content records, near-duplicates
// dropped, and the ranked lists fused into a single ordering with
// Reciprocal Rank Fusion or weighted score fusion.
package search

import (
	"fmt"
	"time"

	"github.com/mosaicsearch/mosaic/internal/store"
)

// Source labels one ranked list entering fusion. The three modality
// sources are vector searches; the keyword source is the BM25 list the
// dispatcher gathers alongside the text modality in hybrid mode.
type Source string

const (
	SourceText    Source = "text"
	SourceImage   Source = "image"
	SourceVideo   Source = "video"
	SourceKeyword Source = "keyword"
)

// SourceForModality maps a modality to its ranked-list label.
func SourceForModality(m store.Modality) Source {
	return Source(m)
}

// Strategy selects how ranked lists merge.
type Strategy string

const (
	// StrategyRRF is rank-based Reciprocal Rank Fusion. It is the default
	// because modality similarity scores and BM25 scores are not on a
	// shared scale.
	StrategyRRF Strategy = "rrf"

	// StrategyWeighted min-max normalizes each list's native scores to
	// [0,1], multiplies by the per-list weight, and sums per identifier.
	StrategyWeighted Strategy = "weighted"
)

// ParseStrategy validates a fusion strategy name. Empty input selects the
// default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRRF, StrategyWeighted:
		return Strategy(s), nil
	case "":
		return StrategyRRF, nil
	}
	return "", fmt.Errorf("unknown fusion strategy %q (want rrf or weighted)", s)
}

// EnrichedResult pairs a raw candidate with its resolved content record.
// Both fields are always non-nil: candidates that fail to resolve are
// dropped at the enrichment boundary, never carried half-populated.
type EnrichedResult struct {
	Candidate *store.Candidate
	Record    *store.ContentRecord
}

// RankedList is one independently ranked list entering fusion, in
// descending relevance order as its search produced it.
type RankedList struct {
	Source  Source
	Results []*EnrichedResult
}

// FusedResult is one identifier's merged standing across all lists.
type FusedResult struct {
	// ID is the content record identifier.
	ID string

	// Score is the fused score: summed RRF contributions, or summed
	// weighted normalized scores, depending on strategy.
	Score float64

	// BestRank is the best (lowest, 0-indexed) rank this identifier held
	// in any contributing list.
	BestRank int

	// Sources lists the ranked lists the identifier appeared in, in list
	// order.
	Sources []Source

	// Record is the payload from the first list the identifier appeared
	// in.
	Record *store.ContentRecord

	// MatchedTerms merges keyword match terms across appearances.
	MatchedTerms []string
}

// InList reports whether the result appeared in the named list.
func (r *FusedResult) InList(s Source) bool {
	for _, src := range r.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// Config holds the pipeline's tuning knobs. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// DefaultLimit is the result count when the caller passes none.
	DefaultLimit int

	// MaxLimit caps the per-request result count; larger requests clamp.
	MaxLimit int

	// SimilarityThreshold is the minimum cosine similarity a vector hit
	// must reach, shared by every modality search.
	SimilarityThreshold float64

	// Strategy is the default fusion strategy.
	Strategy Strategy

	// Weights are the default per-list fusion weights keyed by Source
	// name. Missing sources weigh 1.0.
	Weights map[string]float64

	// RRFConstant is the RRF smoothing parameter k.
	RRFConstant int

	// HybridKeyword also gathers a BM25 keyword list over text content
	// whenever the text modality is dispatched.
	HybridKeyword bool

	// RequestDeadline bounds the gather phase (embed + dispatch) of one
	// request. Exhaustion after at least one list is gathered degrades to
	// a partial bundle rather than an error.
	RequestDeadline time.Duration

	// SearchTimeout bounds each per-modality index call.
	SearchTimeout time.Duration

	// EmbedTimeout bounds the embedding gateway call.
	EmbedTimeout time.Duration

	// EnrichTimeout bounds each content record lookup.
	EnrichTimeout time.Duration

	// EnrichWorkers bounds concurrent enrichment lookups.
	EnrichWorkers int

	// DedupThreshold is the word-overlap ratio at or above which two
	// results in one list count as near-duplicates. 0 disables the stage.
	DedupThreshold float64
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        10,
		MaxLimit:            50,
		SimilarityThreshold: 0.25,
		Strategy:            StrategyRRF,
		RRFConstant:         DefaultRRFConstant,
		HybridKeyword:       true,
		RequestDeadline:     5 * time.Second,
		SearchTimeout:       1500 * time.Millisecond,
		EmbedTimeout:        2 * time.Second,
		EnrichTimeout:       500 * time.Millisecond,
		EnrichWorkers:       8,
		DedupThreshold:      DefaultDedupThreshold,
	}
}
