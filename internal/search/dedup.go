package search

import (
	"log/slog"
	"strings"
)

// DefaultDedupThreshold is the word-overlap ratio at or above which two
// results in one list count as near-duplicates.
const DefaultDedupThreshold = 0.8

// DedupFilter drops near-duplicate results within one ranked list. It
// runs per list, between enrichment and fusion, so fusion tie-breaking
// never interleaves with deduplication.
type DedupFilter struct {
	threshold float64
	logger    *slog.Logger
}

// NewDedupFilter creates a filter with the given overlap threshold.
// A threshold of 0 or less disables the stage.
func NewDedupFilter(threshold float64, logger *slog.Logger) *DedupFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupFilter{threshold: threshold, logger: logger}
}

// Apply returns the list with near-duplicates removed: an item whose
// word-overlap ratio against ANY earlier kept item meets the threshold is
// dropped, so the earliest (highest ranked) duplicate survives. Rank
// order is otherwise untouched.
func (f *DedupFilter) Apply(list []*EnrichedResult) []*EnrichedResult {
	if f.threshold <= 0 || len(list) < 2 {
		return list
	}

	kept := make([]*EnrichedResult, 0, len(list))
	keptSets := make([]map[string]struct{}, 0, len(list))

	for _, item := range list {
		words := wordSet(item.Record.Body())

		dup := false
		for i, ks := range keptSets {
			if overlapRatio(words, ks) >= f.threshold {
				f.logger.Debug("near_duplicate_dropped",
					slog.String("id", item.Record.ID),
					slog.String("kept_id", kept[i].Record.ID),
				)
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		kept = append(kept, item)
		keptSets = append(keptSets, words)
	}

	return kept
}

// wordSet lowercases and splits text into its set of distinct words.
func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		set[w] = struct{}{}
	}
	return set
}

// overlapRatio is |a ∩ b| / min(|a|, |b|). Two empty sets do not overlap:
// records with no comparable text never count as duplicates of each other.
func overlapRatio(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}

	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(small))
}
