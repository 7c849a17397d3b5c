package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. Higher
// values flatten the rank curve, reducing the dominance of top positions.
const DefaultRRFConstant = 60

// Fuser merges independently ranked lists into one ordering. Stateless
// and safe for concurrent use.
type Fuser struct {
	// K is the RRF smoothing constant.
	K int
}

// NewFuser creates a Fuser with the default RRF constant.
func NewFuser() *Fuser {
	return NewFuserWithK(DefaultRRFConstant)
}

// NewFuserWithK creates a Fuser with a custom RRF constant. Non-positive
// values fall back to the default.
func NewFuserWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{K: k}
}

// fusedEntry is the accumulator cell for one identifier: fused score,
// best contributing rank, and a membership bitset over list positions.
// Entries live in a map for O(1) lookup and in an insertion-order slice
// so output never depends on map iteration order.
type fusedEntry struct {
	result   *FusedResult
	lists    uint32
	bestRank int
}

// accumulator merges list contributions per identifier while recording
// discovery order.
type accumulator struct {
	byID  map[string]*fusedEntry
	order []*fusedEntry
}

func newAccumulator() *accumulator {
	return &accumulator{byID: make(map[string]*fusedEntry)}
}

// visit returns the entry for item's identifier, creating it on first
// sight. The first appearance pins the payload; later appearances only
// contribute score, rank, and membership.
func (a *accumulator) visit(item *EnrichedResult, listPos int, rank int) *fusedEntry {
	id := item.Record.ID

	e, ok := a.byID[id]
	if !ok {
		e = &fusedEntry{
			result: &FusedResult{
				ID:     id,
				Record: item.Record,
			},
			bestRank: rank,
		}
		a.byID[id] = e
		a.order = append(a.order, e)
	}

	if rank < e.bestRank {
		e.bestRank = rank
	}
	e.lists |= 1 << uint(listPos)

	for _, term := range item.Candidate.MatchedTerms {
		if !containsString(e.result.MatchedTerms, term) {
			e.result.MatchedTerms = append(e.result.MatchedTerms, term)
		}
	}

	return e
}

// Fuse merges the ranked lists under the given strategy. Any list may be
// empty. Every input identifier appears in the output exactly once with a
// non-negative score; duplicate identifiers across lists merge, keeping
// the payload from the first list they appear in.
//
// Ordering is descending fused score; ties break by best (lowest)
// contributing rank in any list, then by discovery order across the lists
// as given.
func (f *Fuser) Fuse(lists []RankedList, strategy Strategy, weights map[string]float64) []*FusedResult {
	acc := newAccumulator()

	switch strategy {
	case StrategyWeighted:
		f.accumulateWeighted(acc, lists, weights)
	default:
		f.accumulateRRF(acc, lists, weights)
	}

	entries := acc.order
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].result.Score != entries[j].result.Score {
			return entries[i].result.Score > entries[j].result.Score
		}
		if entries[i].bestRank != entries[j].bestRank {
			return entries[i].bestRank < entries[j].bestRank
		}
		// Full tie: stable sort keeps discovery order.
		return false
	})

	results := make([]*FusedResult, len(entries))
	for i, e := range entries {
		e.result.BestRank = e.bestRank
		e.result.Sources = sourcesFromBitset(lists, e.lists)
		results[i] = e.result
	}
	return results
}

// accumulateRRF sums reciprocal-rank contributions: a result at 0-indexed
// rank r in a list with weight w contributes w / (k + r + 1). Identifiers
// in only one list receive no penalty for their absence elsewhere; the
// missing list simply contributes nothing.
func (f *Fuser) accumulateRRF(acc *accumulator, lists []RankedList, weights map[string]float64) {
	for li, list := range lists {
		w := weightFor(weights, list.Source)
		for rank, item := range list.Results {
			e := acc.visit(item, li, rank)
			e.result.Score += w / float64(f.K+rank+1)
		}
	}
}

// accumulateWeighted sums per-list min-max normalized native scores
// multiplied by the list weight. A list whose scores are all equal
// normalizes to 1.0 for every member.
func (f *Fuser) accumulateWeighted(acc *accumulator, lists []RankedList, weights map[string]float64) {
	for li, list := range lists {
		w := weightFor(weights, list.Source)
		lo, hi := scoreRange(list.Results)
		for rank, item := range list.Results {
			e := acc.visit(item, li, rank)

			norm := 1.0
			if hi > lo {
				norm = (item.Candidate.Score - lo) / (hi - lo)
			}
			e.result.Score += w * norm
		}
	}
}

// scoreRange returns the minimum and maximum native scores in a list.
func scoreRange(results []*EnrichedResult) (lo, hi float64) {
	for i, r := range results {
		s := r.Candidate.Score
		if i == 0 || s < lo {
			lo = s
		}
		if i == 0 || s > hi {
			hi = s
		}
	}
	return lo, hi
}

// sourcesFromBitset expands a membership bitset into source labels in
// list order.
func sourcesFromBitset(lists []RankedList, bits uint32) []Source {
	sources := make([]Source, 0, len(lists))
	for i, list := range lists {
		if bits&(1<<uint(i)) != 0 {
			sources = append(sources, list.Source)
		}
	}
	return sources
}
