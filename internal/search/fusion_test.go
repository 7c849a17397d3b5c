package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedList(src Source, results ...*EnrichedResult) RankedList {
	return RankedList{Source: src, Results: results}
}

func fusedIDs(results []*FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// =============================================================================
// RRF
// =============================================================================

func TestFuse_RRF_ReferenceScores(t *testing.T) {
	// Given: listA = [A, B, C], listB = [B, C, D], k = 60
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")
	c := textRecord("C", "charlie")
	d := textRecord("D", "delta")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.9), enriched(b, 0.8), enriched(c, 0.7)),
		rankedList(SourceKeyword, enriched(b, 12.0), enriched(c, 8.0), enriched(d, 3.0)),
	}

	fused := NewFuser().Fuse(lists, StrategyRRF, nil)
	require.Len(t, fused, 4)

	byID := make(map[string]*FusedResult)
	for _, r := range fused {
		byID[r.ID] = r
	}

	// B: rank 1 in listA, rank 0 in listB.
	assert.InDelta(t, 1.0/62+1.0/61, byID["B"].Score, 1e-12)
	// A: rank 0 in listA only.
	assert.InDelta(t, 1.0/61, byID["A"].Score, 1e-12)
	// C: rank 2 in listA, rank 1 in listB.
	assert.InDelta(t, 1.0/63+1.0/62, byID["C"].Score, 1e-12)
	// D: rank 2 in listB only.
	assert.InDelta(t, 1.0/63, byID["D"].Score, 1e-12)

	// Dual-list members outrank every single-list member at a later rank.
	assert.Equal(t, []string{"B", "C", "A", "D"}, fusedIDs(fused))
}

func TestFuse_Completeness_EveryInputOnceNonNegative(t *testing.T) {
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")
	c := textRecord("C", "charlie")
	d := textRecord("D", "delta")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.9), enriched(b, 0.8), enriched(c, 0.7)),
		rankedList(SourceKeyword, enriched(b, 5.0), enriched(d, 4.0)),
	}

	for _, strategy := range []Strategy{StrategyRRF, StrategyWeighted} {
		t.Run(string(strategy), func(t *testing.T) {
			fused := NewFuser().Fuse(lists, strategy, nil)

			require.Len(t, fused, 4, "union of both lists, no drops")
			seen := make(map[string]int)
			for _, r := range fused {
				seen[r.ID]++
				assert.GreaterOrEqual(t, r.Score, 0.0)
			}
			for _, id := range []string{"A", "B", "C", "D"} {
				assert.Equal(t, 1, seen[id], "id %s must appear exactly once", id)
			}
		})
	}
}

func TestFuse_DuplicateAcrossLists_KeepsFirstListPayload(t *testing.T) {
	// The same identifier carries different payload pointers per list;
	// the merged result must keep the one from the first list.
	first := textRecord("X", "from the text list")
	second := textRecord("X", "from the keyword list")

	lists := []RankedList{
		rankedList(SourceText, enriched(first, 0.9)),
		rankedList(SourceKeyword, enriched(second, 7.0)),
	}

	fused := NewFuser().Fuse(lists, StrategyRRF, nil)
	require.Len(t, fused, 1)
	assert.Same(t, first, fused[0].Record)
	assert.Equal(t, []Source{SourceText, SourceKeyword}, fused[0].Sources)
	assert.Equal(t, 0, fused[0].BestRank)
}

func TestFuse_EmptyLists(t *testing.T) {
	a := textRecord("A", "alpha")

	t.Run("one empty list", func(t *testing.T) {
		lists := []RankedList{
			rankedList(SourceText, enriched(a, 0.9)),
			rankedList(SourceKeyword),
		}
		fused := NewFuser().Fuse(lists, StrategyRRF, nil)
		require.Len(t, fused, 1)
		assert.Equal(t, "A", fused[0].ID)
	})

	t.Run("all lists empty", func(t *testing.T) {
		lists := []RankedList{rankedList(SourceText), rankedList(SourceKeyword)}
		fused := NewFuser().Fuse(lists, StrategyRRF, nil)
		assert.Empty(t, fused)
	})

	t.Run("no lists", func(t *testing.T) {
		assert.Empty(t, NewFuser().Fuse(nil, StrategyRRF, nil))
	})
}

func TestFuse_TieBreak_BestRankThenDiscoveryOrder(t *testing.T) {
	// A and B tie on score: each holds rank 0 in one list and is absent
	// from the other. Best ranks tie too, so discovery order (A first)
	// decides. C holds rank 1 twice; its summed score beats a single
	// rank-1 contribution but its best rank is worse than A's and B's.
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")
	c := textRecord("C", "charlie")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.9), enriched(c, 0.8)),
		rankedList(SourceKeyword, enriched(b, 9.0), enriched(c, 8.0)),
	}

	fused := NewFuser().Fuse(lists, StrategyRRF, nil)
	require.Len(t, fused, 3)

	// C sums 2/62, beating A and B at 1/61 each.
	assert.Equal(t, []string{"C", "A", "B"}, fusedIDs(fused))
	assert.Equal(t, 1, fused[0].BestRank)
	assert.Equal(t, 0, fused[1].BestRank)
}

func TestFuse_Determinism_RepeatedRunsIdentical(t *testing.T) {
	// Enough entries that map iteration order would scramble ties if it
	// leaked into the output.
	var listA, listB []*EnrichedResult
	for i := 0; i < 40; i++ {
		listA = append(listA, enriched(textRecord(fmt.Sprintf("a%02d", i), "same body"), 0.5))
		listB = append(listB, enriched(textRecord(fmt.Sprintf("b%02d", i), "same body"), 0.5))
	}
	lists := []RankedList{
		rankedList(SourceText, listA...),
		rankedList(SourceKeyword, listB...),
	}

	reference := fusedIDs(NewFuser().Fuse(lists, StrategyRRF, nil))
	for run := 0; run < 20; run++ {
		assert.Equal(t, reference, fusedIDs(NewFuser().Fuse(lists, StrategyRRF, nil)), "run %d", run)
	}
}

func TestFuse_RRF_WeightsScaleContributions(t *testing.T) {
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.9)),
		rankedList(SourceKeyword, enriched(b, 9.0)),
	}
	weights := map[string]float64{"text": 1.0, "keyword": 0.25}

	fused := NewFuser().Fuse(lists, StrategyRRF, weights)
	require.Len(t, fused, 2)
	assert.Equal(t, "A", fused[0].ID)
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 0.25/61, fused[1].Score, 1e-12)
}

func TestNewFuserWithK_NonPositiveFallsBack(t *testing.T) {
	assert.Equal(t, DefaultRRFConstant, NewFuserWithK(0).K)
	assert.Equal(t, DefaultRRFConstant, NewFuserWithK(-5).K)
	assert.Equal(t, 10, NewFuserWithK(10).K)
}

// =============================================================================
// Weighted fusion
// =============================================================================

func TestFuse_Weighted_MinMaxNormalization(t *testing.T) {
	// listA scores 0.9 / 0.5 / 0.1 normalize to 1.0 / 0.5 / 0.0.
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")
	c := textRecord("C", "charlie")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.9), enriched(b, 0.5), enriched(c, 0.1)),
	}

	fused := NewFuser().Fuse(lists, StrategyWeighted, map[string]float64{"text": 2.0})
	require.Len(t, fused, 3)
	assert.Equal(t, []string{"A", "B", "C"}, fusedIDs(fused))
	assert.InDelta(t, 2.0, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0, fused[1].Score, 1e-12)
	assert.InDelta(t, 0.0, fused[2].Score, 1e-12)
}

func TestFuse_Weighted_SumsAcrossLists(t *testing.T) {
	// B is mid-ranked in the text list (norm 0.5) and top of the keyword
	// list (norm 1.0); weighted sum puts it first.
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")
	c := textRecord("C", "charlie")
	d := textRecord("D", "delta")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.9), enriched(b, 0.5), enriched(c, 0.1)),
		rankedList(SourceKeyword, enriched(b, 10.0), enriched(d, 2.0)),
	}
	weights := map[string]float64{"text": 1.0, "keyword": 0.5}

	fused := NewFuser().Fuse(lists, StrategyWeighted, weights)
	require.Len(t, fused, 4)

	byID := make(map[string]float64)
	for _, r := range fused {
		byID[r.ID] = r.Score
	}
	assert.InDelta(t, 1.0, byID["A"], 1e-12)
	assert.InDelta(t, 0.5+0.5, byID["B"], 1e-12)
	assert.InDelta(t, 0.0, byID["C"], 1e-12)
	assert.InDelta(t, 0.0, byID["D"], 1e-12)
	assert.Equal(t, "B", fused[0].ID)
}

func TestFuse_Weighted_UniformScoresNormalizeToOne(t *testing.T) {
	// A list whose scores are all equal: every member is the maximum.
	a := textRecord("A", "alpha")
	b := textRecord("B", "bravo")

	lists := []RankedList{
		rankedList(SourceText, enriched(a, 0.42), enriched(b, 0.42)),
	}

	fused := NewFuser().Fuse(lists, StrategyWeighted, nil)
	require.Len(t, fused, 2)
	assert.InDelta(t, 1.0, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0, fused[1].Score, 1e-12)
	// Score tie and best-rank differ: rank 0 first.
	assert.Equal(t, []string{"A", "B"}, fusedIDs(fused))
}

func TestFuse_MergesMatchedTerms(t *testing.T) {
	rec := textRecord("X", "body")
	vec := enriched(rec, 0.9)
	kw := enriched(rec, 7.0)
	kw.Candidate.MatchedTerms = []string{"insurance", "car"}

	lists := []RankedList{
		rankedList(SourceText, vec),
		rankedList(SourceKeyword, kw),
	}

	fused := NewFuser().Fuse(lists, StrategyRRF, nil)
	require.Len(t, fused, 1)
	assert.Equal(t, []string{"insurance", "car"}, fused[0].MatchedTerms)
	assert.True(t, fused[0].InList(SourceKeyword))
	assert.True(t, fused[0].InList(SourceText))
	assert.False(t, fused[0].InList(SourceImage))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"rrf", StrategyRRF, false},
		{"weighted", StrategyWeighted, false},
		{"", StrategyRRF, false},
		{"borda", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
