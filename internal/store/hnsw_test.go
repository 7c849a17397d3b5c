package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorIndex(t *testing.T, m Modality, dims int) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(m, dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestHNSWIndex_AddAndSearch(t *testing.T) {
	// Given: an empty 4-dimensional text index
	idx := newTestVectorIndex(t, ModalityText, 4)

	// And: vectors a=[1,0,0,0], b=[0,1,0,0], c=[0.9,0.1,0,0]
	err := idx.Add(context.Background(),
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		}, nil)
	require.NoError(t, err)

	// When: searching for [1,0,0,0] with limit 2
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 2, 0, nil)
	require.NoError(t, err)

	// Then: a is first (exact match), c second (similar), b excluded
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)

	// And: scores are similarities in descending order
	assert.Greater(t, results[0].Score, 0.99)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// And: candidates carry the index's modality
	assert.Equal(t, ModalityText, results[0].Modality)
}

func TestHNSWIndex_ThresholdDropsWeakMatches(t *testing.T) {
	// Given: an index with an exact match and an orthogonal vector
	idx := newTestVectorIndex(t, ModalityText, 4)
	err := idx.Add(context.Background(),
		[]string{"exact", "orthogonal"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		}, nil)
	require.NoError(t, err)

	// When: searching with a threshold above the orthogonal score (0.5)
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0.9, nil)
	require.NoError(t, err)

	// Then: only the exact match survives
	require.Len(t, results, 1)
	assert.Equal(t, "exact", results[0].ID)

	// And: raising the threshold is monotonic: no new results appear
	loose, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0.1, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(loose), len(results))
}

func TestHNSWIndex_FiltersRestrictByAttribute(t *testing.T) {
	// Given: a video index holding both videos and keyframes
	idx := newTestVectorIndex(t, ModalityVideo, 4)
	err := idx.Add(context.Background(),
		[]string{"vid1", "kf1", "kf2"},
		[][]float32{
			{1, 0, 0, 0},
			{0.9, 0.1, 0, 0},
			{0.8, 0.2, 0, 0},
		},
		[]map[string]string{
			{"content_type": "video"},
			{"content_type": "video_keyframe"},
			{"content_type": "video_keyframe"},
		})
	require.NoError(t, err)

	// When: searching with a keyframe-only filter
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0,
		map[string][]string{"content_type": {"video_keyframe"}})
	require.NoError(t, err)

	// Then: only keyframes come back, still ordered by similarity
	require.Len(t, results, 2)
	assert.Equal(t, "kf1", results[0].ID)
	assert.Equal(t, "kf2", results[1].ID)

	// And: a multi-value filter admits both types
	results, err = idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0,
		map[string][]string{"content_type": {"video", "video_keyframe"}})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestHNSWIndex_FilterExcludesRecordsMissingAttribute(t *testing.T) {
	// Given: one vector with a year attribute and one without
	idx := newTestVectorIndex(t, ModalityImage, 4)
	err := idx.Add(context.Background(),
		[]string{"dated", "undated"},
		[][]float32{
			{1, 0, 0, 0},
			{0.9, 0.1, 0, 0},
		},
		[]map[string]string{
			{"year": "2023"},
			nil,
		})
	require.NoError(t, err)

	// When: filtering on year
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0,
		map[string][]string{"year": {"2023"}})
	require.NoError(t, err)

	// Then: the undated vector is excluded
	require.Len(t, results, 1)
	assert.Equal(t, "dated", results[0].ID)
}

func TestHNSWIndex_Delete(t *testing.T) {
	// Given: an index with vectors a and b
	idx := newTestVectorIndex(t, ModalityText, 4)
	err := idx.Add(context.Background(),
		[]string{"a", "b"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		}, nil)
	require.NoError(t, err)

	// When: deleting a
	require.NoError(t, idx.Delete(context.Background(), []string{"a"}))

	// Then: a is gone and b remains
	assert.False(t, idx.Contains("a"))
	assert.True(t, idx.Contains("b"))
	assert.Equal(t, 1, idx.Count())

	// And: the node lingers as an orphan until a rebuild
	assert.Equal(t, 1, idx.Orphans())

	// And: searches never return the deleted ID
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0, nil)
	require.NoError(t, err)
	for _, c := range results {
		assert.NotEqual(t, "a", c.ID)
	}
}

func TestHNSWIndex_UpdateReplacesVector(t *testing.T) {
	// Given: vector a at [1,0,0,0]
	idx := newTestVectorIndex(t, ModalityText, 4)
	err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}, nil)
	require.NoError(t, err)

	// When: re-adding a at [0,1,0,0]
	err = idx.Add(context.Background(), []string{"a"}, [][]float32{{0, 1, 0, 0}}, nil)
	require.NoError(t, err)

	// Then: the count does not grow
	assert.Equal(t, 1, idx.Count())

	// And: the new position wins
	results, err := idx.Search(context.Background(), []float32{0, 1, 0, 0}, 1, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Greater(t, results[0].Score, 0.99)
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	// Given: a 4-dimensional index
	idx := newTestVectorIndex(t, ModalityText, 4)

	// When: adding a 3-dimensional vector
	err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}, nil)

	// Then: the typed mismatch error comes back
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	// And: searching with the wrong dimension fails the same way
	_, err = idx.Search(context.Background(), []float32{1, 0}, 5, 0, nil)
	assert.ErrorAs(t, err, &dimErr)
}

func TestHNSWIndex_EmptyIndex(t *testing.T) {
	// Given: an empty index
	idx := newTestVectorIndex(t, ModalityImage, 4)

	// When: searching
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5, 0, nil)

	// Then: no results, no error
	require.NoError(t, err)
	assert.Empty(t, results)

	// And: a non-positive limit also returns nothing
	results, err = idx.Search(context.Background(), []float32{1, 0, 0, 0}, 0, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_Persistence(t *testing.T) {
	// Given: an index with vectors and attributes saved to disk
	tmpDir := t.TempDir()
	indexPath := VectorIndexPath(tmpDir, ModalityVideo)

	idx1, err := NewHNSWIndex(DefaultVectorIndexConfig(ModalityVideo, 4))
	require.NoError(t, err)

	err = idx1.Add(context.Background(),
		[]string{"vid1", "kf1"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		},
		[]map[string]string{
			{"content_type": "video"},
			{"content_type": "video_keyframe"},
		})
	require.NoError(t, err)

	require.NoError(t, idx1.Save(indexPath))
	require.NoError(t, idx1.Close())

	// When: loading into a fresh index
	idx2, err := NewHNSWIndex(DefaultVectorIndexConfig(ModalityVideo, 4))
	require.NoError(t, err)
	defer func() { _ = idx2.Close() }()

	require.NoError(t, idx2.Load(indexPath))

	// Then: contents survive
	assert.Equal(t, 2, idx2.Count())
	assert.True(t, idx2.Contains("vid1"))

	// And: attribute filters still work after the round trip
	results, err := idx2.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0,
		map[string][]string{"content_type": {"video"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid1", results[0].ID)
}

func TestHNSWIndex_SearchIsDeterministic(t *testing.T) {
	// Given: an index with several vectors
	idx := newTestVectorIndex(t, ModalityText, 4)
	err := idx.Add(context.Background(),
		[]string{"a", "b", "c", "d"},
		[][]float32{
			{1, 0, 0, 0},
			{0.9, 0.1, 0, 0},
			{0.5, 0.5, 0, 0},
			{0, 1, 0, 0},
		}, nil)
	require.NoError(t, err)

	// When: running the same search twice
	first, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 3, 0, nil)
	require.NoError(t, err)
	second, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 3, 0, nil)
	require.NoError(t, err)

	// Then: results are identical
	assert.Equal(t, first, second)
}

func TestHNSWIndex_AddDoesNotMutateCallerVector(t *testing.T) {
	// Given: a caller-owned vector
	idx := newTestVectorIndex(t, ModalityText, 4)
	vec := []float32{3, 4, 0, 0}

	// When: adding it (the index normalizes internally)
	err := idx.Add(context.Background(), []string{"a"}, [][]float32{vec}, nil)
	require.NoError(t, err)

	// Then: the caller's slice is untouched
	assert.Equal(t, []float32{3, 4, 0, 0}, vec)
}

func TestReadIndexDimensions(t *testing.T) {
	tmpDir := t.TempDir()
	indexPath := filepath.Join(tmpDir, "vectors-text.hnsw")

	// Given: no saved index
	dims, err := ReadIndexDimensions(indexPath)
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	// When: saving a 4-dimensional index
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(ModalityText, 4))
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}, nil))
	require.NoError(t, idx.Save(indexPath))
	require.NoError(t, idx.Close())

	// Then: the sidecar reports the dimension
	dims, err = ReadIndexDimensions(indexPath)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}

func TestHNSWIndex_ClosedIndexRejectsOperations(t *testing.T) {
	// Given: a closed index
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(ModalityText, 4))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// Then: mutations and queries fail cleanly
	err = idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}, nil)
	assert.Error(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0, 0}, 1, 0, nil)
	assert.Error(t, err)

	assert.Equal(t, 0, idx.Count())
	assert.False(t, idx.Contains("a"))

	// And: closing again is a no-op
	assert.NoError(t, idx.Close())
}

func TestMatchesFilters(t *testing.T) {
	attrs := map[string]string{"content_type": "video", "year": "2023"}

	// No filters match everything.
	assert.True(t, matchesFilters(attrs, nil))
	assert.True(t, matchesFilters(nil, nil))

	// Single-key match.
	assert.True(t, matchesFilters(attrs, map[string][]string{"year": {"2023"}}))

	// Value not in allowed set.
	assert.False(t, matchesFilters(attrs, map[string][]string{"year": {"2024"}}))

	// All keys must match.
	assert.False(t, matchesFilters(attrs, map[string][]string{
		"year":         {"2023"},
		"content_type": {"image"},
	}))

	// Missing attribute fails the filter.
	assert.False(t, matchesFilters(nil, map[string][]string{"year": {"2023"}}))
}

func TestNewHNSWIndex_RejectsBadDimensions(t *testing.T) {
	_, err := NewHNSWIndex(VectorIndexConfig{Modality: ModalityText, Dimensions: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}
