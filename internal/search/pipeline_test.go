package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicsearch/mosaic/internal/cache"
	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// pipelineEnv bundles a pipeline with its fakes so tests can assert on
// collaborator call counts.
type pipelineEnv struct {
	pipeline *Pipeline
	embedder *fakeEmbedder
	content  *fakeContentStore
	text     *fakeVectorIndex
	image    *fakeVectorIndex
	video    *fakeVectorIndex
	keyword  *fakeKeywordIndex
}

func newPipelineEnv(t *testing.T, cfg Config, opts ...PipelineOption) *pipelineEnv {
	t.Helper()

	env := &pipelineEnv{
		embedder: &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}},
		content: newFakeContentStore(
			textRecord("t1", "solar panel installation basics"),
			textRecord("t2", "grid connection requirements overview"),
			imageRecord("i1", "rooftop array at noon"),
			videoRecord("v1", "walkthrough of inverter wiring"),
		),
		text: &fakeVectorIndex{hits: []*store.Candidate{
			candidate("t1", store.ModalityText, 0.92),
			candidate("t2", store.ModalityText, 0.81),
		}},
		image: &fakeVectorIndex{hits: []*store.Candidate{
			candidate("i1", store.ModalityImage, 0.77),
		}},
		video: &fakeVectorIndex{hits: []*store.Candidate{
			candidate("v1", store.ModalityVideo, 0.7),
		}},
		keyword: &fakeKeywordIndex{},
	}

	var kw store.KeywordIndex
	if cfg.HybridKeyword {
		kw = env.keyword
	}
	dispatcher := NewDispatcher(map[store.Modality]store.VectorIndex{
		store.ModalityText:  env.text,
		store.ModalityImage: env.image,
		store.ModalityVideo: env.video,
	}, kw)

	p, err := NewPipeline(
		query.NewProcessor(),
		env.embedder,
		dispatcher,
		NewEnricher(env.content),
		env.content,
		cfg,
		opts...,
	)
	require.NoError(t, err)
	env.pipeline = p
	return env
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.HybridKeyword = false
	return cfg
}

func TestNewPipeline_RejectsNilDependencies(t *testing.T) {
	cs := newFakeContentStore()
	emb := &fakeEmbedder{vector: []float32{0.1}}
	disp := NewDispatcher(nil, nil)
	enr := NewEnricher(cs)
	cfg := quietConfig()

	_, err := NewPipeline(nil, emb, disp, enr, cs, cfg)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewPipeline(query.NewProcessor(), nil, disp, enr, cs, cfg)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewPipeline(query.NewProcessor(), emb, nil, enr, cs, cfg)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewPipeline(query.NewProcessor(), emb, disp, nil, cs, cfg)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewPipeline(query.NewProcessor(), emb, disp, enr, nil, cfg)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestSearch_EmptyQuery_FailsBeforeAnyCollaboratorCall(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())

	b, err := env.pipeline.Search(context.Background(), "   \t ", Options{})

	require.Error(t, err)
	assert.Nil(t, b)
	assert.Equal(t, mserrors.ErrCodeQueryEmpty, mserrors.GetCode(err))

	assert.Equal(t, int64(0), env.embedder.calls.Load())
	assert.Equal(t, 0, env.text.searchCalls())
	assert.Equal(t, int64(0), env.content.getCalls.Load())
}

func TestSearch_InvalidOptions_FailBeforeAnyCollaboratorCall(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())

	_, err := env.pipeline.Search(context.Background(), "solar panels", Options{
		Modalities: []store.Modality{"audio"},
	})

	require.Error(t, err)
	assert.Equal(t, mserrors.ErrCodeInvalidModality, mserrors.GetCode(err))
	assert.Equal(t, int64(0), env.embedder.calls.Load())
}

func TestSearch_EmbeddingFailure_IsFatal(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())
	env.embedder.err = errors.New("connection refused")

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})

	require.Error(t, err)
	assert.Nil(t, b, "no partial bundle without a query vector")
	assert.Equal(t, mserrors.ErrCodeEmbeddingUnavailable, mserrors.GetCode(err))
	assert.Equal(t, 0, env.text.searchCalls(), "no dispatch without a vector")
}

func TestSearch_HappyPath_AllModalities(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.False(t, b.Partial)
	assert.Empty(t, b.Warnings)
	assert.Equal(t, 4, b.Stats.TotalItems)
	assert.Equal(t, 3, b.Stats.Sections)

	// Sections come in fixed type order.
	require.Len(t, b.Sections, 3)
	assert.Equal(t, store.ContentTypeTextChunk, b.Sections[0].ContentType)
	assert.Equal(t, store.ContentTypeImage, b.Sections[1].ContentType)
	assert.Equal(t, store.ContentTypeVideo, b.Sections[2].ContentType)

	assert.Len(t, b.Citations, 4)
	assert.Contains(t, b.Narrative, `Results for "solar panel installation"`)
}

func TestSearch_PartialScenario_OneModalityDown(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())
	env.image.err = errors.New("hnsw file locked")

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err, "a single failed modality must not fail the request")
	require.NotNil(t, b)

	assert.True(t, b.Partial)
	require.NotEmpty(t, b.Warnings)
	assert.Contains(t, b.Warnings[0], "image")

	// Only text and video sections remain.
	require.Len(t, b.Sections, 2)
	assert.Equal(t, store.ContentTypeTextChunk, b.Sections[0].ContentType)
	assert.Equal(t, store.ContentTypeVideo, b.Sections[1].ContentType)
}

func TestSearch_AllModalitiesDown_RetrievalUnavailable(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())
	env.text.err = errors.New("down")
	env.image.err = errors.New("down")
	env.video.err = errors.New("down")

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})

	require.Error(t, err)
	assert.Nil(t, b)
	assert.Equal(t, mserrors.ErrCodeRetrievalUnavailable, mserrors.GetCode(err))
}

func TestSearch_LimitBoundsFusedResults(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Stats.TotalItems)
}

func TestSearch_HybridKeywordHitsEnterFusion(t *testing.T) {
	cfg := DefaultConfig()
	env := newPipelineEnv(t, cfg)
	env.keyword.hits = []*store.Candidate{
		{ID: "t2", Modality: store.ModalityText, Score: 9.4, MatchedTerms: []string{"grid"}},
	}

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, b.Sections)

	// t2 appears in both the text vector list and the keyword list; the
	// consensus lifts it above t1 which only the vector list carries.
	textSection := b.Sections[0]
	require.Equal(t, store.ContentTypeTextChunk, textSection.ContentType)
	require.NotEmpty(t, textSection.Items)
	assert.Equal(t, "t2", textSection.Items[0].ID)
	assert.Contains(t, textSection.Items[0].Sources, "keyword")
	assert.Contains(t, textSection.Items[0].Sources, "text")
}

func TestSearch_CacheHitShortCircuitsPipeline(t *testing.T) {
	mem := cache.NewMemoryCache(64, time.Minute)
	env := newPipelineEnv(t, quietConfig(), WithBundleCache(mem))

	first, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, env.text.searchCalls())

	second, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, env.text.searchCalls(), "second request must be served from cache")
	assert.Equal(t, int64(1), env.embedder.calls.Load())
	assert.Equal(t, first, second, "cached bundle equals the fresh computation")
}

func TestSearch_DifferentOptionsMissTheCache(t *testing.T) {
	mem := cache.NewMemoryCache(64, time.Minute)
	env := newPipelineEnv(t, quietConfig(), WithBundleCache(mem))

	_, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{Limit: 5})
	require.NoError(t, err)
	_, err = env.pipeline.Search(context.Background(), "solar panel installation", Options{Limit: 6})
	require.NoError(t, err)

	assert.Equal(t, 2, env.text.searchCalls(), "distinct limits key distinct cache entries")
}

func TestSearch_GenerationBumpInvalidatesCache(t *testing.T) {
	mem := cache.NewMemoryCache(64, time.Minute)
	env := newPipelineEnv(t, quietConfig(), WithBundleCache(mem))

	_, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)

	_, err = env.content.BumpGeneration(context.Background())
	require.NoError(t, err)

	_, err = env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, env.text.searchCalls(), "an ingest run must invalidate cached bundles")
}

func TestSearch_PartialBundlesAreNotCached(t *testing.T) {
	mem := cache.NewMemoryCache(64, time.Minute)
	env := newPipelineEnv(t, quietConfig(), WithBundleCache(mem))
	env.image.err = errors.New("down")

	for i := 0; i < 2; i++ {
		b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
		require.NoError(t, err)
		assert.True(t, b.Partial)
	}

	assert.Equal(t, 2, env.text.searchCalls(), "a degraded answer must be recomputed next time")
}

func TestSearch_StaleIndexEntriesDropSilently(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())
	env.text.hits = append(env.text.hits, candidate("deleted", store.ModalityText, 0.6))

	b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)

	for _, c := range b.Citations {
		assert.NotEqual(t, "deleted", c.SourceID)
	}
	assert.False(t, b.Partial, "dropped candidates are policy, not degradation")
}

func TestSearch_AssignsRequestIDWhenAbsent(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())

	// Both forms succeed; the generated id only shows up in logs, so this
	// just exercises the path.
	_, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)
	_, err = env.pipeline.Search(context.Background(), "solar panel installation", Options{RequestID: "req-42"})
	require.NoError(t, err)
}

func TestSearch_DeterministicAcrossRepeats(t *testing.T) {
	env := newPipelineEnv(t, quietConfig())

	reference, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		b, err := env.pipeline.Search(context.Background(), "solar panel installation", Options{})
		require.NoError(t, err)
		assert.Equal(t, reference.Narrative, b.Narrative, "repeat %d", i)
		assert.Equal(t, reference.Citations, b.Citations, "repeat %d", i)
	}
}
