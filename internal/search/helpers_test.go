package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// fakeVectorIndex is a scripted store.VectorIndex: it returns its hits
// (or error) for every search and records the parameters it saw.
type fakeVectorIndex struct {
	hits []*store.Candidate
	err  error

	mu            sync.Mutex
	calls         int
	lastLimit     int
	lastThreshold float64
	lastFilters   map[string][]string
	delay         time.Duration
}

func (f *fakeVectorIndex) Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string][]string) ([]*store.Candidate, error) {
	f.mu.Lock()
	f.calls++
	f.lastLimit = limit
	f.lastThreshold = threshold
	f.lastFilters = filters
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeVectorIndex) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeVectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32, attrs []map[string]string) error {
	return nil
}
func (f *fakeVectorIndex) Delete(ctx context.Context, ids []string) error { return nil }

func (f *fakeVectorIndex) Contains(id string) bool { return false }

func (f *fakeVectorIndex) Count() int { return len(f.hits) }

func (f *fakeVectorIndex) Save(path string) error { return nil }

func (f *fakeVectorIndex) Load(path string) error { return nil }

func (f *fakeVectorIndex) Close() error { return nil }

// fakeKeywordIndex is a scripted store.KeywordIndex.
type fakeKeywordIndex struct {
	hits []*store.Candidate
	err  error

	mu        sync.Mutex
	calls     int
	lastQuery string
	lastLimit int
}

func (f *fakeKeywordIndex) Search(ctx context.Context, query string, limit int) ([]*store.Candidate, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuery = query
	f.lastLimit = limit
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeKeywordIndex) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeKeywordIndex) Index(ctx context.Context, docs []*store.KeywordDoc) error { return nil }

func (f *fakeKeywordIndex) Delete(ctx context.Context, ids []string) error { return nil }

func (f *fakeKeywordIndex) Count() (uint64, error) { return uint64(len(f.hits)), nil }

func (f *fakeKeywordIndex) Close() error { return nil }

// fakeContentStore resolves IDs against an in-memory record map. IDs
// without a record resolve as not-found, like a stale index entry.
type fakeContentStore struct {
	records map[string]*store.ContentRecord
	getErr  error

	gen      uint64
	genErr   error
	getCalls atomic.Int64
}

func newFakeContentStore(records ...*store.ContentRecord) *fakeContentStore {
	s := &fakeContentStore{records: make(map[string]*store.ContentRecord), gen: 1}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeContentStore) Get(ctx context.Context, id string) (*store.ContentRecord, error) {
	s.getCalls.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, mserrors.ContentNotFound(id)
	}
	return rec, nil
}

func (s *fakeContentStore) Put(ctx context.Context, records []*store.ContentRecord) error {
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *fakeContentStore) Delete(ctx context.Context, ids []string) error { return nil }

func (s *fakeContentStore) IDsByDoc(ctx context.Context, docID string) ([]string, error) {
	return nil, nil
}

func (s *fakeContentStore) DeleteByDoc(ctx context.Context, docID string) error { return nil }

func (s *fakeContentStore) Count(ctx context.Context) (int, error) { return len(s.records), nil }

func (s *fakeContentStore) CountByType(ctx context.Context) (map[store.ContentType]int, error) {
	return nil, nil
}

func (s *fakeContentStore) Generation(ctx context.Context) (uint64, error) {
	if s.genErr != nil {
		return 0, s.genErr
	}
	return s.gen, nil
}

func (s *fakeContentStore) BumpGeneration(ctx context.Context) (uint64, error) {
	s.gen++
	return s.gen, nil
}

func (s *fakeContentStore) GetState(ctx context.Context, key string) (string, error) {
	return "", mserrors.ContentNotFound(key)
}

func (s *fakeContentStore) SetState(ctx context.Context, key, value string) error { return nil }

func (s *fakeContentStore) Close() error { return nil }

// fakeEmbedder returns a fixed vector, or fails.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  atomic.Int64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

func (f *fakeEmbedder) ModelName() string { return "fake" }

func (f *fakeEmbedder) Available(ctx context.Context) bool { return f.err == nil }

func (f *fakeEmbedder) Close() error { return nil }

// Record fixtures.

func textRecord(id, body string) *store.ContentRecord {
	return &store.ContentRecord{
		ID:          id,
		ContentType: store.ContentTypeTextChunk,
		Title:       "doc " + id,
		DocID:       "doc-" + id,
		CreatedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Text:        &store.TextAttrs{Text: body, SourcePath: "docs/" + id + ".md"},
	}
}

func imageRecord(id, caption string) *store.ContentRecord {
	return &store.ContentRecord{
		ID:          id,
		ContentType: store.ContentTypeImage,
		Title:       "image " + id,
		DocID:       "doc-" + id,
		CreatedAt:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Image:       &store.ImageAttrs{Caption: caption, Width: 800, Height: 600, Path: "media/" + id + ".png"},
	}
}

func videoRecord(id, transcript string) *store.ContentRecord {
	return &store.ContentRecord{
		ID:          id,
		ContentType: store.ContentTypeVideo,
		Title:       "video " + id,
		DocID:       "doc-" + id,
		CreatedAt:   time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		Video:       &store.VideoAttrs{Transcript: transcript, DurationSec: 90, Path: "media/" + id + ".mp4"},
	}
}

func candidate(id string, m store.Modality, score float64) *store.Candidate {
	return &store.Candidate{ID: id, Modality: m, Score: score}
}

func enriched(rec *store.ContentRecord, score float64) *EnrichedResult {
	return &EnrichedResult{
		Candidate: &store.Candidate{ID: rec.ID, Modality: rec.ContentType.Modality(), Score: score},
		Record:    rec,
	}
}
