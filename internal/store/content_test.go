package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
)

func newTestContentStore(t *testing.T) *SQLiteContentStore {
	t.Helper()
	s, err := NewSQLiteContentStore("") // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecords(created time.Time) []*ContentRecord {
	return []*ContentRecord{
		{
			ID:          "t1",
			ContentType: ContentTypeTextChunk,
			Title:       "Trip Notes",
			DocID:       "doc1",
			CreatedAt:   created,
			Text:        &TextAttrs{Text: "we drove along the coast", ChunkIndex: 0, SourcePath: "notes/trip.md"},
		},
		{
			ID:          "i1",
			ContentType: ContentTypeImage,
			Title:       "Sunset",
			DocID:       "doc2",
			CreatedAt:   created,
			Image:       &ImageAttrs{Caption: "sunset over the bay", Width: 1920, Height: 1080, Path: "photos/sunset.jpg"},
		},
		{
			ID:          "v1",
			ContentType: ContentTypeVideo,
			Title:       "Harbor Clip",
			DocID:       "doc3",
			CreatedAt:   created,
			Video:       &VideoAttrs{Transcript: "boats coming into the harbor", DurationSec: 42.5, Path: "videos/harbor.mp4"},
		},
		{
			ID:          "k1",
			ContentType: ContentTypeKeyframe,
			Title:       "Harbor Clip",
			DocID:       "doc3",
			CreatedAt:   created,
			Keyframe:    &KeyframeAttrs{Caption: "wide shot of the harbor", TimestampSec: 3.2, VideoID: "v1"},
		},
	}
}

func TestSQLiteContentStore_PutAndGet(t *testing.T) {
	// Given: one record of each content type
	s := newTestContentStore(t)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	records := sampleRecords(created)

	// When: storing and reading them back
	require.NoError(t, s.Put(context.Background(), records))

	for _, want := range records {
		t.Run(string(want.ContentType), func(t *testing.T) {
			got, err := s.Get(context.Background(), want.ID)
			require.NoError(t, err)

			// Then: every field round-trips
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.ContentType, got.ContentType)
			assert.Equal(t, want.Title, got.Title)
			assert.Equal(t, want.DocID, got.DocID)
			assert.Equal(t, created, got.CreatedAt)

			switch want.ContentType {
			case ContentTypeTextChunk:
				assert.Equal(t, want.Text, got.Text)
			case ContentTypeImage:
				assert.Equal(t, want.Image, got.Image)
			case ContentTypeVideo:
				assert.Equal(t, want.Video, got.Video)
			case ContentTypeKeyframe:
				assert.Equal(t, want.Keyframe, got.Keyframe)
			}
		})
	}
}

func TestSQLiteContentStore_GetMissingIsNotFound(t *testing.T) {
	// Given: an empty store
	s := newTestContentStore(t)

	// When: fetching an unknown ID
	_, err := s.Get(context.Background(), "ghost")

	// Then: the error is classified as not-found
	require.Error(t, err)
	assert.True(t, mserrors.IsNotFound(err))
}

func TestSQLiteContentStore_CorruptAttrsAreNotFound(t *testing.T) {
	// Given: a stored record whose attrs were mangled on disk
	s := newTestContentStore(t)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Put(context.Background(), sampleRecords(created)[:1]))

	_, err := s.db.Exec(`UPDATE content SET attrs = '{broken' WHERE id = 't1'`)
	require.NoError(t, err)

	// When: fetching it
	_, err = s.Get(context.Background(), "t1")

	// Then: it reads as not-found so enrichment drops it silently
	require.Error(t, err)
	assert.True(t, mserrors.IsNotFound(err))
}

func TestSQLiteContentStore_UnknownTypeIsNotFound(t *testing.T) {
	// Given: a stored record whose content type is not recognized
	s := newTestContentStore(t)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Put(context.Background(), sampleRecords(created)[:1]))

	_, err := s.db.Exec(`UPDATE content SET content_type = 'hologram' WHERE id = 't1'`)
	require.NoError(t, err)

	// When: fetching it
	_, err = s.Get(context.Background(), "t1")

	// Then: not-found, not a hard failure
	require.Error(t, err)
	assert.True(t, mserrors.IsNotFound(err))
}

func TestSQLiteContentStore_PutRejectsInvalidRecords(t *testing.T) {
	// Given: a text record missing its variant
	s := newTestContentStore(t)
	bad := &ContentRecord{
		ID:          "t1",
		ContentType: ContentTypeTextChunk,
		DocID:       "doc1",
		CreatedAt:   time.Now(),
	}

	// When: storing it
	err := s.Put(context.Background(), []*ContentRecord{bad})

	// Then: the batch is rejected
	require.Error(t, err)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteContentStore_PutReplacesExisting(t *testing.T) {
	// Given: a stored text chunk
	s := newTestContentStore(t)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	records := sampleRecords(created)[:1]
	require.NoError(t, s.Put(context.Background(), records))

	// When: re-putting the same ID with new text
	records[0].Text.Text = "updated text"
	require.NoError(t, s.Put(context.Background(), records))

	// Then: the store holds one record with the new text
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "updated text", got.Text.Text)
}

func TestSQLiteContentStore_DeleteAndDeleteByDoc(t *testing.T) {
	// Given: records across three source documents
	s := newTestContentStore(t)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Put(context.Background(), sampleRecords(created)))

	// When: listing IDs for the video document
	ids, err := s.IDsByDoc(context.Background(), "doc3")
	require.NoError(t, err)

	// Then: both the video and its keyframe are listed
	assert.ElementsMatch(t, []string{"v1", "k1"}, ids)

	// When: deleting by document
	require.NoError(t, s.DeleteByDoc(context.Background(), "doc3"))

	// Then: both records are gone
	_, err = s.Get(context.Background(), "v1")
	assert.True(t, mserrors.IsNotFound(err))
	_, err = s.Get(context.Background(), "k1")
	assert.True(t, mserrors.IsNotFound(err))

	// And: deleting explicit IDs removes the rest
	require.NoError(t, s.Delete(context.Background(), []string{"t1", "i1"}))
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteContentStore_CountByType(t *testing.T) {
	// Given: one record of each type
	s := newTestContentStore(t)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Put(context.Background(), sampleRecords(created)))

	// When: counting by type
	counts, err := s.CountByType(context.Background())
	require.NoError(t, err)

	// Then: each type reports one record
	assert.Equal(t, map[ContentType]int{
		ContentTypeTextChunk: 1,
		ContentTypeImage:     1,
		ContentTypeVideo:     1,
		ContentTypeKeyframe:  1,
	}, counts)
}

func TestSQLiteContentStore_Generation(t *testing.T) {
	// Given: a fresh store
	s := newTestContentStore(t)

	// Then: the generation starts at zero
	gen, err := s.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gen)

	// When: bumping twice
	gen, err = s.BumpGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	gen, err = s.BumpGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)

	// Then: reads agree
	gen, err = s.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)
}

func TestSQLiteContentStore_State(t *testing.T) {
	// Given: a fresh store
	s := newTestContentStore(t)

	// Then: missing keys read as empty
	val, err := s.GetState(context.Background(), StateKeyIndexModel)
	require.NoError(t, err)
	assert.Empty(t, val)

	// When: writing and overwriting a key
	require.NoError(t, s.SetState(context.Background(), StateKeyIndexModel, "nomic-embed-text"))
	require.NoError(t, s.SetState(context.Background(), StateKeyIndexDimension, "768"))
	require.NoError(t, s.SetState(context.Background(), StateKeyIndexModel, "text-embedding-3-small"))

	// Then: the latest value wins
	val, err = s.GetState(context.Background(), StateKeyIndexModel)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", val)

	val, err = s.GetState(context.Background(), StateKeyIndexDimension)
	require.NoError(t, err)
	assert.Equal(t, "768", val)
}

func TestSQLiteContentStore_PersistsAcrossReopen(t *testing.T) {
	// Given: a disk-backed store with one record and a bumped generation
	tmpDir := t.TempDir()
	path := ContentDBPath(tmpDir)
	created := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)

	s1, err := NewSQLiteContentStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(context.Background(), sampleRecords(created)[:1]))
	_, err = s1.BumpGeneration(context.Background())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// When: reopening the same path
	s2, err := NewSQLiteContentStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	// Then: data and state survive
	got, err := s2.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "we drove along the coast", got.Text.Text)

	gen, err := s2.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
}

func TestSQLiteContentStore_RecoversFromCorruption(t *testing.T) {
	// Given: a database file containing garbage
	tmpDir := t.TempDir()
	path := ContentDBPath(tmpDir)
	require.NoError(t, os.MkdirAll(tmpDir, 0755))
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database"), 0644))

	// When: opening the store
	s, err := NewSQLiteContentStore(path)

	// Then: it clears the corrupt file and starts empty
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteContentStore_ClosedStoreRejectsOperations(t *testing.T) {
	// Given: a closed store
	s, err := NewSQLiteContentStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Then: operations fail cleanly
	_, err = s.Get(context.Background(), "t1")
	assert.Error(t, err)

	err = s.Put(context.Background(), sampleRecords(time.Now()))
	assert.Error(t, err)

	// And: closing again is a no-op
	assert.NoError(t, s.Close())
}
