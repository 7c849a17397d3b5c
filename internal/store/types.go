// Package store provides the persistence layer: per-modality vector
// indexes (HNSW), a BM25 keyword index (Bleve), and the SQLite content
// store that resolves candidate identifiers to typed content records.
package store

import (
	"context"
	"fmt"
	"time"
)

// Modality is one content family served by an independent vector index.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
)

// AllModalities lists every modality in canonical order.
var AllModalities = []Modality{ModalityText, ModalityImage, ModalityVideo}

// ParseModality validates a modality name.
func ParseModality(s string) (Modality, error) {
	switch Modality(s) {
	case ModalityText, ModalityImage, ModalityVideo:
		return Modality(s), nil
	}
	return "", fmt.Errorf("unknown modality %q (want text, image, or video)", s)
}

// ContentType identifies the concrete shape of a content record.
type ContentType string

const (
	ContentTypeTextChunk ContentType = "text_chunk"
	ContentTypeImage     ContentType = "image"
	ContentTypeVideo     ContentType = "video"
	ContentTypeKeyframe  ContentType = "video_keyframe"
)

// AllContentTypes lists every content type in bundle section order.
var AllContentTypes = []ContentType{
	ContentTypeTextChunk, ContentTypeImage, ContentTypeVideo, ContentTypeKeyframe,
}

// Modality returns the modality whose index serves this content type.
// Keyframes live in the video index.
func (c ContentType) Modality() Modality {
	switch c {
	case ContentTypeTextChunk:
		return ModalityText
	case ContentTypeImage:
		return ModalityImage
	case ContentTypeVideo, ContentTypeKeyframe:
		return ModalityVideo
	}
	return ""
}

// BudgetKey returns the config key used for this type's character budget
// and item cap.
func (c ContentType) BudgetKey() string {
	switch c {
	case ContentTypeTextChunk:
		return "text"
	case ContentTypeImage:
		return "image"
	case ContentTypeVideo:
		return "video"
	case ContentTypeKeyframe:
		return "keyframe"
	}
	return string(c)
}

// ContentTypes returns the content types a modality's index can yield.
func (m Modality) ContentTypes() []ContentType {
	switch m {
	case ModalityText:
		return []ContentType{ContentTypeTextChunk}
	case ModalityImage:
		return []ContentType{ContentTypeImage}
	case ModalityVideo:
		return []ContentType{ContentTypeVideo, ContentTypeKeyframe}
	}
	return nil
}

// Candidate is one raw hit from a single ranked search, before enrichment.
// Score is cosine similarity in [0,1] for vector hits; keyword hits carry
// the index-native BM25 score, which is why fusion defaults to the
// rank-based strategy.
type Candidate struct {
	ID           string
	Modality     Modality
	Score        float64
	MatchedTerms []string // keyword hits only
}

// State keys persisted in the content store's key-value table.
const (
	// StateKeyGeneration counts completed ingest runs; it feeds the cache
	// key so cached bundles expire when the index changes.
	StateKeyGeneration = "index_generation"
	// StateKeyIndexDimension records the embedding dimension the indexes
	// were built with.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel records the embedding model the indexes were
	// built with.
	StateKeyIndexModel = "index_embedding_model"
)

// TextAttrs are the type-specific fields of a text chunk.
type TextAttrs struct {
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
	SourcePath string `json:"source_path"`
}

// ImageAttrs are the type-specific fields of an image.
type ImageAttrs struct {
	Caption string `json:"caption"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Path    string `json:"path"`
}

// VideoAttrs are the type-specific fields of a video.
type VideoAttrs struct {
	Transcript  string  `json:"transcript"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	Path        string  `json:"path"`
}

// KeyframeAttrs are the type-specific fields of a video keyframe.
type KeyframeAttrs struct {
	Caption      string  `json:"caption"`
	TimestampSec float64 `json:"timestamp_sec"`
	VideoID      string  `json:"video_id"`
	Path         string  `json:"path,omitempty"`
}

// ContentRecord resolves a candidate identifier to concrete attributes.
// Exactly one variant pointer matches ContentType; records that fail
// Validate are treated as not found at the enrichment boundary rather
// than surfaced half-populated.
type ContentRecord struct {
	ID          string
	ContentType ContentType
	Title       string
	DocID       string
	CreatedAt   time.Time

	Text     *TextAttrs
	Image    *ImageAttrs
	Video    *VideoAttrs
	Keyframe *KeyframeAttrs
}

// Validate checks that the variant matching ContentType is populated.
func (r *ContentRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("content record has empty id")
	}
	switch r.ContentType {
	case ContentTypeTextChunk:
		if r.Text == nil {
			return fmt.Errorf("content record %s: text_chunk without text attributes", r.ID)
		}
	case ContentTypeImage:
		if r.Image == nil {
			return fmt.Errorf("content record %s: image without image attributes", r.ID)
		}
	case ContentTypeVideo:
		if r.Video == nil {
			return fmt.Errorf("content record %s: video without video attributes", r.ID)
		}
	case ContentTypeKeyframe:
		if r.Keyframe == nil {
			return fmt.Errorf("content record %s: video_keyframe without keyframe attributes", r.ID)
		}
	default:
		return fmt.Errorf("content record %s: unknown content type %q", r.ID, r.ContentType)
	}
	return nil
}

// Body returns the record's textual content: chunk text, caption, or
// transcript.
func (r *ContentRecord) Body() string {
	switch r.ContentType {
	case ContentTypeTextChunk:
		if r.Text != nil {
			return r.Text.Text
		}
	case ContentTypeImage:
		if r.Image != nil {
			return r.Image.Caption
		}
	case ContentTypeVideo:
		if r.Video != nil {
			return r.Video.Transcript
		}
	case ContentTypeKeyframe:
		if r.Keyframe != nil {
			return r.Keyframe.Caption
		}
	}
	return ""
}

// ArtifactLink returns a view/download reference for media types, empty
// for text chunks.
func (r *ContentRecord) ArtifactLink() string {
	switch r.ContentType {
	case ContentTypeImage, ContentTypeVideo, ContentTypeKeyframe:
		return "mosaic://view/" + r.ID
	}
	return ""
}

// VectorIndex is one modality's similarity index.
type VectorIndex interface {
	// Add inserts vectors with their IDs and optional filterable
	// attributes. Existing IDs are replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32, attrs []map[string]string) error

	// Search returns candidates ordered by descending similarity. Hits
	// below threshold are dropped; filters, when present, restrict hits
	// to those whose attribute value is in the allowed set.
	Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string][]string) ([]*Candidate, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Contains checks if an ID exists.
	Contains(id string) bool

	// Count returns the number of live vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// KeywordDoc is a document to index for keyword search.
type KeywordDoc struct {
	ID      string
	Content string
}

// KeywordIndex provides BM25 keyword search over text content.
type KeywordIndex interface {
	Index(ctx context.Context, docs []*KeywordDoc) error
	Search(ctx context.Context, query string, limit int) ([]*Candidate, error)
	Delete(ctx context.Context, ids []string) error
	Count() (uint64, error)
	Close() error
}

// ContentStore resolves candidate identifiers to content records and
// keeps small runtime state (index generation, embedding fingerprint).
type ContentStore interface {
	Put(ctx context.Context, records []*ContentRecord) error
	Get(ctx context.Context, id string) (*ContentRecord, error)
	Delete(ctx context.Context, ids []string) error
	// IDsByDoc lists record IDs derived from one source document.
	IDsByDoc(ctx context.Context, docID string) ([]string, error)
	DeleteByDoc(ctx context.Context, docID string) error
	Count(ctx context.Context) (int, error)
	CountByType(ctx context.Context) (map[ContentType]int, error)

	// Generation returns the current index generation counter.
	Generation(ctx context.Context) (uint64, error)
	// BumpGeneration increments and returns the generation counter.
	// Called once per completed ingest run.
	BumpGeneration(ctx context.Context) (uint64, error)

	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// ErrDimensionMismatch indicates a vector with the wrong dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'mosaic ingest --rebuild')", e.Expected, e.Got)
}
