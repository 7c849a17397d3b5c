// Package bundle assembles fused retrieval results into a context bundle:
// a readable narrative with per-type sections and citation markers, plus a
// flat citation list, sized by per-type character budgets and item caps.
// Building is deterministic; identical inputs yield byte-identical output.
package bundle

import (
	"time"

	"github.com/mosaicsearch/mosaic/internal/store"
)

// RankedItem is one fused result entering the bundler, in fused order.
type RankedItem struct {
	Record  *store.ContentRecord
	Score   float64
	Sources []string
}

// Item is one included result, rendered within its section.
type Item struct {
	// Marker is the citation marker, e.g. "[2]" or "[IMG-1]".
	Marker string `json:"marker"`

	// ID is the content record identifier.
	ID string `json:"id"`

	// Title is the record title, possibly empty.
	Title string `json:"title,omitempty"`

	// Snippet is the record body truncated to the section's character
	// budget.
	Snippet string `json:"snippet"`

	// Score is the fused score the item entered with.
	Score float64 `json:"score"`

	// Sources names the ranked lists the item appeared in.
	Sources []string `json:"sources,omitempty"`

	// ArtifactLink is a view/download/playback URI for media items.
	ArtifactLink string `json:"artifact_link,omitempty"`

	// TimeOffsetSec is the keyframe's position in its video.
	TimeOffsetSec float64 `json:"time_offset_sec,omitempty"`
}

// Section groups the included items of one content type, in fused order.
type Section struct {
	ContentType store.ContentType `json:"content_type"`
	Heading     string            `json:"heading"`
	Items       []Item            `json:"items"`
}

// Citation is one flat citation record per included item.
type Citation struct {
	Marker      string            `json:"marker"`
	SourceID    string            `json:"source_id"`
	ContentType store.ContentType `json:"content_type"`
	DocID       string            `json:"doc_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Stats summarizes bundle composition.
type Stats struct {
	TotalItems int            `json:"total_items"`
	Sections   int            `json:"sections"`
	PerType    map[string]int `json:"per_type,omitempty"`
}

// ContextBundle is the pipeline's final product. Partial and Warnings are
// set by the pipeline when some modalities failed or the request deadline
// expired mid-gather; the builder itself leaves them zero.
type ContextBundle struct {
	// Query is the corrected query text the bundle answers.
	Query string `json:"query"`

	// Intent is the classified query intent.
	Intent string `json:"intent,omitempty"`

	// Narrative is the header plus every section rendered in fixed
	// content-type order.
	Narrative string `json:"narrative"`

	// Sections holds the non-empty sections in fixed content-type order.
	Sections []Section `json:"sections"`

	// Citations is the flat citation list across all sections.
	Citations []Citation `json:"citations"`

	// Stats summarizes item and section counts.
	Stats Stats `json:"stats"`

	// Partial marks a bundle assembled from an incomplete gather.
	Partial bool `json:"partial,omitempty"`

	// Warnings carries partial-result annotations, e.g. a failed modality.
	Warnings []string `json:"warnings,omitempty"`
}

// Limits are the per-type sizing knobs.
type Limits struct {
	// CharBudget truncates each item's snippet, keyed by content type.
	// 0 means unbounded.
	CharBudget map[store.ContentType]int

	// ItemCap bounds items per section, keyed by content type.
	ItemCap map[store.ContentType]int
}

// DefaultLimits returns the standard budgets and caps: text snippets at
// 500 characters and video transcripts at 300, captions unbounded; at
// most 10 text chunks, 5 images, 3 videos, and 5 keyframes.
func DefaultLimits() Limits {
	return Limits{
		CharBudget: map[store.ContentType]int{
			store.ContentTypeTextChunk: 500,
			store.ContentTypeImage:     0,
			store.ContentTypeVideo:     300,
			store.ContentTypeKeyframe:  0,
		},
		ItemCap: map[store.ContentType]int{
			store.ContentTypeTextChunk: 10,
			store.ContentTypeImage:     5,
			store.ContentTypeVideo:     3,
			store.ContentTypeKeyframe:  5,
		},
	}
}

// LimitsFromMaps overlays configuration maps (keyed by the content types'
// budget keys) onto the defaults.
func LimitsFromMaps(charBudget, itemCap map[string]int) Limits {
	l := DefaultLimits()
	for _, ct := range store.AllContentTypes {
		if v, ok := charBudget[ct.BudgetKey()]; ok {
			l.CharBudget[ct] = v
		}
		if v, ok := itemCap[ct.BudgetKey()]; ok {
			l.ItemCap[ct] = v
		}
	}
	return l
}
