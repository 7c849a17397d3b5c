package bundle

import (
	"fmt"
	"strings"

	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// sectionHeadings in fixed section order.
var sectionHeadings = map[store.ContentType]string{
	store.ContentTypeTextChunk: "Text passages",
	store.ContentTypeImage:     "Images",
	store.ContentTypeVideo:     "Video transcripts",
	store.ContentTypeKeyframe:  "Video keyframes",
}

// Builder assembles context bundles. Stateless and safe for concurrent
// use.
type Builder struct {
	limits Limits
}

// NewBuilder creates a Builder with the given limits.
func NewBuilder(limits Limits) *Builder {
	if limits.CharBudget == nil {
		limits.CharBudget = DefaultLimits().CharBudget
	}
	if limits.ItemCap == nil {
		limits.ItemCap = DefaultLimits().ItemCap
	}
	return &Builder{limits: limits}
}

// Build groups fused results by content type in fixed order (text, image,
// video, keyframe), preserving fused order within each section, applies
// the per-type item caps and character budgets, and renders the narrative
// and flat citation list. Markers are numbered independently per type
// starting at 1.
func (b *Builder) Build(pq *query.ProcessedQuery, items []RankedItem) *ContextBundle {
	grouped := make(map[store.ContentType][]RankedItem, len(sectionHeadings))
	for _, it := range items {
		if it.Record == nil {
			continue
		}
		ct := it.Record.ContentType
		if _, known := sectionHeadings[ct]; !known {
			continue
		}
		if itemCap := b.limits.ItemCap[ct]; itemCap > 0 && len(grouped[ct]) >= itemCap {
			continue
		}
		grouped[ct] = append(grouped[ct], it)
	}

	bundle := &ContextBundle{
		Query:  pq.Corrected,
		Intent: string(pq.Intent),
		Stats:  Stats{PerType: make(map[string]int)},
	}

	for _, ct := range store.AllContentTypes {
		group := grouped[ct]
		if len(group) == 0 {
			continue
		}

		section := Section{
			ContentType: ct,
			Heading:     sectionHeadings[ct],
			Items:       make([]Item, 0, len(group)),
		}
		for i, it := range group {
			rendered := b.renderItem(ct, i+1, it)
			section.Items = append(section.Items, rendered)
			bundle.Citations = append(bundle.Citations, Citation{
				Marker:      rendered.Marker,
				SourceID:    it.Record.ID,
				ContentType: ct,
				DocID:       it.Record.DocID,
				CreatedAt:   it.Record.CreatedAt,
			})
		}

		bundle.Sections = append(bundle.Sections, section)
		bundle.Stats.PerType[ct.BudgetKey()] = len(section.Items)
		bundle.Stats.TotalItems += len(section.Items)
	}
	bundle.Stats.Sections = len(bundle.Sections)

	bundle.Narrative = b.renderNarrative(bundle)
	return bundle
}

// renderItem truncates the record body to the type's character budget and
// fills in the marker and artifact fields.
func (b *Builder) renderItem(ct store.ContentType, n int, it RankedItem) Item {
	item := Item{
		Marker:       markerFor(ct, n),
		ID:           it.Record.ID,
		Title:        it.Record.Title,
		Snippet:      truncate(it.Record.Body(), b.limits.CharBudget[ct]),
		Score:        it.Score,
		Sources:      it.Sources,
		ArtifactLink: it.Record.ArtifactLink(),
	}
	if ct == store.ContentTypeKeyframe && it.Record.Keyframe != nil {
		item.TimeOffsetSec = it.Record.Keyframe.TimestampSec
	}
	return item
}

// renderNarrative writes the header then each section: heading, then one
// line per item with its marker, title, snippet, and artifact link.
func (b *Builder) renderNarrative(bundle *ContextBundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Results for %q: %d items across %d sections.\n",
		bundle.Query, bundle.Stats.TotalItems, bundle.Stats.Sections)

	for _, section := range bundle.Sections {
		sb.WriteString("\n## ")
		sb.WriteString(section.Heading)
		sb.WriteString("\n")

		for _, item := range section.Items {
			sb.WriteString(item.Marker)
			if item.Title != "" {
				sb.WriteString(" ")
				sb.WriteString(item.Title)
			}
			if section.ContentType == store.ContentTypeKeyframe {
				fmt.Fprintf(&sb, " (at %.1fs)", item.TimeOffsetSec)
			}
			if item.Snippet != "" {
				sb.WriteString(": ")
				sb.WriteString(item.Snippet)
			}
			if item.ArtifactLink != "" {
				sb.WriteString(" <")
				sb.WriteString(item.ArtifactLink)
				sb.WriteString(">")
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// markerFor numbers markers independently per content type.
func markerFor(ct store.ContentType, n int) string {
	switch ct {
	case store.ContentTypeImage:
		return fmt.Sprintf("[IMG-%d]", n)
	case store.ContentTypeVideo:
		return fmt.Sprintf("[VID-%d]", n)
	case store.ContentTypeKeyframe:
		return fmt.Sprintf("[KF-%d]", n)
	default:
		return fmt.Sprintf("[%d]", n)
	}
}

// truncate bounds text to budget runes, trimming a trailing word
// fragment's whitespace. 0 or negative budgets mean unbounded.
func truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return strings.TrimRight(string(runes[:budget]), " \t\n")
}
