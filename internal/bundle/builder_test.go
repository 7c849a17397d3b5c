package bundle

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/store"
)

func pq(text string) *query.ProcessedQuery {
	return &query.ProcessedQuery{
		Original:  text,
		Cleaned:   text,
		Corrected: text,
		Intent:    query.IntentGeneral,
	}
}

func textItem(id, body string, score float64) RankedItem {
	return RankedItem{
		Record: &store.ContentRecord{
			ID:          id,
			ContentType: store.ContentTypeTextChunk,
			Title:       "chunk " + id,
			DocID:       "doc-" + id,
			CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Text:        &store.TextAttrs{Text: body, SourcePath: "docs/" + id + ".md"},
		},
		Score:   score,
		Sources: []string{"text"},
	}
}

func imageItem(id, caption string, score float64) RankedItem {
	return RankedItem{
		Record: &store.ContentRecord{
			ID:          id,
			ContentType: store.ContentTypeImage,
			Title:       "image " + id,
			DocID:       "doc-" + id,
			CreatedAt:   time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
			Image:       &store.ImageAttrs{Caption: caption, Path: "media/" + id + ".png"},
		},
		Score:   score,
		Sources: []string{"image"},
	}
}

func videoItem(id, transcript string, score float64) RankedItem {
	return RankedItem{
		Record: &store.ContentRecord{
			ID:          id,
			ContentType: store.ContentTypeVideo,
			Title:       "video " + id,
			DocID:       "doc-" + id,
			CreatedAt:   time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC),
			Video:       &store.VideoAttrs{Transcript: transcript, Path: "media/" + id + ".mp4"},
		},
		Score:   score,
		Sources: []string{"video"},
	}
}

func keyframeItem(id, caption string, at float64, score float64) RankedItem {
	return RankedItem{
		Record: &store.ContentRecord{
			ID:          id,
			ContentType: store.ContentTypeKeyframe,
			Title:       "frame " + id,
			DocID:       "doc-" + id,
			CreatedAt:   time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC),
			Keyframe:    &store.KeyframeAttrs{Caption: caption, TimestampSec: at, VideoID: "vid-1"},
		},
		Score:   score,
		Sources: []string{"video"},
	}
}

func TestBuild_GroupsByTypeInFixedOrder(t *testing.T) {
	// Fused order interleaves types; sections must come out in the fixed
	// text, image, video, keyframe order regardless.
	items := []RankedItem{
		keyframeItem("k1", "whiteboard close-up", 12.5, 0.9),
		textItem("t1", "chapter one", 0.8),
		imageItem("i1", "floor plan", 0.7),
		videoItem("v1", "narrated tour", 0.6),
		textItem("t2", "chapter two", 0.5),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("house tour"), items)

	require.Len(t, b.Sections, 4)
	assert.Equal(t, store.ContentTypeTextChunk, b.Sections[0].ContentType)
	assert.Equal(t, store.ContentTypeImage, b.Sections[1].ContentType)
	assert.Equal(t, store.ContentTypeVideo, b.Sections[2].ContentType)
	assert.Equal(t, store.ContentTypeKeyframe, b.Sections[3].ContentType)

	// Fused order survives within the text section.
	assert.Equal(t, "t1", b.Sections[0].Items[0].ID)
	assert.Equal(t, "t2", b.Sections[0].Items[1].ID)

	assert.Equal(t, 5, b.Stats.TotalItems)
	assert.Equal(t, 4, b.Stats.Sections)
	assert.Equal(t, 2, b.Stats.PerType["text"])
}

func TestBuild_EmptySectionsOmitted(t *testing.T) {
	b := NewBuilder(DefaultLimits()).Build(pq("query"), []RankedItem{
		textItem("t1", "only text", 0.9),
	})

	require.Len(t, b.Sections, 1)
	assert.Equal(t, store.ContentTypeTextChunk, b.Sections[0].ContentType)
	assert.Equal(t, 1, b.Stats.Sections)
}

func TestBuild_NoResults(t *testing.T) {
	b := NewBuilder(DefaultLimits()).Build(pq("nothing matches"), nil)

	assert.Empty(t, b.Sections)
	assert.Empty(t, b.Citations)
	assert.Equal(t, 0, b.Stats.TotalItems)
	assert.Contains(t, b.Narrative, "0 items across 0 sections")
}

func TestBuild_MarkersNumberedIndependentlyPerType(t *testing.T) {
	items := []RankedItem{
		textItem("t1", "first", 0.9),
		imageItem("i1", "photo one", 0.85),
		textItem("t2", "second", 0.8),
		videoItem("v1", "clip one", 0.75),
		imageItem("i2", "photo two", 0.7),
		keyframeItem("k1", "frame one", 3.0, 0.65),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("query"), items)

	markers := make(map[string]string)
	for _, s := range b.Sections {
		for _, it := range s.Items {
			markers[it.ID] = it.Marker
		}
	}

	assert.Equal(t, "[1]", markers["t1"])
	assert.Equal(t, "[2]", markers["t2"])
	assert.Equal(t, "[IMG-1]", markers["i1"])
	assert.Equal(t, "[IMG-2]", markers["i2"])
	assert.Equal(t, "[VID-1]", markers["v1"])
	assert.Equal(t, "[KF-1]", markers["k1"])

	// Markers are unique across the whole bundle.
	seen := make(map[string]struct{})
	for _, m := range markers {
		_, dup := seen[m]
		assert.False(t, dup, "marker %s appears twice", m)
		seen[m] = struct{}{}
	}
}

func TestBuild_ItemCapsBoundSections(t *testing.T) {
	var items []RankedItem
	for i := 0; i < 20; i++ {
		items = append(items, textItem(fmt.Sprintf("t%02d", i), fmt.Sprintf("body %d", i), 1.0-float64(i)/100))
	}
	for i := 0; i < 9; i++ {
		items = append(items, imageItem(fmt.Sprintf("i%d", i), fmt.Sprintf("caption %d", i), 0.5-float64(i)/100))
	}

	b := NewBuilder(DefaultLimits()).Build(pq("query"), items)

	require.Len(t, b.Sections, 2)
	assert.Len(t, b.Sections[0].Items, 10, "text cap")
	assert.Len(t, b.Sections[1].Items, 5, "image cap")
	// The highest-ranked items survive the cap.
	assert.Equal(t, "t00", b.Sections[0].Items[0].ID)
	assert.Equal(t, "t09", b.Sections[0].Items[9].ID)
	assert.Equal(t, 15, b.Stats.TotalItems)
	assert.Len(t, b.Citations, 15)
}

func TestBuild_CharBudgetsTruncateSnippets(t *testing.T) {
	long := strings.Repeat("a", 1200)

	items := []RankedItem{
		textItem("t1", long, 0.9),
		videoItem("v1", long, 0.8),
		imageItem("i1", long, 0.7),
		keyframeItem("k1", long, 1.0, 0.6),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("query"), items)

	snippets := make(map[string]string)
	for _, s := range b.Sections {
		for _, it := range s.Items {
			snippets[it.ID] = it.Snippet
		}
	}

	assert.Len(t, snippets["t1"], 500, "text budget")
	assert.Len(t, snippets["v1"], 300, "video transcript budget")
	assert.Len(t, snippets["i1"], 1200, "image captions are unbounded")
	assert.Len(t, snippets["k1"], 1200, "keyframe captions are unbounded")
}

func TestBuild_TruncationCountsRunes(t *testing.T) {
	limits := DefaultLimits()
	limits.CharBudget[store.ContentTypeTextChunk] = 5

	b := NewBuilder(limits).Build(pq("query"), []RankedItem{
		textItem("t1", "héllö wörld", 0.9),
	})

	assert.Equal(t, "héllö", b.Sections[0].Items[0].Snippet)
}

func TestBuild_ArtifactLinksForMediaOnly(t *testing.T) {
	items := []RankedItem{
		textItem("t1", "some text", 0.9),
		imageItem("i1", "a caption", 0.8),
		videoItem("v1", "a transcript", 0.7),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("query"), items)

	links := make(map[string]string)
	for _, s := range b.Sections {
		for _, it := range s.Items {
			links[it.ID] = it.ArtifactLink
		}
	}

	assert.Empty(t, links["t1"])
	assert.Equal(t, "mosaic://view/i1", links["i1"])
	assert.Equal(t, "mosaic://view/v1", links["v1"])
	assert.Contains(t, b.Narrative, "<mosaic://view/i1>")
}

func TestBuild_KeyframeTimestampRendered(t *testing.T) {
	b := NewBuilder(DefaultLimits()).Build(pq("query"), []RankedItem{
		keyframeItem("k1", "title slide", 42.5, 0.9),
	})

	require.Len(t, b.Sections, 1)
	assert.Equal(t, 42.5, b.Sections[0].Items[0].TimeOffsetSec)
	assert.Contains(t, b.Narrative, "(at 42.5s)")
}

func TestBuild_CitationsMatchIncludedItems(t *testing.T) {
	items := []RankedItem{
		textItem("t1", "body", 0.9),
		imageItem("i1", "caption", 0.8),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("query"), items)

	require.Len(t, b.Citations, 2)
	assert.Equal(t, Citation{
		Marker:      "[1]",
		SourceID:    "t1",
		ContentType: store.ContentTypeTextChunk,
		DocID:       "doc-t1",
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, b.Citations[0])
	assert.Equal(t, "[IMG-1]", b.Citations[1].Marker)
	assert.Equal(t, "i1", b.Citations[1].SourceID)
}

func TestBuild_NarrativeHeaderNamesQueryAndCounts(t *testing.T) {
	items := []RankedItem{
		textItem("t1", "body one", 0.9),
		textItem("t2", "body two", 0.8),
		imageItem("i1", "caption", 0.7),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("wind turbines"), items)

	lines := strings.Split(b.Narrative, "\n")
	assert.Equal(t, `Results for "wind turbines": 3 items across 2 sections.`, lines[0])
	assert.Contains(t, b.Narrative, "## Text passages")
	assert.Contains(t, b.Narrative, "## Images")
}

func TestBuild_SkipsNilAndUnknownRecords(t *testing.T) {
	items := []RankedItem{
		{Record: nil, Score: 0.9},
		{Record: &store.ContentRecord{ID: "x", ContentType: "spreadsheet"}, Score: 0.8},
		textItem("t1", "body", 0.7),
	}

	b := NewBuilder(DefaultLimits()).Build(pq("query"), items)

	assert.Equal(t, 1, b.Stats.TotalItems)
	assert.Equal(t, "t1", b.Sections[0].Items[0].ID)
}

func TestBuild_Deterministic(t *testing.T) {
	var items []RankedItem
	for i := 0; i < 12; i++ {
		items = append(items, textItem(fmt.Sprintf("t%02d", i), fmt.Sprintf("passage %d", i), 1.0-float64(i)/20))
		items = append(items, imageItem(fmt.Sprintf("i%02d", i), fmt.Sprintf("caption %d", i), 0.9-float64(i)/20))
	}

	builder := NewBuilder(DefaultLimits())
	reference := builder.Build(pq("repeatability"), items)

	for run := 0; run < 10; run++ {
		b := builder.Build(pq("repeatability"), items)
		assert.Equal(t, reference.Narrative, b.Narrative, "run %d", run)
		assert.Equal(t, reference.Citations, b.Citations, "run %d", run)
		assert.Equal(t, reference.Sections, b.Sections, "run %d", run)
	}
}

func TestLimitsFromMaps_OverlaysDefaults(t *testing.T) {
	l := LimitsFromMaps(
		map[string]int{"text": 200, "keyframe": 80},
		map[string]int{"image": 2},
	)

	assert.Equal(t, 200, l.CharBudget[store.ContentTypeTextChunk])
	assert.Equal(t, 80, l.CharBudget[store.ContentTypeKeyframe])
	assert.Equal(t, 300, l.CharBudget[store.ContentTypeVideo], "untouched default")
	assert.Equal(t, 2, l.ItemCap[store.ContentTypeImage])
	assert.Equal(t, 10, l.ItemCap[store.ContentTypeTextChunk], "untouched default")
}
