package mcp

import (
	"github.com/mosaicsearch/mosaic/internal/bundle"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"the natural-language query to answer from the library"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum fused results to draw the bundle from, default 10"`
	Modalities []string `json:"modalities,omitempty" jsonschema:"restrict search to these modalities: text, image, video; default all"`
	Strategy   string   `json:"strategy,omitempty" jsonschema:"rank fusion strategy: rrf or weighted, default rrf"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Narrative string           `json:"narrative" jsonschema:"citation-annotated context text ready to ground a response"`
	Query     string           `json:"query" jsonschema:"the corrected query the bundle answers"`
	Intent    string           `json:"intent,omitempty" jsonschema:"classified query intent"`
	Partial   bool             `json:"partial,omitempty" jsonschema:"true when some modalities failed and results are incomplete"`
	Warnings  []string         `json:"warnings,omitempty" jsonschema:"partial-result annotations, one per degraded modality"`
	Citations []CitationOutput `json:"citations" jsonschema:"flat citation list mapping markers to source records"`
	Total     int              `json:"total" jsonschema:"number of items included in the bundle"`
}

// CitationOutput maps one citation marker to its source record.
type CitationOutput struct {
	Marker      string `json:"marker" jsonschema:"citation marker as it appears in the narrative, e.g. [2] or [IMG-1]"`
	SourceID    string `json:"source_id" jsonschema:"content record identifier"`
	ContentType string `json:"content_type" jsonschema:"content type of the cited record"`
	DocID       string `json:"doc_id,omitempty" jsonschema:"source document the record came from"`
}

// ToSearchOutput converts a context bundle to the tool's wire shape.
func ToSearchOutput(b *bundle.ContextBundle) SearchOutput {
	out := SearchOutput{
		Narrative: b.Narrative,
		Query:     b.Query,
		Intent:    b.Intent,
		Partial:   b.Partial,
		Warnings:  b.Warnings,
		Citations: make([]CitationOutput, 0, len(b.Citations)),
		Total:     b.Stats.TotalItems,
	}
	for _, c := range b.Citations {
		out.Citations = append(out.Citations, CitationOutput{
			Marker:      c.Marker,
			SourceID:    c.SourceID,
			ContentType: string(c.ContentType),
			DocID:       c.DocID,
		})
	}
	return out
}

// StatusInput defines the input schema for the library_status tool (no
// parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the library_status tool.
type StatusOutput struct {
	Library      LibraryInfo    `json:"library"`
	Ready        bool           `json:"ready" jsonschema:"true when the library holds at least one indexed record"`
	TotalRecords int            `json:"total_records"`
	Counts       map[string]int `json:"counts" jsonschema:"indexed record counts keyed by content type"`
	Generation   uint64         `json:"generation" jsonschema:"index generation, bumped by every ingest run"`
	Embeddings   EmbeddingInfo  `json:"embeddings"`
}

// LibraryInfo identifies the library being served.
type LibraryInfo struct {
	Root    string `json:"root"`
	DataDir string `json:"data_dir"`
}

// EmbeddingInfo reports configured and runtime embedder state so
// clients can tell when the index was built under a different model.
type EmbeddingInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Status is ready, unavailable, or mismatch (index built under a
	// different model than the active one).
	Status string `json:"status"`

	ActiveModel       string `json:"active_model,omitempty"`
	Dimensions        int    `json:"dimensions,omitempty"`
	IndexedModel      string `json:"indexed_model,omitempty"`
	IndexedDimensions int    `json:"indexed_dimensions,omitempty"`
}
