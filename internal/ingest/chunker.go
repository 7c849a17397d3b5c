package ingest

import (
	"strings"
)

// Chunking defaults, in characters. Chunks land near the embedding
// model's sweet spot without splitting mid-sentence more than necessary.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// Chunker splits text into overlapping chunks along paragraph
// boundaries. Stateless and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Non-positive size falls back to the
// default; overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into chunks of at most the configured size.
// Paragraphs are packed greedily; a paragraph longer than the chunk size
// splits on rune windows with the configured overlap. Whitespace-only
// input yields nothing.
func (c *Chunker) Chunk(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if len([]rune(para)) > c.size {
			flush()
			chunks = append(chunks, c.splitLong(para)...)
			continue
		}
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(para))+2 > c.size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitLong windows an oversized paragraph with overlap, breaking at the
// last space inside each window when one exists.
func (c *Chunker) splitLong(para string) []string {
	runes := []rune(para)
	var chunks []string

	for start := 0; start < len(runes); {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := end
		for i := end; i > start+c.size/2; i-- {
			if runes[i-1] == ' ' {
				cut = i
				break
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

// splitParagraphs splits on blank lines, normalizing line endings.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n\n")

	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}
