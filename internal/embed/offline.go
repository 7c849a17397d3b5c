package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// OfflineEmbedder generates embeddings with a hash-based scheme: no
// network, no model download, fully deterministic. Semantic quality is
// reduced, but identical text always maps to an identical vector, which
// keeps search results reproducible when no provider is reachable.
type OfflineEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OfflineEmbedder)(nil)

// fillerWords are dropped before hashing so captions like "a photo of
// the beach" and "photo of a beach" land near each other.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "with": true,
	"this": true, "that": true, "for": true, "from": true,
}

// Weights for vector generation.
const (
	offlineTokenWeight = 0.7
	offlineNgramWeight = 0.3
	offlineNgramSize   = 3
)

// wordRegex matches letter/digit sequences, unicode included.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// NewOfflineEmbedder creates a new offline embedder.
func NewOfflineEmbedder() *OfflineEmbedder {
	return &OfflineEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *OfflineEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, OfflineDimensions), nil
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// generateVector hashes word tokens and character trigrams into a
// fixed-size vector. Trigrams give partial credit for word variants
// (kayak/kayaking) that whole-word hashing would miss.
func (e *OfflineEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, OfflineDimensions)

	for _, token := range offlineTokenize(text) {
		vector[hashToIndex(token, OfflineDimensions)] += offlineTokenWeight
	}

	squashed := squashForNgrams(text)
	for _, ngram := range characterNgrams(squashed, offlineNgramSize) {
		vector[hashToIndex(ngram, OfflineDimensions)] += offlineNgramWeight
	}

	return vector
}

// offlineTokenize lowercases, splits on non-word runs, and drops filler
// words.
func offlineTokenize(text string) []string {
	words := wordRegex.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if fillerWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// squashForNgrams strips everything but letters and digits so trigrams
// span word boundaries consistently.
func squashForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// characterNgrams extracts n-byte sliding windows.
func characterNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

// hashToIndex maps a string to a vector index with FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OfflineEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		results[i] = emb
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OfflineEmbedder) Dimensions() int {
	return OfflineDimensions
}

// ModelName returns the model identifier.
func (e *OfflineEmbedder) ModelName() string {
	return "offline"
}

// Available always reports true while open.
func (e *OfflineEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *OfflineEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
