// Package embed turns query and content text into vectors. Providers:
// OpenAI-compatible APIs, a local Ollama daemon, and a deterministic
// offline fallback that needs no network. All embedders return
// unit-normalized vectors.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultBatchSize for batch embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout for a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultConnectTimeout for provider health checks.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultMaxRetries for transient provider failures.
	DefaultMaxRetries = 3

	// DefaultDimensions is used when a provider cannot report its
	// dimension before the first request.
	DefaultDimensions = 768

	// OfflineDimensions is the dimension of the offline hash embedder.
	OfflineDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector
	// per input in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// clampBatchSize bounds a configured batch size to the allowed range.
func clampBatchSize(n int) int {
	if n < MinBatchSize {
		return DefaultBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
