package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	// ProviderOpenAI uses an OpenAI-compatible API (needs OPENAI_API_KEY).
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama daemon.
	ProviderOllama ProviderType = "ollama"

	// ProviderOffline uses hash-based embeddings: always available,
	// deterministic, reduced semantic quality.
	ProviderOffline ProviderType = "offline"
)

// FactoryOptions carries the settings the factory needs; the config
// package maps its embeddings section onto this.
type FactoryOptions struct {
	// Provider selects a provider explicitly; empty means auto-detect.
	Provider string

	// Model overrides the provider's default model.
	Model string

	// Dimensions overrides dimension auto-detection (0 = auto).
	Dimensions int

	// BatchSize for batch requests.
	BatchSize int

	// OllamaHost overrides the Ollama endpoint.
	OllamaHost string

	// OpenAIBaseURL overrides the OpenAI-compatible endpoint.
	OpenAIBaseURL string

	// CacheSize bounds the query-embedding LRU (0 = default).
	CacheSize int
}

// NewEmbedder creates an embedder. An explicit provider that is
// unavailable is an error, never a silent fallback; auto-detection
// walks OpenAI -> Ollama -> offline and logs what it picked.
//
// The MOSAIC_EMBEDDER environment variable overrides the configured
// provider, and MOSAIC_EMBED_CACHE=false disables the query cache.
func NewEmbedder(ctx context.Context, opts FactoryOptions) (Embedder, error) {
	provider := opts.Provider
	if env := os.Getenv("MOSAIC_EMBEDDER"); env != "" {
		provider = env
	}

	var embedder Embedder
	var err error

	switch strings.ToLower(provider) {
	case string(ProviderOpenAI):
		embedder, err = newOpenAIEmbedder(opts)
	case string(ProviderOllama):
		embedder, err = newOllamaEmbedder(ctx, opts)
	case string(ProviderOffline):
		embedder = NewOfflineEmbedder()
	case "":
		embedder, err = autodetectEmbedder(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q (want %s)",
			provider, strings.Join(ValidProviders(), ", "))
	}
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	return embedder, nil
}

// autodetectEmbedder picks the best available provider: OpenAI when a
// key is present, then a reachable Ollama daemon, then offline.
func autodetectEmbedder(ctx context.Context, opts FactoryOptions) (Embedder, error) {
	if os.Getenv("OPENAI_API_KEY") != "" {
		embedder, err := newOpenAIEmbedder(opts)
		if err == nil {
			slog.Debug("embedder_autodetected", slog.String("provider", "openai"))
			return embedder, nil
		}
		slog.Warn("openai_embedder_unavailable", slog.String("error", err.Error()))
	}

	embedder, err := newOllamaEmbedder(ctx, opts)
	if err == nil {
		slog.Debug("embedder_autodetected", slog.String("provider", "ollama"))
		return embedder, nil
	}
	slog.Warn("ollama_embedder_unavailable", slog.String("error", err.Error()))

	slog.Warn("embedder_offline_fallback",
		slog.String("reason", "no provider reachable; semantic quality reduced"))
	return NewOfflineEmbedder(), nil
}

func newOpenAIEmbedder(opts FactoryOptions) (Embedder, error) {
	cfg := DefaultOpenAIConfig()
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	embedder, err := NewOpenAIEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("openai unavailable: %w\n\nTo fix:\n  1. Set OPENAI_API_KEY\n  2. Or use Ollama: mosaic config set embeddings.provider ollama\n  3. Or go offline: mosaic config set embeddings.provider offline", err)
	}
	return embedder, nil
}

func newOllamaEmbedder(ctx context.Context, opts FactoryOptions) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.OllamaHost != "" {
		cfg.Host = opts.OllamaHost
	}
	if host := os.Getenv("MOSAIC_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Pull the model: ollama pull %s\n  3. Or go offline: mosaic config set embeddings.provider offline", err, cfg.Model)
	}
	return embedder, nil
}

// isCacheDisabled checks if the embedding cache is disabled via
// environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("MOSAIC_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProvider normalizes a provider name, defaulting unknowns to
// auto-detection (empty).
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "openai":
		return ProviderOpenAI
	case "ollama":
		return ProviderOllama
	case "offline", "static":
		return ProviderOffline
	default:
		return ""
	}
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{
		string(ProviderOpenAI),
		string(ProviderOllama),
		string(ProviderOffline),
	}
}

// IsValidProvider checks if a provider name is recognized.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo describes a constructed embedder for status output.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo inspects an embedder, unwrapping the cache layer.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	switch inner.(type) {
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderOffline
	}

	return info
}
