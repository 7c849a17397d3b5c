package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Modality keys recognized in fusion weight maps.
const (
	ModalityText    = "text"
	ModalityImage   = "image"
	ModalityVideo   = "video"
	ModalityKeyword = "keyword"
)

// Content-type keys recognized in bundle budget/cap maps.
const (
	ContentText     = "text"
	ContentImage    = "image"
	ContentVideo    = "video"
	ContentKeyframe = "keyframe"
)

// Config represents the complete Mosaic configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Library    LibraryConfig    `yaml:"library" json:"library"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Bundle     BundleConfig     `yaml:"bundle" json:"bundle"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// LibraryConfig locates the media library and its storage directory.
type LibraryConfig struct {
	// Root is the media library root. Empty means the current directory.
	Root string `yaml:"root" json:"root"`
	// DataDir overrides where indexes and the content store live.
	// Empty means <root>/.mosaic.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig is the retrieval configuration surface.
type SearchConfig struct {
	// DefaultLimit is the result count used when the caller passes none.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the per-request result count.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// SimilarityThreshold is the minimum cosine similarity (0.0-1.0) a
	// candidate must reach in its modality search.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// FusionStrategy selects how ranked lists merge: "rrf" or "weighted".
	FusionStrategy string `yaml:"fusion_strategy" json:"fusion_strategy"`

	// FusionWeights assigns a per-list weight keyed by modality
	// ("text", "image", "video", "keyword").
	FusionWeights map[string]float64 `yaml:"fusion_weights" json:"fusion_weights"`

	// RRFConstant is the RRF smoothing parameter (k). Default: 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// HybridKeyword also runs a keyword (BM25) search over text content
	// and fuses it with the semantic lists.
	HybridKeyword bool `yaml:"hybrid_keyword" json:"hybrid_keyword"`

	// MaxQueryLength bounds raw query text; longer input is rejected.
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`

	// RequestDeadlineMS is the aggregate per-request deadline. When it
	// expires mid-pipeline the caller gets a partial bundle, not an error.
	RequestDeadlineMS int `yaml:"request_deadline_ms" json:"request_deadline_ms"`

	// SearchTimeoutMS bounds each per-modality index call.
	SearchTimeoutMS int `yaml:"search_timeout_ms" json:"search_timeout_ms"`

	// EmbedTimeoutMS bounds the embedding gateway call.
	EmbedTimeoutMS int `yaml:"embed_timeout_ms" json:"embed_timeout_ms"`

	// EnrichTimeoutMS bounds each content-record lookup.
	EnrichTimeoutMS int `yaml:"enrich_timeout_ms" json:"enrich_timeout_ms"`

	// EnrichWorkers bounds concurrent enrichment lookups.
	EnrichWorkers int `yaml:"enrich_workers" json:"enrich_workers"`

	// DedupThreshold is the word-overlap ratio at or above which two
	// results in one list count as near-duplicates. 0 disables the stage.
	DedupThreshold float64 `yaml:"dedup_threshold" json:"dedup_threshold"`

	// LexiconPath points at an optional YAML overlay extending the
	// built-in misspelling/stop-word/synonym tables.
	LexiconPath string `yaml:"lexicon_path" json:"lexicon_path"`
}

// BundleConfig shapes the context bundle.
type BundleConfig struct {
	// CharBudget truncates each rendered item's text, keyed by content
	// type. 0 means unbounded.
	CharBudget map[string]int `yaml:"char_budget" json:"char_budget"`

	// ItemCap bounds items per section, keyed by content type.
	ItemCap map[string]int `yaml:"item_cap" json:"item_cap"`
}

// EmbeddingsConfig configures the embedding gateway.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "openai", "ollama", "offline", or
	// empty for auto-detection (ollama if reachable, offline otherwise).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // 0 = auto-detect
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// OpenAIBaseURL overrides the OpenAI-compatible endpoint. The API key
	// is read from OPENAI_API_KEY, never from this file.
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`

	// CacheSize is the embedding LRU cache capacity (entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// CacheConfig configures the bundle cache facade.
type CacheConfig struct {
	// Backend selects the cache: "memory" (in-process LRU) or "redis".
	Backend string `yaml:"backend" json:"backend"`

	// TTLSeconds bounds how long a bundle may be served from cache.
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`

	// MaxEntries caps the in-memory cache size.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
}

// IngestConfig configures library scanning and chunking.
type IngestConfig struct {
	// Include/Exclude are doublestar glob patterns relative to the root.
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// ChunkSize/ChunkOverlap shape text chunking (characters).
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// Workers bounds concurrent embedding during ingest.
	Workers int `yaml:"workers" json:"workers"`

	// MaxFiles aborts a scan that would exceed this many files.
	MaxFiles int `yaml:"max_files" json:"max_files"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// defaultExcludePatterns are always excluded from library scans.
var defaultExcludePatterns = []string{
	"**/.mosaic/**",
	"**/.git/**",
	"**/node_modules/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/*.tmp",
	"**/*.part",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Library: LibraryConfig{
			Root:    "",
			DataDir: "",
		},
		Search: SearchConfig{
			DefaultLimit:        10,
			MaxLimit:            50,
			SimilarityThreshold: 0.25,
			FusionStrategy:      "rrf",
			// Weights apply only to the weighted strategy; RRF is
			// rank-based and ignores them.
			FusionWeights: map[string]float64{
				ModalityText:    1.0,
				ModalityImage:   1.0,
				ModalityVideo:   1.0,
				ModalityKeyword: 0.8,
			},
			RRFConstant:       60,
			HybridKeyword:     true,
			MaxQueryLength:    512,
			RequestDeadlineMS: 5000,
			SearchTimeoutMS:   1500,
			EmbedTimeoutMS:    2000,
			EnrichTimeoutMS:   500,
			EnrichWorkers:     8,
			DedupThreshold:    0.8,
			LexiconPath:       "",
		},
		Bundle: BundleConfig{
			CharBudget: map[string]int{
				ContentText:     500,
				ContentImage:    0, // captions are short; unbounded
				ContentVideo:    300,
				ContentKeyframe: 0,
			},
			ItemCap: map[string]int{
				ContentText:     10,
				ContentImage:    5,
				ContentVideo:    3,
				ContentKeyframe: 5,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "", // auto-detect: ollama if reachable, offline otherwise
			Model:         "nomic-embed-text",
			Dimensions:    0,
			BatchSize:     32,
			OllamaHost:    "",
			OpenAIBaseURL: "",
			CacheSize:     2048,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLSeconds: 300,
			MaxEntries: 512,
			RedisAddr:  "localhost:6379",
		},
		Ingest: IngestConfig{
			Include:      []string{},
			Exclude:      defaultExcludePatterns,
			ChunkSize:    1500,
			ChunkOverlap: 200,
			Workers:      runtime.NumCPU(),
			MaxFiles:     100000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "debug",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/mosaic/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/mosaic/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mosaic", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "mosaic", "config.yaml")
	}
	return filepath.Join(home, ".config", "mosaic", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the library rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/mosaic/config.yaml)
//  3. Library config (.mosaic.yaml in the library root)
//  4. Environment variables (MOSAIC_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .mosaic.yaml or .mosaic.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".mosaic.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".mosaic.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Library
	if other.Library.Root != "" {
		c.Library.Root = other.Library.Root
	}
	if other.Library.DataDir != "" {
		c.Library.DataDir = other.Library.DataDir
	}

	// Search
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.SimilarityThreshold != 0 {
		c.Search.SimilarityThreshold = other.Search.SimilarityThreshold
	}
	if other.Search.FusionStrategy != "" {
		c.Search.FusionStrategy = other.Search.FusionStrategy
	}
	if len(other.Search.FusionWeights) > 0 {
		// Per-key merge so a file can retune one modality without
		// erasing the rest.
		for k, v := range other.Search.FusionWeights {
			c.Search.FusionWeights[k] = v
		}
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.HybridKeyword {
		c.Search.HybridKeyword = true
	}
	if other.Search.MaxQueryLength != 0 {
		c.Search.MaxQueryLength = other.Search.MaxQueryLength
	}
	if other.Search.RequestDeadlineMS != 0 {
		c.Search.RequestDeadlineMS = other.Search.RequestDeadlineMS
	}
	if other.Search.SearchTimeoutMS != 0 {
		c.Search.SearchTimeoutMS = other.Search.SearchTimeoutMS
	}
	if other.Search.EmbedTimeoutMS != 0 {
		c.Search.EmbedTimeoutMS = other.Search.EmbedTimeoutMS
	}
	if other.Search.EnrichTimeoutMS != 0 {
		c.Search.EnrichTimeoutMS = other.Search.EnrichTimeoutMS
	}
	if other.Search.EnrichWorkers != 0 {
		c.Search.EnrichWorkers = other.Search.EnrichWorkers
	}
	if other.Search.DedupThreshold != 0 {
		c.Search.DedupThreshold = other.Search.DedupThreshold
	}
	if other.Search.LexiconPath != "" {
		c.Search.LexiconPath = other.Search.LexiconPath
	}

	// Bundle
	for k, v := range other.Bundle.CharBudget {
		c.Bundle.CharBudget[k] = v
	}
	for k, v := range other.Bundle.ItemCap {
		c.Bundle.ItemCap[k] = v
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = other.Embeddings.OpenAIBaseURL
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Cache
	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.TTLSeconds != 0 {
		c.Cache.TTLSeconds = other.Cache.TTLSeconds
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}
	if other.Cache.RedisAddr != "" {
		c.Cache.RedisAddr = other.Cache.RedisAddr
	}

	// Ingest
	if len(other.Ingest.Include) > 0 {
		c.Ingest.Include = other.Ingest.Include
	}
	if len(other.Ingest.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Ingest.Exclude = append(c.Ingest.Exclude, other.Ingest.Exclude...)
	}
	if other.Ingest.ChunkSize != 0 {
		c.Ingest.ChunkSize = other.Ingest.ChunkSize
	}
	if other.Ingest.ChunkOverlap != 0 {
		c.Ingest.ChunkOverlap = other.Ingest.ChunkOverlap
	}
	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.MaxFiles != 0 {
		c.Ingest.MaxFiles = other.Ingest.MaxFiles
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies MOSAIC_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MOSAIC_FUSION_STRATEGY"); v != "" {
		c.Search.FusionStrategy = v
	}
	if v := os.Getenv("MOSAIC_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("MOSAIC_SIMILARITY_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t >= 0 && t <= 1 {
			c.Search.SimilarityThreshold = t
		}
	}
	if v := os.Getenv("MOSAIC_REQUEST_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Search.RequestDeadlineMS = ms
		}
	}
	if v := os.Getenv("MOSAIC_HYBRID_KEYWORD"); v != "" {
		c.Search.HybridKeyword = strings.ToLower(v) == "true" || v == "1"
	}

	if v := os.Getenv("MOSAIC_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// MOSAIC_EMBEDDER is an alias for MOSAIC_EMBEDDINGS_PROVIDER
	if v := os.Getenv("MOSAIC_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MOSAIC_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("MOSAIC_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("MOSAIC_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}

	if v := os.Getenv("MOSAIC_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("MOSAIC_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}

	if v := os.Getenv("MOSAIC_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("MOSAIC_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search.max_limit must be positive, got %d", c.Search.MaxLimit)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) must not exceed search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be between 0 and 1, got %f",
			c.Search.SimilarityThreshold)
	}

	switch strings.ToLower(c.Search.FusionStrategy) {
	case "rrf", "weighted":
	default:
		return fmt.Errorf("search.fusion_strategy must be 'rrf' or 'weighted', got %s",
			c.Search.FusionStrategy)
	}

	for key, w := range c.Search.FusionWeights {
		switch key {
		case ModalityText, ModalityImage, ModalityVideo, ModalityKeyword:
		default:
			return fmt.Errorf("search.fusion_weights has unknown modality %q", key)
		}
		if w < 0 {
			return fmt.Errorf("search.fusion_weights.%s must be non-negative, got %f", key, w)
		}
	}

	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.MaxQueryLength <= 0 {
		return fmt.Errorf("search.max_query_length must be positive, got %d", c.Search.MaxQueryLength)
	}
	if c.Search.RequestDeadlineMS <= 0 {
		return fmt.Errorf("search.request_deadline_ms must be positive, got %d", c.Search.RequestDeadlineMS)
	}
	if c.Search.DedupThreshold < 0 || c.Search.DedupThreshold > 1 {
		return fmt.Errorf("search.dedup_threshold must be between 0 and 1, got %f", c.Search.DedupThreshold)
	}

	for key, budget := range c.Bundle.CharBudget {
		if !validContentKey(key) {
			return fmt.Errorf("bundle.char_budget has unknown content type %q", key)
		}
		if budget < 0 {
			return fmt.Errorf("bundle.char_budget.%s must be non-negative, got %d", key, budget)
		}
	}
	for key, cap := range c.Bundle.ItemCap {
		if !validContentKey(key) {
			return fmt.Errorf("bundle.item_cap has unknown content type %q", key)
		}
		if cap <= 0 {
			return fmt.Errorf("bundle.item_cap.%s must be positive, got %d", key, cap)
		}
	}

	if c.Embeddings.Provider != "" { // empty triggers auto-detection
		validProviders := map[string]bool{"openai": true, "ollama": true, "offline": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'openai', 'ollama', 'offline', or empty (auto-detect), got %s",
				c.Embeddings.Provider)
		}
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got %s", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive, got %d", c.Cache.TTLSeconds)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s",
			c.Server.LogLevel)
	}

	return nil
}

func validContentKey(key string) bool {
	switch key {
	case ContentText, ContentImage, ContentVideo, ContentKeyframe:
		return true
	}
	return false
}

// DataDir resolves the storage directory for the library rooted at root.
func (c *Config) DataDir(root string) string {
	if c.Library.DataDir != "" {
		return c.Library.DataDir
	}
	return filepath.Join(root, ".mosaic")
}

// FindLibraryRoot finds the library root directory by walking up from
// startDir looking for a .mosaic.yaml/.yml file or a .mosaic data
// directory. Falls back to startDir.
func FindLibraryRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, ".mosaic.yaml")) ||
			fileExists(filepath.Join(currentDir, ".mosaic.yml")) ||
			dirExists(filepath.Join(currentDir, ".mosaic")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root; treat the starting dir as the library
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
