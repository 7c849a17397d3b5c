package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndexConfig tunes one modality's HNSW graph.
type VectorIndexConfig struct {
	Modality   Modality
	Dimensions int
	M          int
	EfSearch   int
	Metric     string // "cos" or "l2"
}

// DefaultVectorIndexConfig returns the tuning used for all modality
// indexes.
func DefaultVectorIndexConfig(m Modality, dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Modality:   m,
		Dimensions: dimensions,
		M:          32,
		EfSearch:   64,
		Metric:     "cos",
	}
}

// VectorIndexPath returns the on-disk location of a modality's index
// under the data directory.
func VectorIndexPath(dataDir string, m Modality) string {
	return filepath.Join(dataDir, fmt.Sprintf("vectors-%s.hnsw", m))
}

// HNSWIndex implements VectorIndex with coder/hnsw's pure Go graph.
// One instance serves one modality. Deletion is lazy: the node stays in
// the graph and only the ID mappings drop it, because coder/hnsw can
// corrupt the graph when the last node is removed.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	// ID mapping (string <-> uint64 graph key)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// Filterable attributes by string ID, e.g. content_type, year.
	attrs map[string]map[string]string

	closed bool
}

// hnswSidecar is the gob-encoded companion of the exported graph.
type hnswSidecar struct {
	IDMap   map[string]uint64
	Attrs   map[string]map[string]string
	NextKey uint64
	Config  VectorIndexConfig
}

// NewHNSWIndex creates an empty vector index for one modality.
func NewHNSWIndex(cfg VectorIndexConfig) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector index dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16 // coder/hnsw default recommendation
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20 // coder/hnsw default
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25 // level generation factor (1/ln(M))

	return &HNSWIndex{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		attrs:   make(map[string]map[string]string),
		nextKey: 0,
	}, nil
}

// Modality returns the modality this index serves.
func (x *HNSWIndex) Modality() Modality {
	return x.config.Modality
}

// Dimensions returns the vector dimension the index was built with.
func (x *HNSWIndex) Dimensions() int {
	return x.config.Dimensions
}

// Add inserts vectors with their IDs and filterable attributes.
// Existing IDs are replaced; the old node is orphaned rather than
// removed from the graph.
func (x *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32, attrs []map[string]string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if attrs != nil && len(attrs) != len(ids) {
		return fmt.Errorf("ids and attrs length mismatch: %d vs %d", len(ids), len(attrs))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, v := range vectors {
		if len(v) != x.config.Dimensions {
			return ErrDimensionMismatch{
				Expected: x.config.Dimensions,
				Got:      len(v),
			}
		}
	}

	for i, id := range ids {
		if oldKey, exists := x.idMap[id]; exists {
			delete(x.keyMap, oldKey)
		}

		key := x.nextKey
		x.nextKey++

		// Normalize a copy so the caller's slice stays untouched.
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if x.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		x.graph.Add(hnsw.MakeNode(key, vec))
		x.idMap[id] = key
		x.keyMap[key] = id

		if attrs != nil && len(attrs[i]) > 0 {
			x.attrs[id] = attrs[i]
		} else {
			delete(x.attrs, id)
		}
	}

	return nil
}

// Search returns up to limit candidates ordered by descending
// similarity, skipping orphaned nodes, hits below threshold, and hits
// excluded by filters.
func (x *HNSWIndex) Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string][]string) ([]*Candidate, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if limit <= 0 {
		return []*Candidate{}, nil
	}
	if len(vector) != x.config.Dimensions {
		return nil, ErrDimensionMismatch{
			Expected: x.config.Dimensions,
			Got:      len(vector),
		}
	}
	if x.graph.Len() == 0 {
		return []*Candidate{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	if x.config.Metric == "cos" {
		normalizeVectorInPlace(query)
	}

	// Over-fetch to absorb orphaned nodes and filter misses.
	k := limit + (x.graph.Len() - len(x.idMap))
	if len(filters) > 0 {
		k *= 2
	}
	if k > x.graph.Len() {
		k = x.graph.Len()
	}

	nodes := x.graph.Search(query, k)

	results := make([]*Candidate, 0, limit)
	for _, node := range nodes {
		id, live := x.keyMap[node.Key]
		if !live {
			continue // lazily deleted
		}
		if !matchesFilters(x.attrs[id], filters) {
			continue
		}

		distance := x.graph.Distance(query, node.Value)
		score := float64(distanceToScore(distance, x.config.Metric))
		if score < threshold {
			continue
		}

		results = append(results, &Candidate{
			ID:       id,
			Modality: x.config.Modality,
			Score:    score,
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by ID. Nodes are orphaned in the graph and
// reclaimed on the next full rebuild.
func (x *HNSWIndex) Delete(ctx context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, id := range ids {
		if key, exists := x.idMap[id]; exists {
			delete(x.keyMap, key)
			delete(x.idMap, id)
			delete(x.attrs, id)
		}
	}

	return nil
}

// Contains checks if an ID exists.
func (x *HNSWIndex) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return false
	}
	_, exists := x.idMap[id]
	return exists
}

// Count returns the number of live vectors.
func (x *HNSWIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0
	}
	return len(x.idMap)
}

// Orphans returns the number of lazily deleted nodes still occupying
// the graph. A rebuild reclaims them.
func (x *HNSWIndex) Orphans() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0
	}
	return x.graph.Len() - len(x.idMap)
}

// Save persists the graph and its sidecar metadata atomically
// (temp file + rename).
func (x *HNSWIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := x.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	if err := x.saveSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("save index metadata: %w", err)
	}

	return nil
}

func (x *HNSWIndex) saveSidecar(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswSidecar{
		IDMap:   x.idMap,
		Attrs:   x.attrs,
		NextKey: x.nextKey,
		Config:  x.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp metadata file during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load restores the graph and sidecar metadata written by Save.
func (x *HNSWIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := x.loadSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("load index metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := x.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	return nil
}

func (x *HNSWIndex) loadSidecar(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswSidecar
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	x.idMap = meta.IDMap
	x.nextKey = meta.NextKey
	x.config = meta.Config
	x.attrs = meta.Attrs
	if x.attrs == nil {
		x.attrs = make(map[string]map[string]string)
	}
	x.keyMap = make(map[uint64]string, len(x.idMap))
	for id, key := range x.idMap {
		x.keyMap[key] = id
	}

	return nil
}

// Close releases the graph. Further calls fail.
func (x *HNSWIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	x.graph = nil

	return nil
}

// ReadIndexDimensions reads the embedding dimension a saved index was
// built with. Returns 0 when no index exists yet, so callers can treat
// that as a fresh start.
func ReadIndexDimensions(indexPath string) (int, error) {
	file, err := os.Open(indexPath + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open index metadata: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close index metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswSidecar
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode index metadata: %w", err)
	}

	return meta.Config.Dimensions, nil
}

var _ VectorIndex = (*HNSWIndex)(nil)

// matchesFilters reports whether attrs satisfies every filter: for each
// filter key the attribute value must be one of the allowed values.
// Records missing a filtered attribute are excluded.
func matchesFilters(attrs map[string]string, filters map[string][]string) bool {
	if len(filters) == 0 {
		return true
	}
	for key, allowed := range filters {
		val, ok := attrs[key]
		if !ok {
			return false
		}
		match := false
		for _, want := range allowed {
			if val == want {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance to a similarity score in [0,1].
// Cosine distance ranges 0..2; L2 ranges 0..inf.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
