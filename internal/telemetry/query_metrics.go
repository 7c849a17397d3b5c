// Package telemetry aggregates query telemetry in memory (intent and
// fusion-strategy counts, latency buckets, zero-result queries, cache
// hits) and periodically flushes the aggregates to a local SQLite store.
// Nothing ever leaves the machine.
package telemetry

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one completed search request.
type QueryEvent struct {
	RequestID   string
	Query       string
	Intent      string
	Strategy    string
	Modalities  []string
	ResultCount int
	CacheHit    bool
	Partial     bool
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the query returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest-first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current item count.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear empties the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// ExtractTerms lowercases a query and keeps words of three or more
// characters for term-frequency tracking.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// ZeroResultQuery is one query that returned nothing, pending flush.
type ZeroResultQuery struct {
	Query string
	At    time.Time
}

// Snapshot is an immutable view of the collector. Lifetime counters run
// since construction; the distribution maps and top terms cover the
// window since the last flush.
type Snapshot struct {
	IntentCounts        map[string]int64        `json:"intent_counts"`
	StrategyCounts      map[string]int64        `json:"strategy_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	CacheHits           int64                   `json:"cache_hits"`
	PartialResults      int64                   `json:"partial_results"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries with no results.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// CacheHitRate returns the share of queries served from the bundle cache.
func (s *Snapshot) CacheHitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalQueries)
}

// MetricsStore persists drained aggregates.
type MetricsStore interface {
	// SaveIntentCounts adds intent counts onto the date's row.
	SaveIntentCounts(date string, counts map[string]int64) error

	// SaveStrategyCounts adds fusion-strategy counts onto the date's row.
	SaveStrategyCounts(date string, counts map[string]int64) error

	// UpsertTermCounts adds term frequencies.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms returns the top terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records one query that returned nothing.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries returns recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts adds latency bucket counts onto the date's row.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts sums the latency distribution over a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// GetIntentCounts sums intent counts over a date range.
	GetIntentCounts(from, to string) (map[string]int64, error)

	Close() error
}

// MetricsConfig configures the collector.
type MetricsConfig struct {
	// TopTermsCapacity bounds the term-frequency LRU.
	TopTermsCapacity int

	// ZeroResultsCapacity bounds the recent zero-result buffer.
	ZeroResultsCapacity int

	// FlushInterval is the auto-flush period. 0 disables auto-flush.
	FlushInterval time.Duration
}

// DefaultMetricsConfig returns the standard capacities with a one-minute
// flush.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		FlushInterval:       60 * time.Second,
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use. With a
// store attached, aggregates drain to it on each flush; counts are added
// to the store exactly once, so repeated flushes never double-count.
type QueryMetrics struct {
	mu sync.Mutex

	intents     map[string]int64
	strategies  map[string]int64
	latencies   map[LatencyBucket]int64
	topTerms    *lru.Cache[string, int64]
	zeroRecent  *CircularBuffer[string]
	zeroPending []ZeroResultQuery

	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	partialResults  int64
	startTime       time.Time

	store       MetricsStore
	config      MetricsConfig
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with default configuration. A nil
// store keeps metrics in memory only.
func NewQueryMetrics(store MetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store MetricsStore, cfg MetricsConfig) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	m := &QueryMetrics{
		intents:    make(map[string]int64),
		strategies: make(map[string]int64),
		latencies:  make(map[LatencyBucket]int64),
		topTerms:   topTerms,
		zeroRecent: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		startTime:  time.Now(),
		store:      store,
		config:     cfg,
		stopCh:     make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one completed query. Non-blocking beyond the mutex.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	intent := event.Intent
	if intent == "" {
		intent = "general"
	}
	m.intents[intent]++
	if event.Strategy != "" {
		m.strategies[event.Strategy]++
	}
	m.totalQueries++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroRecent.Add(event.Query)
		m.zeroResultCount++
		ts := event.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		m.zeroPending = append(m.zeroPending, ZeroResultQuery{Query: event.Query, At: ts})
	}

	if event.CacheHit {
		m.cacheHits++
	}
	if event.Partial {
		m.partialResults++
	}

	m.latencies[LatencyToBucket(event.Latency)]++
}

// Snapshot returns the current metrics for reporting.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	intents := make(map[string]int64, len(m.intents))
	for k, v := range m.intents {
		intents[k] = v
	}
	strategies := make(map[string]int64, len(m.strategies))
	for k, v := range m.strategies {
		strategies[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	topTerms := m.termCountsLocked()

	return &Snapshot{
		IntentCounts:        intents,
		StrategyCounts:      strategies,
		LatencyDistribution: latencies,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroRecent.Items(),
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		CacheHits:           m.cacheHits,
		PartialResults:      m.partialResults,
		Since:               m.startTime,
	}
}

// termCountsLocked lists the term LRU's contents sorted by count
// descending. Callers hold m.mu.
func (m *QueryMetrics) termCountsLocked() []TermCount {
	keys := m.topTerms.Keys()
	terms := make([]TermCount, 0, len(keys))
	for _, key := range keys {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			if terms[j].Count > terms[i].Count {
				terms[i], terms[j] = terms[j], terms[i]
			}
		}
	}
	return terms
}

// Flush drains the windowed aggregates to the store. On store failure the
// drained window is dropped rather than retried; lifetime counters are
// unaffected. Safe to call without a store.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	intents := m.intents
	strategies := m.strategies
	latencies := m.latencies
	terms := m.termCountsLocked()
	zeroPending := m.zeroPending

	m.intents = make(map[string]int64)
	m.strategies = make(map[string]int64)
	m.latencies = make(map[LatencyBucket]int64)
	m.topTerms.Purge()
	m.zeroPending = nil
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")

	if len(intents) > 0 {
		if err := m.store.SaveIntentCounts(today, intents); err != nil {
			return err
		}
	}
	if len(strategies) > 0 {
		if err := m.store.SaveStrategyCounts(today, strategies); err != nil {
			return err
		}
	}
	if len(latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, latencies); err != nil {
			return err
		}
	}
	if len(terms) > 0 {
		termCounts := make(map[string]int64, len(terms))
		for _, tc := range terms {
			termCounts[tc.Term] = tc.Count
		}
		if err := m.store.UpsertTermCounts(termCounts); err != nil {
			return err
		}
	}
	for _, zq := range zeroPending {
		if err := m.store.AddZeroResultQuery(zq.Query, zq.At); err != nil {
			return err
		}
	}

	return nil
}

// Close stops auto-flush, drains once more, and marks the collector
// closed. Later Record calls are dropped.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
