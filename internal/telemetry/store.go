package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// TelemetryDBPath returns the on-disk location of the telemetry database
// under the data directory. Telemetry lives in its own file so flushes
// never contend with content-store writes.
func TelemetryDBPath(dataDir string) string {
	return filepath.Join(dataDir, "telemetry.db")
}

// SQLiteMetricsStore persists drained telemetry aggregates to SQLite.
// All saves are additive upserts, so each drained window lands exactly
// once regardless of flush cadence.
type SQLiteMetricsStore struct {
	db *sql.DB
}

var _ MetricsStore = (*SQLiteMetricsStore)(nil)

// NewSQLiteMetricsStore opens or creates the telemetry database at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set pragmas
	// explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteMetricsStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize telemetry schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteMetricsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_intent_stats (
		date   TEXT NOT NULL,
		intent TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, intent)
	);

	CREATE TABLE IF NOT EXISTS query_strategy_stats (
		date     TEXT NOT NULL,
		strategy TEXT NOT NULL,
		count    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, strategy)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term       TEXT PRIMARY KEY,
		count      INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		query      TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date   TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveIntentCounts adds counts onto the date's per-intent rows.
func (s *SQLiteMetricsStore) SaveIntentCounts(date string, counts map[string]int64) error {
	return s.saveDatedCounts("query_intent_stats", "intent", date, counts)
}

// SaveStrategyCounts adds counts onto the date's per-strategy rows.
func (s *SQLiteMetricsStore) SaveStrategyCounts(date string, counts map[string]int64) error {
	return s.saveDatedCounts("query_strategy_stats", "strategy", date, counts)
}

func (s *SQLiteMetricsStore) saveDatedCounts(table, keyCol, date string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (date, %s, count) VALUES (?, ?, ?)
		ON CONFLICT(date, %s) DO UPDATE SET count = count + excluded.count`,
		table, keyCol, keyCol))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("upsert %s %q: %w", keyCol, key, err)
		}
	}

	return tx.Commit()
}

// UpsertTermCounts adds term frequencies onto existing rows.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO query_terms (term, count, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for term, count := range terms {
		if _, err := stmt.Exec(term, count, now); err != nil {
			return fmt.Errorf("upsert term %q: %w", term, err)
		}
	}

	return tx.Commit()
}

// GetTopTerms returns the most frequent terms, highest count first.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT term, count FROM query_terms
		ORDER BY count DESC, term ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery records one query that returned nothing and trims
// the table to the most recent 100 rows.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO zero_result_queries (query, created_at) VALUES (?, ?)`,
		query, timestamp.Unix()); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM zero_result_queries WHERE id NOT IN (
			SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT 100
		)`); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	return tx.Commit()
}

// GetZeroResultQueries returns recent zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT query FROM zero_result_queries
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts adds latency bucket counts onto the date's rows.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	if len(counts) == 0 {
		return nil
	}

	byBucket := make(map[string]int64, len(counts))
	for bucket, count := range counts {
		byBucket[string(bucket)] = count
	}
	return s.saveDatedCounts("query_latency_stats", "bucket", date, byBucket)
}

// GetLatencyCounts sums the latency distribution over an inclusive date
// range (YYYY-MM-DD).
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(`
		SELECT bucket, SUM(count) FROM query_latency_stats
		WHERE date >= ? AND date <= ? GROUP BY bucket`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[LatencyBucket]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan latency bucket: %w", err)
		}
		counts[LatencyBucket(bucket)] = count
	}
	return counts, rows.Err()
}

// GetIntentCounts sums intent counts over an inclusive date range
// (YYYY-MM-DD).
func (s *SQLiteMetricsStore) GetIntentCounts(from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT intent, SUM(count) FROM query_intent_stats
		WHERE date >= ? AND date <= ? GROUP BY intent`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query intent counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var intent string
		var count int64
		if err := rows.Scan(&intent, &count); err != nil {
			return nil, fmt.Errorf("scan intent count: %w", err)
		}
		counts[intent] = count
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteMetricsStore) Close() error {
	return s.db.Close()
}
