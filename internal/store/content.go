package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
)

// ContentDBPath returns the on-disk location of the content database
// under the data directory.
func ContentDBPath(dataDir string) string {
	return filepath.Join(dataDir, "content.db")
}

// SQLiteContentStore implements ContentStore on modernc.org/sqlite.
// It holds the authoritative record for every indexed content item and
// a small key-value state table for the index generation counter and
// the embedding fingerprint.
type SQLiteContentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ ContentStore = (*SQLiteContentStore)(nil)

// validateContentDBIntegrity checks a content database before opening.
// Returns nil when the file is absent (it will be created) or healthy.
func validateContentDBIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='content'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("content table missing")
	}

	return nil
}

// NewSQLiteContentStore opens or creates the content database at path.
// An empty path creates an in-memory store for testing. A corrupted
// database is cleared and recreated; a reindex restores its contents.
func NewSQLiteContentStore(path string) (*SQLiteContentStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}

		if validErr := validateContentDBIntegrity(path); validErr != nil {
			slog.Warn("content_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("content database corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("content_db_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; SQLite serializes writes anyway and this avoids
	// lock contention entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set pragmas
	// explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // 64MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteContentStore{
		db:   db,
		path: path,
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteContentStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per content item; attrs holds the type-specific fields
	-- as JSON.
	CREATE TABLE IF NOT EXISTS content (
		id           TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		doc_id       TEXT NOT NULL,
		created_at   INTEGER NOT NULL,
		attrs        TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_content_doc_id ON content(doc_id);
	CREATE INDEX IF NOT EXISTS idx_content_type ON content(content_type);

	-- Runtime state: index generation, embedding fingerprint.
	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put stores records in one transaction, replacing existing IDs.
// Records that fail validation reject the whole batch.
func (s *SQLiteContentStore) Put(ctx context.Context, records []*ContentRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid content record: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("content store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO content (id, content_type, title, doc_id, created_at, attrs)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		attrs, err := marshalAttrs(r)
		if err != nil {
			return fmt.Errorf("encode attrs for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, string(r.ContentType), r.Title, r.DocID, r.CreatedAt.UTC().Unix(), attrs); err != nil {
			return fmt.Errorf("insert content %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Get resolves one ID to its record. Missing rows, unknown content
// types, and unparseable attributes all come back as a not-found error
// so enrichment can drop the candidate instead of failing the search.
func (s *SQLiteContentStore) Get(ctx context.Context, id string) (*ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("content store is closed")
	}

	var (
		contentType string
		title       string
		docID       string
		createdAt   int64
		attrs       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT content_type, title, doc_id, created_at, attrs
		FROM content WHERE id = ?`, id).
		Scan(&contentType, &title, &docID, &createdAt, &attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mserrors.ContentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query content %s: %w", id, err)
	}

	record := &ContentRecord{
		ID:          id,
		ContentType: ContentType(contentType),
		Title:       title,
		DocID:       docID,
		CreatedAt:   time.Unix(createdAt, 0).UTC(),
	}

	if err := unmarshalAttrs(record, attrs); err != nil {
		slog.Warn("content_record_invalid",
			slog.String("id", id),
			slog.String("content_type", contentType),
			slog.String("error", err.Error()))
		return nil, mserrors.ContentNotFound(id)
	}

	return record, nil
}

// Delete removes records by ID.
func (s *SQLiteContentStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("content store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM content WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete content %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// IDsByDoc returns the IDs of all records derived from one source
// document, so a re-ingest can clear its stale entries from every
// index.
func (s *SQLiteContentStore) IDsByDoc(ctx context.Context, docID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("content store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM content WHERE doc_id = ? ORDER BY id`, docID)
	if err != nil {
		return nil, fmt.Errorf("query content by doc %s: %w", docID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan content id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteByDoc removes all records derived from one source document.
func (s *SQLiteContentStore) DeleteByDoc(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("content store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete content by doc %s: %w", docID, err)
	}

	return nil
}

// Count returns the total number of records.
func (s *SQLiteContentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("content store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return count, nil
}

// CountByType returns record counts grouped by content type.
func (s *SQLiteContentStore) CountByType(ctx context.Context) (map[ContentType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("content store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_type, COUNT(*) FROM content GROUP BY content_type`)
	if err != nil {
		return nil, fmt.Errorf("count content by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[ContentType]int)
	for rows.Next() {
		var ct string
		var n int
		if err := rows.Scan(&ct, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[ContentType(ct)] = n
	}

	return counts, rows.Err()
}

// Generation returns the current index generation counter, 0 before the
// first completed ingest.
func (s *SQLiteContentStore) Generation(ctx context.Context) (uint64, error) {
	value, err := s.GetState(ctx, StateKeyGeneration)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	gen, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", value, err)
	}
	return gen, nil
}

// BumpGeneration increments the generation counter and returns the new
// value. Cached search results keyed on the old generation stop
// matching once this runs.
func (s *SQLiteContentStore) BumpGeneration(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("content store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current uint64
	var value string
	err = tx.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, StateKeyGeneration).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return 0, fmt.Errorf("read generation: %w", err)
	default:
		current, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse generation %q: %w", value, err)
		}
	}

	next := current + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`,
		StateKeyGeneration, strconv.FormatUint(next, 10)); err != nil {
		return 0, fmt.Errorf("write generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit generation: %w", err)
	}

	return next, nil
}

// GetState reads a state value; missing keys return "".
func (s *SQLiteContentStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("content store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read state %s: %w", key, err)
	}
	return value, nil
}

// SetState writes a state value.
func (s *SQLiteContentStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("content store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("write state %s: %w", key, err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteContentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// marshalAttrs encodes the variant matching the record's content type.
func marshalAttrs(r *ContentRecord) (string, error) {
	var v interface{}
	switch r.ContentType {
	case ContentTypeTextChunk:
		v = r.Text
	case ContentTypeImage:
		v = r.Image
	case ContentTypeVideo:
		v = r.Video
	case ContentTypeKeyframe:
		v = r.Keyframe
	default:
		return "", fmt.Errorf("unknown content type %q", r.ContentType)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalAttrs decodes attrs into the variant matching the record's
// content type and validates the result.
func unmarshalAttrs(r *ContentRecord, attrs string) error {
	switch r.ContentType {
	case ContentTypeTextChunk:
		r.Text = &TextAttrs{}
		if err := json.Unmarshal([]byte(attrs), r.Text); err != nil {
			return fmt.Errorf("decode text attrs: %w", err)
		}
	case ContentTypeImage:
		r.Image = &ImageAttrs{}
		if err := json.Unmarshal([]byte(attrs), r.Image); err != nil {
			return fmt.Errorf("decode image attrs: %w", err)
		}
	case ContentTypeVideo:
		r.Video = &VideoAttrs{}
		if err := json.Unmarshal([]byte(attrs), r.Video); err != nil {
			return fmt.Errorf("decode video attrs: %w", err)
		}
	case ContentTypeKeyframe:
		r.Keyframe = &KeyframeAttrs{}
		if err := json.Unmarshal([]byte(attrs), r.Keyframe); err != nil {
			return fmt.Errorf("decode keyframe attrs: %w", err)
		}
	default:
		return fmt.Errorf("unknown content type %q", r.ContentType)
	}

	return r.Validate()
}
