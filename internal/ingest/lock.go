package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// writeLock serializes ingest runs across processes. The retrieval side
// never takes it; readers work against the last completed generation.
type writeLock struct {
	flock *flock.Flock
}

// newWriteLock creates the lock at <dataDir>/.ingest.lock.
func newWriteLock(dataDir string) *writeLock {
	return &writeLock{flock: flock.New(filepath.Join(dataDir, ".ingest.lock"))}
}

// Acquire takes the lock without blocking. A held lock means another
// ingest is running; the caller reports that instead of queueing.
func (l *writeLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another ingest is already running (lock held at %s)", l.flock.Path())
	}
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *writeLock) Release() {
	_ = l.flock.Unlock()
}
