package query

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce coalesces the event bursts editors emit when
// saving a file.
const DefaultReloadDebounce = 200 * time.Millisecond

// LexiconWatcher reloads a lexicon overlay file when it changes and swaps
// the merged lexicon into a Processor. The watch covers the overlay's
// parent directory because most editors replace files via rename, which
// drops a watch on the file itself.
type LexiconWatcher struct {
	processor *Processor
	path      string
	debounce  time.Duration
	logger    *slog.Logger

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
	stopCh  chan struct{}
	stopped bool
}

// NewLexiconWatcher creates a watcher for the overlay at path. The overlay
// is loaded once immediately so the Processor starts with the merged
// tables; a missing file at startup is an error, a file that later becomes
// unreadable only logs.
func NewLexiconWatcher(p *Processor, path string, logger *slog.Logger) (*LexiconWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve overlay path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &LexiconWatcher{
		processor: p,
		path:      absPath,
		debounce:  DefaultReloadDebounce,
		logger:    logger,
		fsw:       fsw,
		stopCh:    make(chan struct{}),
	}

	if err := w.reload(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch overlay directory: %w", err)
	}

	return w, nil
}

// Start runs the watch loop until the context is cancelled or Stop is
// called. Run it in its own goroutine.
func (w *LexiconWatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("lexicon_watch_error", slog.String("error", err.Error()))
		}
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *LexiconWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.stopCh)
	return w.fsw.Close()
}

func (w *LexiconWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.scheduleReload()
}

// scheduleReload resets the debounce timer so a burst of events produces
// one reload.
func (w *LexiconWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(); err != nil {
			w.logger.Warn("lexicon_reload_failed",
				slog.String("path", w.path),
				slog.String("error", err.Error()),
			)
		}
	})
}

func (w *LexiconWatcher) reload() error {
	overlay, err := LoadOverlay(w.path)
	if err != nil {
		return err
	}

	merged := NewLexicon().WithOverlay(overlay)
	w.processor.SetLexicon(merged)

	miss, stop, syn := merged.Sizes()
	w.logger.Info("lexicon_reloaded",
		slog.String("path", w.path),
		slog.Int("misspellings", miss),
		slog.Int("stop_words", stop),
		slog.Int("synonyms", syn),
	)
	return nil
}
