package ui

import (
	"sync"
	"time"
)

// historyCap bounds the per-second completion buckets a Tracker keeps.
const historyCap = 64

// rateWindow is how many trailing seconds the throughput estimate
// averages over.
const rateWindow = 5

// Tracker accumulates ingest progress. The ingest goroutine writes
// through the Renderer while the view reads snapshots on its tick, so
// every method locks.
type Tracker struct {
	mu sync.Mutex

	now func() time.Time

	stage        Stage
	current      int
	total        int
	currentFile  string
	started      time.Time
	stageStarted time.Time
	errors       int
	warnings     int

	// buckets counts completions per elapsed second of the current
	// stage; buckets[i] covers second bucketBase+i.
	buckets    []int
	bucketBase int
}

// NewTracker creates a Tracker with the wall clock.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.started = t.now()
	t.stageStarted = t.started
	return t
}

// SetStage enters a stage, resetting the per-stage counters and the
// throughput history.
func (t *Tracker) SetStage(stage Stage, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = stage
	t.current = 0
	t.total = total
	t.currentFile = ""
	t.stageStarted = t.now()
	t.buckets = nil
	t.bucketBase = 0
}

// Update records progress within the current stage. Completions land in
// the per-second bucket for the moment they arrive.
func (t *Tracker) Update(current int, file string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := current - t.current
	t.current = current
	if file != "" {
		t.currentFile = file
	}
	if delta <= 0 {
		return
	}

	sec := int(t.now().Sub(t.stageStarted).Seconds())
	idx := sec - t.bucketBase
	if idx < 0 {
		return
	}
	for len(t.buckets) <= idx {
		t.buckets = append(t.buckets, 0)
	}
	t.buckets[idx] += delta
	if n := len(t.buckets) - historyCap; n > 0 {
		t.buckets = append(t.buckets[:0], t.buckets[n:]...)
		t.bucketBase += n
	}
}

// AddError counts a failed or skipped file.
func (t *Tracker) AddError(event ErrorEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.IsWarn {
		t.warnings++
	} else {
		t.errors++
	}
}

// Snapshot is a point-in-time copy of tracker state plus derived
// throughput figures.
type Snapshot struct {
	Stage       Stage
	Current     int
	Total       int
	Fraction    float64 // 0..1, zero when the total is unknown
	Rate        float64 // completions per second over the trailing window
	ETA         time.Duration
	CurrentFile string
	Errors      int
	Warnings    int
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Stage:       t.stage,
		Current:     t.current,
		Total:       t.total,
		CurrentFile: t.currentFile,
		Errors:      t.errors,
		Warnings:    t.warnings,
	}
	if t.total > 0 {
		s.Fraction = float64(t.current) / float64(t.total)
		if s.Fraction > 1 {
			s.Fraction = 1
		}
	}
	s.Rate = t.rate()
	if s.Rate > 0 && t.total > t.current {
		s.ETA = time.Duration(float64(t.total-t.current) / s.Rate * float64(time.Second))
	}
	return s
}

// rate averages the trailing rateWindow buckets. Caller holds the lock.
func (t *Tracker) rate() float64 {
	n := len(t.buckets)
	if n == 0 {
		return 0
	}
	w := rateWindow
	if n < w {
		w = n
	}
	sum := 0
	for _, c := range t.buckets[n-w:] {
		sum += c
	}
	return float64(sum) / float64(w)
}

// History returns up to n trailing per-second completion counts, oldest
// first.
func (t *Tracker) History(n int) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets
	if n > 0 && len(b) > n {
		b = b[len(b)-n:]
	}
	out := make([]float64, len(b))
	for i, c := range b {
		out[i] = float64(c)
	}
	return out
}

// Elapsed returns the time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.started)
}
