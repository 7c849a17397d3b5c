package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// PlainRenderer logs ingest progress as plain lines for pipes and CI.
// Per-file updates are throttled to decile milestones so a large
// library does not flood the log.
type PlainRenderer struct {
	mu         sync.Mutex
	out        io.Writer
	stage      Stage
	sawStage   bool
	lastDecile int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, lastDecile: -1}
}

// Start is a no-op for plain output.
func (r *PlainRenderer) Start(_ context.Context) error {
	return nil
}

// UpdateProgress prints stage transitions, messages, and decile
// progress milestones.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sawStage || event.Stage != r.stage {
		r.stage = event.Stage
		r.sawStage = true
		r.lastDecile = -1
	}

	if event.Message != "" {
		fmt.Fprintf(r.out, "%s: %s\n", stageTag(event.Stage), event.Message)
		return
	}
	if event.Total <= 0 {
		return
	}

	decile := event.Current * 10 / event.Total
	if decile <= r.lastDecile || decile == 0 {
		return
	}
	r.lastDecile = decile
	fmt.Fprintf(r.out, "%s: %d/%d files (%d%%)\n",
		stageTag(event.Stage), event.Current, event.Total, decile*10)
}

// AddError prints a file-level error or warning line.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag := "error"
	if event.IsWarn {
		tag = "warning"
	}
	if event.File != "" {
		fmt.Fprintf(r.out, "%s: %s: %v\n", tag, event.File, event.Err)
		return
	}
	fmt.Fprintf(r.out, "%s: %v\n", tag, event.Err)
}

// Complete prints the final summary with stage timings.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "ingested %d files, %d records in %s\n",
		stats.Files, stats.Records, fmtDuration(stats.Duration))

	if timings := stageBreakdown(stats.Stages); timings != "" {
		fmt.Fprintf(r.out, "  stages: %s\n", timings)
	}
	if e := stats.Embedder; e.Backend != "" {
		fmt.Fprintf(r.out, "  embedder: %s / %s (%d dims)\n", e.Backend, e.Model, e.Dimensions)
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		fmt.Fprintf(r.out, "  %d errors, %d warnings\n", stats.Errors, stats.Warnings)
	}
}

// Stop is a no-op for plain output.
func (r *PlainRenderer) Stop() error {
	return nil
}

func stageBreakdown(t StageTimings) string {
	var parts []string
	add := func(name string, d time.Duration) {
		if d > 0 {
			parts = append(parts, name+" "+fmtDuration(d))
		}
	}
	add("scan", t.Scan)
	add("extract", t.Extract)
	add("embed", t.Embed)
	add("index", t.Index)
	return strings.Join(parts, ", ")
}

func stageTag(s Stage) string {
	switch s {
	case StageScanning:
		return "scan"
	case StageExtracting:
		return "extract"
	case StageEmbedding:
		return "embed"
	case StageIndexing:
		return "index"
	case StageComplete:
		return "done"
	default:
		return "stage"
	}
}
