package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlainOverBuffer() (*PlainRenderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPlainRenderer(NewConfig(&buf)), &buf
}

func TestPlainRenderer_ProgressThrottledToDeciles(t *testing.T) {
	// Given a plain renderer receiving one event per file
	r, buf := newPlainOverBuffer()
	require.NoError(t, r.Start(context.Background()))

	// When 100 files complete
	for i := 1; i <= 100; i++ {
		r.UpdateProgress(ProgressEvent{
			Stage:   StageEmbedding,
			Current: i,
			Total:   100,
		})
	}

	// Then only decile milestones are logged
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 10)
	assert.Equal(t, "embed: 10/100 files (10%)", lines[0])
	assert.Equal(t, "embed: 100/100 files (100%)", lines[9])
}

func TestPlainRenderer_StageChangeResetsThrottle(t *testing.T) {
	r, buf := newPlainOverBuffer()

	r.UpdateProgress(ProgressEvent{Stage: StageExtracting, Current: 10, Total: 10})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 10, Total: 10})

	out := buf.String()
	assert.Contains(t, out, "extract: 10/10 files (100%)")
	assert.Contains(t, out, "embed: 10/10 files (100%)")
}

func TestPlainRenderer_MessageEventsPrintVerbatim(t *testing.T) {
	r, buf := newPlainOverBuffer()

	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "walking library"})

	assert.Equal(t, "scan: walking library\n", buf.String())
}

func TestPlainRenderer_UnknownTotalStaysQuiet(t *testing.T) {
	// Given scanning progress with no known total
	r, buf := newPlainOverBuffer()

	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Current: 57})

	// Then nothing is printed until a total or message arrives
	assert.Empty(t, buf.String())
}

func TestPlainRenderer_AddError(t *testing.T) {
	r, buf := newPlainOverBuffer()

	r.AddError(ErrorEvent{File: "clips/clip-0001.mp4", Err: errors.New("no transcript"), IsWarn: true})
	r.AddError(ErrorEvent{File: "photos/photo-0002.jpg", Err: errors.New("unreadable")})
	r.AddError(ErrorEvent{Err: errors.New("index write failed")})

	out := buf.String()
	assert.Contains(t, out, "warning: clips/clip-0001.mp4: no transcript")
	assert.Contains(t, out, "error: photos/photo-0002.jpg: unreadable")
	assert.Contains(t, out, "error: index write failed")
}

func TestPlainRenderer_CompleteSummary(t *testing.T) {
	r, buf := newPlainOverBuffer()

	r.Complete(CompletionStats{
		Files:    120,
		Records:  450,
		Duration: 3200 * time.Millisecond,
		Errors:   1,
		Warnings: 2,
		Stages: StageTimings{
			Scan:    200 * time.Millisecond,
			Extract: 800 * time.Millisecond,
			Embed:   2 * time.Second,
			Index:   200 * time.Millisecond,
		},
		Embedder: EmbedderInfo{Backend: "offline", Model: "hash-v1", Dimensions: 256},
	})

	out := buf.String()
	assert.Contains(t, out, "ingested 120 files, 450 records in 3.2s")
	assert.Contains(t, out, "stages: scan 200ms, extract 800ms, embed 2s, index 200ms")
	assert.Contains(t, out, "embedder: offline / hash-v1 (256 dims)")
	assert.Contains(t, out, "1 errors, 2 warnings")
}

func TestPlainRenderer_CompleteOmitsEmptySections(t *testing.T) {
	r, buf := newPlainOverBuffer()

	r.Complete(CompletionStats{Files: 3, Records: 9, Duration: time.Second})

	out := buf.String()
	assert.Contains(t, out, "ingested 3 files, 9 records in 1s")
	assert.NotContains(t, out, "stages:")
	assert.NotContains(t, out, "embedder:")
	assert.NotContains(t, out, "errors")
}
