package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// TUIRenderer drives the interactive ingest view. Progress events land
// in a shared Tracker; the bubbletea model reads snapshots on a timer
// instead of receiving one message per file.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	tracker *Tracker
	program *tea.Program
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Fails when output is not a
// terminal; NewRenderer falls back to plain mode on that error.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a terminal")
	}
	return &TUIRenderer{
		cfg:     cfg,
		tracker: NewTracker(),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the bubbletea program in its own goroutine.
func (r *TUIRenderer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	view := newIngestView(r.tracker, GetStyles(r.cfg.NoColor || DetectNoColor()), r.cfg.LibraryDir)
	r.program = tea.NewProgram(view, tea.WithOutput(r.cfg.Output))
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress records a progress event.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	if event.Stage != r.tracker.Snapshot().Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentFile)
}

// AddError records a file-level error or warning.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
}

// Complete switches the view to the completion summary and lets the
// program exit.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program != nil {
		program.Send(ingestDoneMsg(stats))
	}
}

// Stop shuts the program down, waiting briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	started := r.started
	r.mu.Unlock()

	if !started || program == nil {
		return nil
	}
	program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		program.Kill()
	}
	return nil
}

type (
	ingestDoneMsg CompletionStats
	viewTickMsg   struct{}
)

func viewTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return viewTickMsg{}
	})
}

// ingestView renders tracker snapshots. It owns no progress state of
// its own beyond the completion stats delivered at the end.
type ingestView struct {
	tracker *Tracker
	styles  Styles
	library string

	spinner spinner.Model
	bar     progress.Model
	width   int

	finished bool
	stats    CompletionStats
	quitting bool
}

func newIngestView(tracker *Tracker, styles Styles, library string) *ingestView {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Accent

	bar := progress.New(progress.WithSolidFill(colorAccent), progress.WithoutPercentage())
	bar.Width = 40

	return &ingestView{
		tracker: tracker,
		styles:  styles,
		library: library,
		spinner: sp,
		bar:     bar,
		width:   80,
	}
}

func (v *ingestView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, viewTick())
}

func (v *ingestView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			v.quitting = true
			return v, tea.Quit
		}

	case tea.WindowSizeMsg:
		v.width = msg.Width
		w := msg.Width - 30
		if w < 10 {
			w = 10
		}
		if w > 60 {
			w = 60
		}
		v.bar.Width = w

	case ingestDoneMsg:
		v.finished = true
		v.stats = CompletionStats(msg)
		return v, tea.Quit

	case viewTickMsg:
		return v, viewTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *ingestView) View() string {
	if v.quitting {
		return v.styles.Warn.Render("ingest cancelled") + "\n"
	}
	if v.finished {
		return v.viewSummary()
	}
	return v.viewProgress()
}

func (v *ingestView) viewProgress() string {
	s := v.tracker.Snapshot()

	var b strings.Builder
	b.WriteString(v.spinner.View())
	b.WriteString(" ")
	b.WriteString(v.styles.Title.Render("mosaic ingest"))
	if v.library != "" {
		b.WriteString(v.styles.Muted.Render("  " + v.library))
	}
	b.WriteString("\n\n")

	b.WriteString("  " + v.stageLine(s.Stage) + "\n\n")

	if s.Total > 0 {
		b.WriteString("  " + v.bar.ViewAs(s.Fraction))
		b.WriteString(v.styles.Accent.Render(fmt.Sprintf(" %3.0f%%", s.Fraction*100)))
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d/%d files", s.Current, s.Total)))
		b.WriteString("\n")
		b.WriteString("  " + v.throughputLine(s) + "\n")
	} else {
		b.WriteString("  " + v.styles.Muted.Render(strings.ToLower(s.Stage.String())+"...") + "\n")
	}

	if s.CurrentFile != "" {
		b.WriteString("  " + v.styles.Muted.Render(tailPath(s.CurrentFile, v.width-4)) + "\n")
	}
	if line := v.issueLine(s.Errors, s.Warnings); line != "" {
		b.WriteString("\n  " + line + "\n")
	}
	return b.String()
}

// stageLine renders the pipeline stages with the active one highlighted
// and finished ones checked.
func (v *ingestView) stageLine(active Stage) string {
	stages := []struct {
		stage Stage
		label string
	}{
		{StageScanning, "scan"},
		{StageExtracting, "extract"},
		{StageEmbedding, "embed"},
		{StageIndexing, "index"},
	}
	parts := make([]string, 0, len(stages))
	for _, st := range stages {
		switch {
		case st.stage < active:
			parts = append(parts, v.styles.Ok.Render(st.label+" ✓"))
		case st.stage == active:
			parts = append(parts, v.styles.Accent.Render("["+st.label+"]"))
		default:
			parts = append(parts, v.styles.Muted.Render(st.label))
		}
	}
	return strings.Join(parts, v.styles.Muted.Render(" · "))
}

func (v *ingestView) throughputLine(s Snapshot) string {
	parts := []string{v.styles.Muted.Render(fmt.Sprintf("%.0f files/s", s.Rate))}
	if s.ETA > 0 {
		parts = append(parts, v.styles.Muted.Render("eta "+fmtDuration(s.ETA)))
	}
	if bar := historyBar(v.tracker.History(24), 24); bar != "" {
		parts = append(parts, v.styles.Accent.Render(bar))
	}
	return strings.Join(parts, "  ")
}

func (v *ingestView) issueLine(errs, warns int) string {
	var parts []string
	if errs > 0 {
		parts = append(parts, v.styles.Fail.Render(fmt.Sprintf("%d errors", errs)))
	}
	if warns > 0 {
		parts = append(parts, v.styles.Warn.Render(fmt.Sprintf("%d warnings", warns)))
	}
	return strings.Join(parts, "  ")
}

func (v *ingestView) viewSummary() string {
	var b strings.Builder
	b.WriteString(v.styles.Ok.Render("✓") + " " + v.styles.Title.Render(fmt.Sprintf(
		"Ingested %d files (%d records) in %s",
		v.stats.Files, v.stats.Records, fmtDuration(v.stats.Duration))))
	b.WriteString("\n")

	if e := v.stats.Embedder; e.Backend != "" {
		b.WriteString("  " + v.styles.Muted.Render(fmt.Sprintf(
			"embedder: %s / %s (%d dims)", e.Backend, e.Model, e.Dimensions)) + "\n")
	}
	if line := v.issueLine(v.stats.Errors, v.stats.Warnings); line != "" {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

// historyRunes map bucket magnitudes onto block characters.
var historyRunes = []rune("▁▂▃▄▅▆▇█")

// historyBar renders per-second completion counts as a compact bar,
// scaled to the largest sample.
func historyBar(samples []float64, width int) string {
	if width <= 0 || len(samples) == 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	max := 0.0
	for _, v := range samples {
		if v > max {
			max = v
		}
	}
	var b strings.Builder
	for _, v := range samples {
		i := 0
		if max > 0 {
			i = int(v / max * float64(len(historyRunes)-1))
		}
		if i < 0 {
			i = 0
		}
		if i > len(historyRunes)-1 {
			i = len(historyRunes) - 1
		}
		b.WriteRune(historyRunes[i])
	}
	return b.String()
}

// tailPath keeps the end of a path, which carries the filename.
func tailPath(path string, max int) string {
	if max <= 1 || len(path) <= max {
		return path
	}
	return "…" + path[len(path)-max+1:]
}

func fmtDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
