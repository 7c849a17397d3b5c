package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette for the ingest and status views.
const (
	colorAccent = "39"  // blue, active elements
	colorOk     = "42"  // green
	colorWarn   = "214" // orange
	colorFail   = "203" // red
	colorMuted  = "245" // gray, secondary text
)

// Styles holds the lipgloss styles the renderers share.
type Styles struct {
	Title  lipgloss.Style
	Accent lipgloss.Style
	Ok     lipgloss.Style
	Warn   lipgloss.Style
	Fail   lipgloss.Style
	Muted  lipgloss.Style
}

// GetStyles returns the color styles, or passthrough styles when color
// is disabled.
func GetStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:  plain,
			Accent: plain,
			Ok:     plain,
			Warn:   plain,
			Fail:   plain,
			Muted:  plain,
		}
	}
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Accent: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Ok:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorOk)),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn)),
		Fail:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorFail)),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)),
	}
}
