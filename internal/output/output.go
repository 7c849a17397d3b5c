// Package output formats user-facing CLI messages.
package output

import (
	"fmt"
	"io"
)

// Writer prints user-facing CLI messages with a small set of text
// prefixes. Machine-readable output (JSON, YAML) bypasses it and goes
// straight to the command's writer.
type Writer struct {
	out io.Writer
}

// New creates a Writer targeting out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Info prints an unprefixed message line.
func (w *Writer) Info(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Detail prints an indented secondary line under a preceding message.
func (w *Writer) Detail(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "  "+format+"\n", args...)
}

// Success prints a message with the success prefix.
func (w *Writer) Success(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "✓ "+format+"\n", args...)
}

// Warning prints a message with the warning prefix.
func (w *Writer) Warning(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "! "+format+"\n", args...)
}

// Error prints a message with the error prefix.
func (w *Writer) Error(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "✗ "+format+"\n", args...)
}

// Newline prints a blank line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
