// Package output renders command results for terminals, pipes and scripts.
//
// In auto mode a terminal gets styled tables while piped output gets
// markdown, so results stay readable when pasted into docs or tickets.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how results are rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeTable    Mode = "table"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "markdown"
)

// ParseMode normalizes a configured output format. Unknown values fall back
// to auto.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "table", "text":
		return ModeTable
	case "json":
		return ModeJSON
	case "csv":
		return ModeCSV
	case "md", "markdown":
		return ModeMarkdown
	default:
		return ModeAuto
	}
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Renderer writes results and status messages.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	tty    bool
	styles *Styles
}

// NewRenderer creates a renderer. Auto mode resolves against out.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	tty := IsTerminal(out)
	if mode == "" || mode == ModeAuto {
		mode = ModeMarkdown
		if tty {
			mode = ModeTable
		}
	}

	lr := lipgloss.NewRenderer(errOut)
	if !IsTerminal(errOut) {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		tty:    tty,
		styles: NewStyles(lr),
	}
}

// Mode returns the resolved output mode.
func (r *Renderer) Mode() Mode {
	return r.mode
}

// Out returns the result writer.
func (r *Renderer) Out() io.Writer {
	return r.out
}

// Styles returns the status message styles.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success message to stderr.
func (r *Renderer) Success(format string, args ...any) {
	r.status(r.styles.Success, format, args...)
}

// Info prints an informational message to stderr.
func (r *Renderer) Info(format string, args ...any) {
	r.status(r.styles.Info, format, args...)
}

// Warning prints a warning to stderr.
func (r *Renderer) Warning(format string, args ...any) {
	r.status(r.styles.Warning, format, args...)
}

// Error prints an error message to stderr.
func (r *Renderer) Error(format string, args ...any) {
	r.status(r.styles.Error, format, args...)
}

// Muted prints a dimmed message to stderr.
func (r *Renderer) Muted(format string, args ...any) {
	r.status(r.styles.Muted, format, args...)
}

func (r *Renderer) status(style lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintln(r.errOut, style.Render(fmt.Sprintf(format, args...)))
}
