package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/querycomposer/internal/notifier"
)

// Styles holds the lipgloss styles for status output.
type Styles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Header  lipgloss.Style
	Key     lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so color output
// follows the detected profile of that renderer's writer.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Success: lr.NewStyle().Foreground(lipgloss.Color("42")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("39")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("245")),
		Header:  lr.NewStyle().Bold(true),
		Key:     lr.NewStyle().Foreground(lipgloss.Color("207")).Bold(true),
	}
}

// Notice returns the style for a notice level.
func (s *Styles) Notice(level notifier.Level) lipgloss.Style {
	if level == notifier.LevelError {
		return s.Error
	}
	return s.Success
}
