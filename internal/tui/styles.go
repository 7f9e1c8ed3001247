package tui

import (
	"continuous/internal/loop"

	"github.com/charmbracelet/lipgloss"
)

// Styles contains all styles for the live view.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Status   lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Muted    lipgloss.Style
	Branch   lipgloss.Style
	Cost     lipgloss.Style
	Spinner  lipgloss.Style
	Log      lipgloss.Style
}

// DefaultStyles returns the default styles, sharing the loop's palette.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(loop.ColorPrimary)),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorHighlight)),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorPrimary)),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorSuccess)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorError)),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorWarning)),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorMuted)),
		Branch: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorHighlight)),
		Cost: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(loop.ColorWarning)),
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(loop.ColorPrimary)),
		Log: lipgloss.NewStyle().
			PaddingLeft(1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color(loop.ColorMuted)),
	}
}
