package loop

import "github.com/charmbracelet/lipgloss"

// Color constants
const (
	ColorPrimary   = "39"  // Blue
	ColorSuccess   = "42"  // Green
	ColorWarning   = "214" // Orange
	ColorError     = "196" // Red
	ColorMuted     = "245" // Gray
	ColorHighlight = "212" // Pink
)

// Styles holds the terminal styles for loop output.
type Styles struct {
	Title   lipgloss.Style
	Branch  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Cost    lipgloss.Style
}

// DefaultStyles returns the default loop styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorPrimary)),
		Branch: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorHighlight)),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSuccess)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorError)),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning)),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted)),
		Cost: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning)),
	}
}

// Status icons
const (
	IconRunning = "●"
	IconStep    = "→"
	IconSuccess = "✓"
	IconFailed  = "✗"
	IconWarning = "⚠"
	IconTimeout = "⏱"
)

// StatusIcon returns the icon for an outcome.
func StatusIcon(outcome Outcome) string {
	switch outcome {
	case OutcomeMerged:
		return IconSuccess
	case OutcomeFailed:
		return IconFailed
	default:
		return IconRunning
	}
}

// StatusStyle returns the style for an outcome.
func (s Styles) StatusStyle(outcome Outcome) lipgloss.Style {
	switch outcome {
	case OutcomeMerged:
		return s.Success
	case OutcomeFailed:
		return s.Error
	default:
		return s.Muted
	}
}
