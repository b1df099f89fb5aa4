package theme

import "charm.land/lipgloss/v2"

// Styles contains all pre-built lipgloss styles for the TUI.
type Styles struct {
	Title        lipgloss.Style
	StepCounter  lipgloss.Style
	Label        lipgloss.Style
	Muted        lipgloss.Style
	Error        lipgloss.Style
	Success      lipgloss.Style
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	Modal        lipgloss.Style

	HintKey       lipgloss.Style
	HintDesc      lipgloss.Style
	HintSeparator lipgloss.Style
}
