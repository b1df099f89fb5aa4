// Package theme turns a flow's color map into lipgloss styles.
package theme

import (
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/mark3labs/stepwise/internal/wizard"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name string

	Primary   string
	Secondary string

	BgBase     string
	BgSurface0 string

	FgMuted string
	FgBase  string

	Success string
	Error   string

	styles     *Styles
	stylesOnce sync.Once
}

// FromWizard builds a theme from a wizard color map. Missing keys fall back
// to Catppuccin Mocha.
func FromWizard(colors wizard.Theme) *Theme {
	t := NewCatppuccinMocha()
	if len(colors) == 0 {
		return t
	}
	t.Name = "custom"
	pick := func(dst *string, key string) {
		if v, ok := colors[key]; ok && v != "" {
			*dst = v
		}
	}
	pick(&t.Primary, "primary")
	pick(&t.Secondary, "secondary")
	pick(&t.FgBase, "text")
	pick(&t.FgMuted, "muted")
	pick(&t.BgSurface0, "surface")
	pick(&t.BgBase, "base")
	pick(&t.Success, "success")
	pick(&t.Error, "error")
	return t
}

// S returns the pre-built styles for this theme.
// Styles are lazily initialized on first call.
func (t *Theme) S() *Styles {
	t.stylesOnce.Do(func() {
		t.styles = t.buildStyles()
	})
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Primary)).
			Bold(true),
		StepCounter: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.FgMuted)),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.FgBase)).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.FgMuted)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Error)).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),
		Input: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.BgSurface0)),
		InputFocused: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Primary)),
		Modal: lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Secondary)),
		HintKey: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.FgBase)).
			Bold(true),
		HintDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.FgMuted)),
		HintSeparator: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.BgSurface0)),
	}
}
