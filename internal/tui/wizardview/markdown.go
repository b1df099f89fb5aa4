package wizardview

import (
	"strings"

	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
)

// renderMarkdown renders a step description, falling back to plain wrapped
// text if glamour fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return lipgloss.NewStyle().Width(width).Render(content)
	}

	rendered, err := r.Render(content)
	if err != nil {
		return lipgloss.NewStyle().Width(width).Render(content)
	}
	return strings.Trim(rendered, "\n")
}
