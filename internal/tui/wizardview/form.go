package wizardview

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/mark3labs/stepwise/internal/flow"
	"github.com/mark3labs/stepwise/internal/tui/theme"
)

// form holds the inputs of one mounted step. Values typed into a form
// survive navigation for as long as the step stays rendered.
type form struct {
	fields []flow.Field
	inputs []textinput.Model
	focus  int
}

func newForm(fields []flow.Field, saved any) *form {
	values := savedValues(saved)
	f := &form{fields: fields}
	for _, field := range fields {
		ti := textinput.New()
		ti.Placeholder = field.Placeholder
		ti.CharLimit = 256
		ti.SetValue(values[field.Name])
		f.inputs = append(f.inputs, ti)
	}
	return f
}

// savedValues flattens previously committed step data into input values.
func savedValues(saved any) map[string]string {
	out := make(map[string]string)
	switch d := saved.(type) {
	case map[string]any:
		for k, v := range d {
			if v != nil {
				out[k] = fmt.Sprint(v)
			}
		}
	case map[string]string:
		for k, v := range d {
			out[k] = v
		}
	}
	return out
}

func (f *form) focusFirst() tea.Cmd {
	f.focus = 0
	return f.refocus()
}

func (f *form) refocus() tea.Cmd {
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.focus {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *form) blur() {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

// next moves focus forward and reports false when already on the last input.
func (f *form) next() (bool, tea.Cmd) {
	if f.focus >= len(f.inputs)-1 {
		return false, nil
	}
	f.focus++
	return true, f.refocus()
}

func (f *form) prev() tea.Cmd {
	if f.focus > 0 {
		f.focus--
	}
	return f.refocus()
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// values returns the trimmed input values keyed by field name.
func (f *form) values() map[string]any {
	out := make(map[string]any, len(f.fields))
	for i, field := range f.fields {
		out[field.Name] = strings.TrimSpace(f.inputs[i].Value())
	}
	return out
}

func (f *form) setValue(name, value string) {
	for i, field := range f.fields {
		if field.Name == name {
			f.inputs[i].SetValue(value)
		}
	}
}

func (f *form) view(th *theme.Theme, width int) string {
	s := th.S()
	var rows []string
	for i, field := range f.fields {
		label := field.Label
		if label == "" {
			label = field.Name
		}
		if field.Required {
			label += " *"
		}
		box := s.Input
		if i == f.focus && f.inputs[i].Focused() {
			box = s.InputFocused
		}
		rows = append(rows, s.Label.Render(label), box.Width(width).Render(f.inputs[i].View()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
