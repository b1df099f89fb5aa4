// Package wizardview is a terminal front end for a wizard.Store.
package wizardview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/mark3labs/stepwise/internal/flow"
	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/tui/theme"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// Modal layout constants
const (
	modalWidth   = 72
	contentWidth = modalWidth - 2*2 - 2 // padding and border
	eventBuffer  = 64
)

// FieldSource supplies the inputs of each step. *flow.Compiled satisfies it.
type FieldSource interface {
	Fields(stepID string) []flow.Field
}

// eventMsg carries a channel event into the update loop.
type eventMsg struct {
	event wizard.Event
}

// navigatedMsg reports the end of a NextStep or PrevStep call.
type navigatedMsg struct {
	err error
}

// Model is the bubbletea model of a running wizard.
type Model struct {
	ctx    context.Context
	store  *wizard.Store
	fields FieldSource
	theme  *theme.Theme

	events chan wizard.Event
	subs   []wizard.Subscription

	forms  map[string]*form // mounted steps
	stepID string

	busy      bool
	navErr    error
	completed bool
	cancelled bool
	width     int
	height    int
}

// New creates a view over store. Call Close when done to unsubscribe.
func New(ctx context.Context, store *wizard.Store, fields FieldSource, th *theme.Theme) *Model {
	if th == nil {
		th = theme.NewCatppuccinMocha()
	}
	m := &Model{
		ctx:    ctx,
		store:  store,
		fields: fields,
		theme:  th,
		events: make(chan wizard.Event, eventBuffer),
		forms:  make(map[string]*form),
	}

	forward := func(ev wizard.Event) {
		select {
		case m.events <- ev:
		default:
			logger.Debug("View event buffer full, dropping %s", ev.Kind())
		}
	}
	for _, kind := range []wizard.EventKind{
		wizard.KindNavigate,
		wizard.KindComplete,
		wizard.KindValidationStatus,
		wizard.KindError,
	} {
		m.subs = append(m.subs, store.Events().Subscribe(kind, forward))
	}

	m.sync()
	return m
}

// Close unsubscribes the view from the store's channel.
func (m *Model) Close() {
	for _, sub := range m.subs {
		m.store.Events().Unsubscribe(sub)
	}
	m.subs = nil
}

// Completed reports whether the wizard finished.
func (m *Model) Completed() bool { return m.completed }

// Cancelled reports whether the user quit before finishing.
func (m *Model) Cancelled() bool { return m.cancelled }

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg{event: ev}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Update handles messages for the wizard.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		cmd := m.handleEvent(msg.event)
		if m.completed {
			return m, tea.Quit
		}
		return m, tea.Batch(cmd, m.waitForEvent())

	case navigatedMsg:
		m.busy = false
		if msg.err != nil && !errors.Is(msg.err, wizard.ErrNavigationInFlight) {
			logger.Error("Navigation failed: %v", msg.err)
			m.navErr = msg.err
		}
		return m, m.sync()

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	if f := m.current(); f != nil {
		return m, f.update(msg)
	}
	return m, nil
}

func (m *Model) handleEvent(ev wizard.Event) tea.Cmd {
	switch e := ev.(type) {
	case wizard.CompleteEvent:
		logger.Info("Wizard completed with %d steps of data", len(e.StepData))
		m.completed = true
		return nil
	case wizard.NavigateEvent:
		m.navErr = nil
		return m.sync()
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	case "esc":
		if m.store.CurrentStepIndex() == 0 {
			m.cancelled = true
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.prev()
	case "tab", "down":
		if f := m.current(); f != nil {
			_, cmd := f.next()
			return m, cmd
		}
		return m, nil
	case "shift+tab", "up":
		if f := m.current(); f != nil {
			return m, f.prev()
		}
		return m, nil
	case "enter":
		if f := m.current(); f != nil {
			if moved, cmd := f.next(); moved {
				return m, cmd
			}
		}
		return m, m.submit()
	}

	if f := m.current(); f != nil {
		return m, f.update(msg)
	}
	return m, nil
}

// submit commits the current step's values and navigates forward.
func (m *Model) submit() tea.Cmd {
	if m.busy || m.stepID == "" {
		return nil
	}
	if f := m.current(); f != nil && len(f.fields) > 0 {
		m.store.SetStepData(m.stepID, f.values())
	}
	m.busy = true
	m.navErr = nil
	return func() tea.Msg {
		return navigatedMsg{err: m.store.NextStep(m.ctx)}
	}
}

func (m *Model) prev() tea.Cmd {
	return func() tea.Msg {
		return navigatedMsg{err: m.store.PrevStep()}
	}
}

// sync mounts forms for every rendered step, evicts the rest and focuses
// the current one.
func (m *Model) sync() tea.Cmd {
	step, ok := m.store.CurrentStep()
	if !ok {
		m.stepID = ""
		return nil
	}

	rendered := make(map[string]struct{})
	data := m.store.StepData()
	for _, s := range m.store.RenderedSteps() {
		rendered[s.ID] = struct{}{}
		if _, mounted := m.forms[s.ID]; !mounted {
			m.forms[s.ID] = newForm(m.fieldsOf(s.ID), data[s.ID])
		}
	}
	for id := range m.forms {
		if _, keep := rendered[id]; !keep {
			delete(m.forms, id)
		}
	}

	changed := step.ID != m.stepID
	m.stepID = step.ID
	for id, f := range m.forms {
		if id != m.stepID {
			f.blur()
		}
	}
	if f := m.current(); f != nil && changed {
		return f.focusFirst()
	}
	return nil
}

func (m *Model) fieldsOf(stepID string) []flow.Field {
	if m.fields == nil {
		return nil
	}
	return m.fields.Fields(stepID)
}

func (m *Model) current() *form {
	return m.forms[m.stepID]
}

// View renders the wizard.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if m.width == 0 || m.height == 0 {
		view.Content = lipgloss.NewLayer("")
		return view
	}

	centered := lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.render())

	canvas := uv.NewScreenBuffer(m.width, m.height)
	uv.NewStyledString(centered).Draw(canvas, uv.Rectangle{
		Min: uv.Position{X: 0, Y: 0},
		Max: uv.Position{X: m.width, Y: m.height},
	})

	view.Content = lipgloss.NewLayer(canvas.Render())
	return view
}

// render builds the modal content as a string.
func (m *Model) render() string {
	s := m.theme.S()

	step, ok := m.store.CurrentStep()
	if !ok {
		return s.Modal.Width(modalWidth).Render(s.Muted.Render("No steps to show."))
	}

	visible := m.store.VisibleSteps()
	index := m.store.CurrentStepIndex()

	parts := []string{
		s.StepCounter.Render(fmt.Sprintf("Step %d of %d", index+1, len(visible))),
		m.progressBar(index, len(visible)),
		s.Title.Render(step.Title),
	}
	if step.Description != "" {
		parts = append(parts, renderMarkdown(step.Description, contentWidth))
	}
	if f := m.current(); f != nil && len(f.fields) > 0 {
		parts = append(parts, f.view(m.theme, contentWidth-4))
	}

	if e := m.store.Err(); e != nil {
		parts = append(parts, s.Error.Render("✗ "+e.UserMessage))
	}
	if m.navErr != nil {
		parts = append(parts, s.Error.Render("✗ "+m.navErr.Error()))
	}
	if valid, seen := m.store.ValidationStatus()[step.ID]; seen && valid {
		parts = append(parts, s.Success.Render("✓ looks good"))
	}

	next := "next"
	if index == len(visible)-1 {
		next = "finish"
	}
	back := "back"
	if index == 0 {
		back = "quit"
	}
	parts = append(parts, "", m.hintBar("enter", next, "tab", "field", "esc", back, "ctrl+c", "cancel"))

	return s.Modal.Width(modalWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// progressBar draws one segment per visible step, shading completed steps
// from primary to secondary.
func (m *Model) progressBar(index, total int) string {
	if total == 0 {
		return ""
	}
	seg := max(1, contentWidth/total-1)
	var b strings.Builder
	for i := range total {
		color := m.theme.BgSurface0
		if i <= index {
			pos := 0.0
			if total > 1 {
				pos = float64(i) / float64(total-1)
			}
			color = theme.InterpolateColor(m.theme.Primary, m.theme.Secondary, pos)
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(strings.Repeat("━", seg)))
		if i < total-1 {
			b.WriteString(" ")
		}
	}
	return b.String()
}

// hintBar renders key-description pairs separated by bullets.
func (m *Model) hintBar(pairs ...string) string {
	s := m.theme.S()
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(" " + s.HintSeparator.Render("•") + " ")
		}
		b.WriteString(s.HintKey.Render(pairs[i]) + " " + s.HintDesc.Render(pairs[i+1]))
	}
	return b.String()
}
