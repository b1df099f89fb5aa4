package wizardview

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/stepwise/internal/flow"
	"github.com/mark3labs/stepwise/internal/wizard"
)

const twoSteps = `version: 1
name: Signup
steps:
  - id: account
    title: Account
    description: "Pick a **name**."
    fields:
      - {name: name, label: Name, required: true}
  - id: plan
    title: Plan
    fields:
      - {name: tier, label: Tier}
`

var (
	enterKey = tea.KeyPressMsg{Code: tea.KeyEnter}
	escKey   = tea.KeyPressMsg{Code: tea.KeyEscape}
	tabKey   = tea.KeyPressMsg{Code: tea.KeyTab}
	ctrlC    = tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl}
)

func newModel(t *testing.T, doc string) (*Model, *wizard.Store) {
	t.Helper()
	def, err := flow.Parse([]byte(doc))
	require.NoError(t, err)
	compiled, err := flow.Compile(def)
	require.NoError(t, err)

	store, err := wizard.NewStore(compiled.Steps(), nil, wizard.MergeConfig(compiled.Config()), nil)
	require.NoError(t, err)
	compiled.Bind(store.StepData)

	ctx, cancel := context.WithCancel(context.Background())
	m := New(ctx, store, compiled, nil)
	t.Cleanup(func() {
		cancel()
		m.Close()
		store.Close()
	})
	return m, store
}

// press sends a key and runs any navigation command it returns.
func press(t *testing.T, m *Model, key tea.KeyPressMsg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(key)
	if !m.busy || cmd == nil {
		return cmd
	}
	msg := cmd()
	nav, ok := msg.(navigatedMsg)
	require.True(t, ok, "expected navigatedMsg, got %T", msg)
	_, cmd = m.Update(nav)
	return cmd
}

// drainUntil feeds queued channel events to the model until one of kind
// arrives.
func drainUntil(t *testing.T, m *Model, kind wizard.EventKind) tea.Cmd {
	t.Helper()
	for {
		select {
		case ev := <-m.events:
			_, cmd := m.Update(eventMsg{event: ev})
			if ev.Kind() == kind {
				return cmd
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event", kind)
			return nil
		}
	}
}

func TestNew_MountsFirstStep(t *testing.T) {
	m, _ := newModel(t, twoSteps)

	assert.Equal(t, "account", m.stepID)
	require.NotNil(t, m.current())
	assert.True(t, m.current().inputs[0].Focused())
	assert.Len(t, m.forms, 2, "non-evictable steps stay mounted")
}

func TestEnter_InvalidStepShowsError(t *testing.T) {
	m, store := newModel(t, twoSteps)

	press(t, m, enterKey)

	assert.Equal(t, "account", m.stepID)
	require.NotNil(t, store.Err())
	assert.Contains(t, m.render(), store.Err().UserMessage)
	assert.False(t, m.busy)
}

func TestEnter_AdvancesAndEscGoesBack(t *testing.T) {
	m, store := newModel(t, twoSteps)

	m.current().setValue("name", "Ada")
	press(t, m, enterKey)

	assert.Nil(t, store.Err())
	assert.Equal(t, "plan", m.stepID)
	assert.Equal(t, map[string]any{"name": "Ada"}, store.StepData()["account"])

	press(t, m, escKey)
	assert.Equal(t, "account", m.stepID)
	assert.Equal(t, "Ada", m.current().inputs[0].Value())
	assert.False(t, m.Cancelled())
}

func TestEvictableStepsRemount(t *testing.T) {
	doc := `version: 1
name: Lazy
steps:
  - id: a
    evictable: true
    fields: [{name: v}]
  - id: b
    evictable: true
    fields: [{name: w}]
`
	m, _ := newModel(t, doc)
	assert.Len(t, m.forms, 1)

	m.current().setValue("v", "kept")
	press(t, m, enterKey)
	assert.Equal(t, "b", m.stepID)
	_, mounted := m.forms["a"]
	assert.False(t, mounted, "a is outside the render window")

	press(t, m, escKey)
	assert.Equal(t, "a", m.stepID)
	assert.Equal(t, "kept", m.current().inputs[0].Value(), "remounted from committed data")
}

func TestCompleteQuits(t *testing.T) {
	m, _ := newModel(t, twoSteps)

	m.current().setValue("name", "Ada")
	press(t, m, enterKey)
	require.Equal(t, "plan", m.stepID)

	press(t, m, enterKey)
	cmd := drainUntil(t, m, wizard.KindComplete)

	assert.True(t, m.Completed())
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestEscOnFirstStepCancels(t *testing.T) {
	m, _ := newModel(t, twoSteps)

	_, cmd := m.Update(escKey)
	assert.True(t, m.Cancelled())
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestCtrlCCancels(t *testing.T) {
	m, store := newModel(t, twoSteps)
	m.current().setValue("name", "Ada")
	press(t, m, enterKey)

	m.Update(ctrlC)
	assert.True(t, m.Cancelled())
	assert.False(t, m.Completed())
	assert.Equal(t, 1, store.CurrentStepIndex())
}

func TestTabMovesBetweenFields(t *testing.T) {
	doc := `version: 1
name: Two fields
steps:
  - id: a
    fields: [{name: first}, {name: last}]
`
	m, store := newModel(t, doc)
	f := m.current()

	m.Update(tabKey)
	assert.Equal(t, 1, f.focus)
	assert.True(t, f.inputs[1].Focused())
	assert.False(t, f.inputs[0].Focused())

	// enter on a non-last field moves focus instead of submitting
	f.focus = 0
	f.refocus()
	m.Update(enterKey)
	assert.Equal(t, 1, f.focus)
	assert.False(t, m.busy)
	assert.Empty(t, store.StepData())
}

func TestRender(t *testing.T) {
	m, _ := newModel(t, twoSteps)

	view := m.View()
	assert.True(t, view.AltScreen)

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	out := m.render()
	assert.Contains(t, out, "Step 1 of 2")
	assert.Contains(t, out, "Account")
	assert.Contains(t, out, "Name *")
	assert.Contains(t, out, "quit")

	view = m.View()
	assert.NotNil(t, view.Content)
}

func TestSavedValues(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "x"}, savedValues(map[string]any{"a": 1, "b": "x", "c": nil}))
	assert.Equal(t, map[string]string{"a": "1"}, savedValues(map[string]string{"a": "1"}))
	assert.Empty(t, savedValues(42))
}
