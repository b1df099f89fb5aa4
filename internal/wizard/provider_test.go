package wizard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_StoreIdentityStableAcrossRenders(t *testing.T) {
	p := NewProvider()
	defer p.Unmount()

	props := Props{
		Steps:  []StepDefinition{{ID: "A"}, {ID: "B"}},
		Hooks:  &Hooks{},
		Config: &ConfigOverrides{},
	}

	first, err := p.Render(props)
	require.NoError(t, err)
	first.SetStepData("A", "kept")

	props.Theme = Theme{"primary": "#000000"}
	second, err := p.Render(props)
	require.NoError(t, err)

	assert.Same(t, first.Store, second.Store)
	assert.Equal(t, "kept", second.StepData()["A"])
	assert.Equal(t, "#000000", second.Theme["primary"])
}

func TestProvider_NewStoreWhenInputsChange(t *testing.T) {
	p := NewProvider()
	defer p.Unmount()

	steps := []StepDefinition{{ID: "A"}, {ID: "B"}}
	hooks := &Hooks{}
	first, err := p.Render(Props{Steps: steps, Hooks: hooks})
	require.NoError(t, err)

	tests := []struct {
		name  string
		props Props
	}{
		{name: "steps", props: Props{Steps: []StepDefinition{{ID: "A"}, {ID: "B"}}, Hooks: hooks}},
		{name: "hooks", props: Props{Steps: steps, Hooks: &Hooks{}}},
		{name: "config", props: Props{Steps: steps, Hooks: hooks, Config: &ConfigOverrides{}}},
	}

	prev := first.Store
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := p.Render(tt.props)
			require.NoError(t, err)
			assert.NotSame(t, prev, next.Store)
			require.ErrorIs(t, prev.NextStep(context.Background()), ErrClosed)
			prev = next.Store
		})
	}
}

func TestProvider_MergesConfig(t *testing.T) {
	p := NewProvider()
	defer p.Unmount()

	adjacent := true
	inst, err := p.Render(Props{
		Steps:  []StepDefinition{{ID: "A"}},
		Config: &ConfigOverrides{RenderAdjacent: &adjacent},
	})
	require.NoError(t, err)

	assert.Equal(t, Config{
		LazyRendering:         true,
		RenderAdjacent:        true,
		RequireStepValidation: true,
	}, inst.Config())
}

func TestProvider_DefaultTheme(t *testing.T) {
	p := NewProvider()
	defer p.Unmount()

	inst, err := p.Render(Props{Steps: []StepDefinition{{ID: "A"}}})
	require.NoError(t, err)

	assert.Equal(t, DefaultTheme(), inst.Theme)
}

func TestProvider_ChannelIsolation(t *testing.T) {
	a, b := NewProvider(), NewProvider()
	defer a.Unmount()
	defer b.Unmount()

	instA, err := a.Render(Props{Steps: []StepDefinition{{ID: "A"}}})
	require.NoError(t, err)
	instB, err := b.Render(Props{Steps: []StepDefinition{{ID: "A"}}})
	require.NoError(t, err)

	var seen int
	instB.Events().Subscribe(KindStepDataUpdate, func(Event) { seen++ })
	instA.SetStepData("A", 1)

	assert.Equal(t, 0, seen)
}

func TestProvider_SharedChannel(t *testing.T) {
	ch := NewChannel()
	p := NewProvider(WithEventChannel(ch))
	defer p.Unmount()

	inst, err := p.Render(Props{Steps: []StepDefinition{{ID: "A"}}})
	require.NoError(t, err)

	assert.Same(t, ch, inst.Events())
	assert.Same(t, ch, p.Events())
}

func TestProvider_RenderError(t *testing.T) {
	p := NewProvider()

	_, err := p.Render(Props{Steps: []StepDefinition{{ID: "A"}, {ID: "A"}}})

	require.ErrorIs(t, err, ErrDuplicateStepID)
}

func TestProvider_UnmountClosesStore(t *testing.T) {
	p := NewProvider()
	inst, err := p.Render(Props{Steps: []StepDefinition{{ID: "A"}}})
	require.NoError(t, err)

	p.Unmount()

	require.ErrorIs(t, inst.NextStep(context.Background()), ErrClosed)
}
