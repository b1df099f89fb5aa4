package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteAll(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()
	vars := Variables{Step: "profile", From: "intro", To: "profile"}

	tests := []struct {
		name     string
		hooks    HookList
		expected string
	}{
		{
			name:     "no hooks",
			hooks:    HookList{},
			expected: "",
		},
		{
			name:     "single hook",
			hooks:    HookList{{Command: "echo 'one'", Timeout: 5}},
			expected: "one\n",
		},
		{
			name: "multiple hooks joined",
			hooks: HookList{
				{Command: "echo 'first'", Timeout: 5},
				{Command: "true", Timeout: 5},
				{Command: "echo 'second'", Timeout: 5},
			},
			expected: "first\n\nsecond\n",
		},
		{
			name:     "variables expanded",
			hooks:    HookList{{Command: "echo {{from}}-{{step}}-{{to}}", Timeout: 5}},
			expected: "intro-profile-profile\n",
		},
		{
			name:     "nil and empty commands skipped",
			hooks:    HookList{nil, {Command: ""}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := ExecuteAll(ctx, tt.hooks, workDir, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, output)
		})
	}
}

func TestExecuteAll_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteAll(ctx, HookList{{Command: "echo 'test'", Timeout: 5}}, t.TempDir(), Variables{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecute_ExportsVariables(t *testing.T) {
	vars := Variables{Step: "plan", From: "profile", To: "plan", Data: `{"a":1}`}
	out, err := Execute(context.Background(), &HookConfig{
		Command: `printf '%s|%s|%s|%s' "$STEPWISE_STEP" "$STEPWISE_FROM" "$STEPWISE_TO" "$STEPWISE_DATA"`,
		Timeout: 5,
	}, t.TempDir(), vars)
	require.NoError(t, err)
	assert.Equal(t, `plan|profile|plan|{"a":1}`, out)
}

func TestExecute_FailureDegradesGracefully(t *testing.T) {
	out, err := Execute(context.Background(), &HookConfig{Command: "echo partial; echo oops >&2; exit 3", Timeout: 5}, t.TempDir(), Variables{})
	require.NoError(t, err)
	assert.Contains(t, out, "[Hook command failed:")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "[stderr]\noops")
}

func TestExecute_Timeout(t *testing.T) {
	out, err := Execute(context.Background(), &HookConfig{Command: "sleep 5", Timeout: 1}, t.TempDir(), Variables{})
	require.NoError(t, err)
	assert.Contains(t, out, "[Hook timed out after 1s]")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	doc := `version: 1
hooks:
  on_step_enter:
    command: echo enter
  on_complete:
    - command: echo one
      timeout: 2
    - command: echo two
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(doc), 0644))

	cfg, err = LoadConfig(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	require.Len(t, cfg.Hooks.OnStepEnter, 1)
	assert.Equal(t, "echo enter", cfg.Hooks.OnStepEnter[0].Command)
	require.Len(t, cfg.Hooks.OnComplete, 2)
	assert.Equal(t, 2, cfg.Hooks.OnComplete[0].Timeout)
	assert.Empty(t, cfg.Hooks.OnStepLeave)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("hooks:\n  on_complete: nope\n"), 0644))

	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := HooksConfig{
		OnStepEnter: HookList{{Command: "base-enter"}},
		OnComplete:  HookList{{Command: "base-complete"}},
	}
	override := HooksConfig{OnComplete: HookList{{Command: "override-complete"}}}

	merged := Merge(base, override)
	assert.Equal(t, "base-enter", merged.OnStepEnter[0].Command)
	assert.Equal(t, "override-complete", merged.OnComplete[0].Command)
	assert.Empty(t, merged.OnStepLeave)
}

func TestBind(t *testing.T) {
	assert.Nil(t, Bind(context.Background(), HooksConfig{}, t.TempDir()))

	dir := t.TempDir()
	cfg := HooksConfig{
		OnStepEnter: HookList{{Command: "echo enter {{step}} from {{from}} >> log.txt"}},
		OnStepLeave: HookList{{Command: "echo leave {{step}} to {{to}} >> log.txt"}},
		OnComplete:  HookList{{Command: "echo {{data}} >> log.txt"}},
	}
	h := Bind(context.Background(), cfg, dir)
	require.NotNil(t, h)

	require.NoError(t, h.OnStepLeave("a", "b"))
	require.NoError(t, h.OnStepEnter("b", "a"))
	require.NoError(t, h.OnWizardComplete(map[string]any{"a": map[string]any{"x": "1"}}))

	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"leave a to b",
		"enter b from a",
		`{"a":{"x":"1"}}`,
	}, lines)
}

func TestBind_DataIsNeverRunAsShell(t *testing.T) {
	tests := []struct {
		name    string
		command string
		value   string
	}{
		{"bare placeholder", "echo {{data}}", "x $(touch marker)"},
		{"double quoted placeholder", `echo "{{data}}"`, "x $(touch marker)"},
		{"single quoted placeholder", "echo '{{data}}'", "x $(touch marker)"},
		{"backticks", "echo {{data}}", "x `touch marker`"},
		{"breaking out of quotes", "echo {{data}}", `"; touch marker; "`},
		{"single quote break", "echo {{data}}", `'; touch marker; '`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			h := Bind(context.Background(), HooksConfig{
				OnComplete: HookList{{Command: tt.command, Timeout: 5}},
			}, dir)
			require.NotNil(t, h)

			require.NoError(t, h.OnWizardComplete(map[string]any{"name": tt.value}))

			_, err := os.Stat(filepath.Join(dir, "marker"))
			require.ErrorIs(t, err, os.ErrNotExist, "step data was executed by the shell")
		})
	}
}

func TestExecute_PlaceholderKeepsValueIntact(t *testing.T) {
	value := `a  "b" 'c' $(d) ; e`
	out, err := Execute(context.Background(), &HookConfig{Command: "printf '%s' {{step}}", Timeout: 5},
		t.TempDir(), Variables{Step: value})
	require.NoError(t, err)
	assert.Equal(t, value, out)
}

func TestBind_CancelledContextAbortsTransition(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := Bind(ctx, HooksConfig{OnStepLeave: HookList{{Command: "true"}}}, t.TempDir())
	cancel()

	require.ErrorIs(t, h.OnStepLeave("a", "b"), context.Canceled)
	// Events without hooks are no-ops.
	require.NoError(t, h.OnStepEnter("b", "a"))
}
