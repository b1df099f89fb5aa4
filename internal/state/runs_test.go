package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/stepwise/internal/wizard"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "runs", "team-onboarding.json"), Path("d", "Team Onboarding!"))
	assert.Equal(t, filepath.Join("d", "runs", "flow.json"), Path("d", "!!!"))
}

func TestLoad_Missing(t *testing.T) {
	run, ok := Load(t.TempDir(), "nothing")
	assert.False(t, ok)
	assert.Nil(t, run)
}

func TestSaveLoadClear(t *testing.T) {
	dir := t.TempDir()
	run := &Run{
		Flow:     "Onboarding",
		Instance: "abc",
		Snapshot: wizard.Snapshot{
			CurrentStepIndex: 1,
			CurrentStepID:    "profile",
			StepData:         map[string]any{"account": map[string]any{"kind": "personal"}},
			ValidationStatus: map[string]bool{"account": true},
			Error:            &wizard.WizardError{UserMessage: "u", DevMessage: "d"},
		},
	}
	require.NoError(t, Save(dir, run))
	assert.False(t, run.SavedAt.IsZero())

	loaded, ok := Load(dir, "Onboarding")
	require.True(t, ok)
	assert.Equal(t, "abc", loaded.Instance)
	assert.Equal(t, "profile", loaded.Snapshot.CurrentStepID)
	assert.Equal(t, run.Snapshot.StepData, loaded.Snapshot.StepData)
	assert.Equal(t, run.Snapshot.ValidationStatus, loaded.Snapshot.ValidationStatus)
	require.NotNil(t, loaded.Snapshot.Error)
	assert.Equal(t, "u", loaded.Snapshot.Error.UserMessage)

	require.NoError(t, Clear(dir, "Onboarding"))
	_, ok = Load(dir, "Onboarding")
	assert.False(t, ok)
	require.NoError(t, Clear(dir, "Onboarding"), "clearing twice is fine")
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "broken")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	run, ok := Load(dir, "broken")
	assert.False(t, ok)
	assert.Nil(t, run)
}
