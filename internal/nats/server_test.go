package nats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "stepwise.run1.>", SubjectForInstance("run1"))
	assert.Equal(t, "stepwise.run1.navigate", SubjectForEvent("run1", "navigate"))
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	bus, err := Start(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = bus.JS.Publish(ctx, SubjectForEvent("run1", "navigate"), []byte(`{}`))
	require.NoError(t, err)

	info, err := bus.Stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, StreamName, info.Config.Name)
	assert.Equal(t, uint64(1), info.State.Msgs)

	require.NoError(t, bus.Close())
	assert.True(t, bus.Conn.IsClosed())
}

func TestBusClose_Nil(t *testing.T) {
	var bus *Bus
	require.NoError(t, bus.Close())
}

func TestValidInstance(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"run-1", false},
		{"3f1c2a9e-0b1d-4c55-9f7a-2d6e1c0b8a11", false},
		{"", true},
		{"a.b", true},
		{"a*", true},
		{"a>", true},
		{"a b", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidInstance(tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInstance)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPurgeInstance(t *testing.T) {
	ctx := context.Background()
	bus, err := Start(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	for _, subject := range []string{
		SubjectForEvent("keep", "navigate"),
		SubjectForEvent("drop", "navigate"),
		SubjectForEvent("drop", "complete"),
	} {
		_, err := bus.JS.Publish(ctx, subject, []byte(`{}`))
		require.NoError(t, err)
	}

	require.NoError(t, PurgeInstance(ctx, bus.Stream, "drop"))

	info, err := bus.Stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	require.ErrorIs(t, PurgeInstance(ctx, bus.Stream, "bad.id"), ErrInvalidInstance)
}
