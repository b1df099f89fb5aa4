package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(kind EventKind) Event {
	switch kind {
	case KindValidateRequest:
		return ValidateRequestEvent{StepID: "a"}
	case KindValidationStatus:
		return ValidationStatusEvent{StepID: "a", Valid: true}
	case KindStepDataUpdate:
		return StepDataUpdateEvent{StepID: "a", Data: 1}
	case KindNavigate:
		return NavigateEvent{From: "a", To: "b"}
	case KindError:
		return ErrorEvent{Message: "m"}
	case KindComplete:
		return CompleteEvent{StepData: map[string]any{}}
	}
	return nil
}

func TestChannel_UnsubscribeRoundTrip(t *testing.T) {
	for _, kind := range EventKinds {
		t.Run(string(kind), func(t *testing.T) {
			ch := NewChannel()
			var removed, kept int
			sub := ch.Subscribe(kind, func(Event) { removed++ })
			ch.Subscribe(kind, func(Event) { kept++ })

			ch.Emit(sampleEvent(kind))
			ch.Unsubscribe(sub)
			ch.Emit(sampleEvent(kind))
			ch.Emit(sampleEvent(kind))

			assert.Equal(t, 1, removed)
			assert.Equal(t, 3, kept)
		})
	}
}

func TestChannel_UnsubscribeIsIdempotent(t *testing.T) {
	ch := NewChannel()
	sub := ch.Subscribe(KindNavigate, func(Event) {})

	ch.Unsubscribe(sub)
	ch.Unsubscribe(sub)
	ch.Unsubscribe(Subscription{})

	assert.Equal(t, 0, ch.Len(KindNavigate))
}

func TestChannel_DeliversInSubscriptionOrder(t *testing.T) {
	ch := NewChannel()
	var order []int
	for i := range 3 {
		ch.Subscribe(KindError, func(Event) { order = append(order, i) })
	}

	ch.Emit(ErrorEvent{Message: "x"})

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestChannel_OnlyMatchingKind(t *testing.T) {
	ch := NewChannel()
	var got []Event
	ch.Subscribe(KindNavigate, func(ev Event) { got = append(got, ev) })

	ch.Emit(ErrorEvent{Message: "ignored"})
	ch.Emit(NavigateEvent{From: "a", To: "b"})

	assert.Equal(t, []Event{NavigateEvent{From: "a", To: "b"}}, got)
}

func TestChannel_PanickingListenerDoesNotReachEmitter(t *testing.T) {
	ch := NewChannel()
	var after bool
	ch.Subscribe(KindComplete, func(Event) { panic("listener bug") })
	ch.Subscribe(KindComplete, func(Event) { after = true })

	require.NotPanics(t, func() { ch.Emit(CompleteEvent{}) })
	assert.True(t, after)
}

func TestChannel_UnsubscribeDuringEmit(t *testing.T) {
	ch := NewChannel()
	var second int
	var sub Subscription
	sub = ch.Subscribe(KindNavigate, func(Event) { ch.Unsubscribe(sub) })
	ch.Subscribe(KindNavigate, func(Event) { second++ })

	ch.Emit(NavigateEvent{})
	ch.Emit(NavigateEvent{})

	assert.Equal(t, 2, second)
	assert.Equal(t, 1, ch.Len(KindNavigate))
}

func TestValidateStep(t *testing.T) {
	ctx := context.Background()

	t.Run("no listener", func(t *testing.T) {
		_, err := NewChannel().ValidateStep(ctx, "a", nil)
		require.ErrorIs(t, err, ErrNoValidator)
	})

	t.Run("synchronous resolve", func(t *testing.T) {
		ch := NewChannel()
		ch.Subscribe(KindValidateRequest, func(ev Event) {
			req := ev.(ValidateRequestEvent)
			req.Resolve(req.Data == "good")
		})

		valid, err := ch.ValidateStep(ctx, "a", "good")
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("first resolve wins", func(t *testing.T) {
		ch := NewChannel()
		ch.Subscribe(KindValidateRequest, func(ev Event) { ev.(ValidateRequestEvent).Resolve(false) })
		ch.Subscribe(KindValidateRequest, func(ev Event) { ev.(ValidateRequestEvent).Resolve(true) })

		valid, err := ch.ValidateStep(ctx, "a", nil)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("held then resolved", func(t *testing.T) {
		ch := NewChannel()
		ch.Subscribe(KindValidateRequest, func(ev Event) {
			req := ev.(ValidateRequestEvent)
			req.Hold()
			time.AfterFunc(5*time.Millisecond, func() { req.Resolve(true) })
		})

		valid, err := ch.ValidateStep(ctx, "a", nil)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("async resolve without hold is ignored", func(t *testing.T) {
		ch := NewChannel()
		release := make(chan struct{})
		resolved := make(chan struct{})
		ch.Subscribe(KindValidateRequest, func(ev Event) {
			req := ev.(ValidateRequestEvent)
			go func() {
				<-release
				req.Resolve(true)
				close(resolved)
			}()
		})

		_, err := ch.ValidateStep(ctx, "a", nil)
		require.ErrorIs(t, err, ErrNoValidator)

		close(release)
		<-resolved
	})

	t.Run("held and cancelled", func(t *testing.T) {
		ch := NewChannel()
		ch.Subscribe(KindValidateRequest, func(ev Event) { ev.(ValidateRequestEvent).Hold() })
		ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := ch.ValidateStep(ctx, "a", nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
