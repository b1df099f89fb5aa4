package wizard

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/stepwise/internal/logger"
)

// EventKind names one of the six event kinds carried by a Channel.
type EventKind string

const (
	KindValidateRequest  EventKind = "validate-request"
	KindValidationStatus EventKind = "validation-status"
	KindStepDataUpdate   EventKind = "step-data-update"
	KindNavigate         EventKind = "navigate"
	KindError            EventKind = "error"
	KindComplete         EventKind = "complete"
)

// EventKinds lists every kind in a stable order.
var EventKinds = []EventKind{
	KindValidateRequest,
	KindValidationStatus,
	KindStepDataUpdate,
	KindNavigate,
	KindError,
	KindComplete,
}

// Event is implemented by every payload type.
type Event interface {
	Kind() EventKind
}

// ValidateRequestEvent asks listeners to judge a step's data. A listener
// answers synchronously with Resolve, or calls Hold during dispatch and
// resolves later from any goroutine. Only the first Resolve counts.
//
// A listener that resolves asynchronously must call Hold before returning.
// Without it the request counts as unanswered once dispatch ends: NextStep
// falls back to the store's Validator, ValidateStep returns ErrNoValidator,
// and the late Resolve is ignored.
type ValidateRequestEvent struct {
	StepID string
	Data   any

	ticket *ticket
}

// Resolve answers the request.
func (e ValidateRequestEvent) Resolve(valid bool) {
	if e.ticket != nil {
		e.ticket.resolve(valid)
	}
}

// Hold tells the requester an answer is coming later.
func (e ValidateRequestEvent) Hold() {
	if e.ticket != nil {
		e.ticket.held.Store(true)
	}
}

// ValidationStatusEvent reports a finished validation.
type ValidationStatusEvent struct {
	StepID string
	Valid  bool
}

// StepDataUpdateEvent reports newly accepted step data.
type StepDataUpdateEvent struct {
	StepID string
	Data   any
}

// NavigateEvent reports a committed transition.
type NavigateEvent struct {
	From string
	To   string
}

// ErrorEvent reports that an error was set on the wizard.
type ErrorEvent struct {
	Message string
}

// CompleteEvent reports successful forward navigation from the last step.
type CompleteEvent struct {
	StepData map[string]any
}

func (ValidateRequestEvent) Kind() EventKind  { return KindValidateRequest }
func (ValidationStatusEvent) Kind() EventKind { return KindValidationStatus }
func (StepDataUpdateEvent) Kind() EventKind   { return KindStepDataUpdate }
func (NavigateEvent) Kind() EventKind         { return KindNavigate }
func (ErrorEvent) Kind() EventKind            { return KindError }
func (CompleteEvent) Kind() EventKind         { return KindComplete }

// ticket carries the answer of one validation request.
type ticket struct {
	once sync.Once
	held atomic.Bool
	done chan bool
}

func newTicket() *ticket {
	return &ticket{done: make(chan bool, 1)}
}

func (t *ticket) resolve(valid bool) {
	t.once.Do(func() {
		t.done <- valid
	})
}

// Listener receives events of the kinds it subscribed to.
type Listener func(Event)

// Subscription identifies one registered listener.
type Subscription struct {
	kind EventKind
	id   uint64
}

type registration struct {
	id uint64
	fn Listener
}

// Channel is a typed publish/subscribe bus. The zero value is not usable;
// create one with NewChannel.
type Channel struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventKind][]registration
}

// DefaultChannel is a process-wide channel for callers that coordinate
// several wizards on one bus. Providers use a private channel unless told
// otherwise.
var DefaultChannel = NewChannel()

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{
		listeners: make(map[EventKind][]registration),
	}
}

// Subscribe registers fn for events of kind.
func (c *Channel) Subscribe(kind EventKind, fn Listener) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.listeners[kind] = append(c.listeners[kind], registration{id: c.nextID, fn: fn})
	return Subscription{kind: kind, id: c.nextID}
}

// SubscribeAll registers fn for every event kind.
func (c *Channel) SubscribeAll(fn Listener) []Subscription {
	subs := make([]Subscription, 0, len(EventKinds))
	for _, kind := range EventKinds {
		subs = append(subs, c.Subscribe(kind, fn))
	}
	return subs
}

// Unsubscribe removes a listener. Unknown or already removed subscriptions
// are ignored.
func (c *Channel) Unsubscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	regs := c.listeners[sub.kind]
	for i, r := range regs {
		if r.id == sub.id {
			// Copy so in-flight emissions keep their snapshot intact.
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			c.listeners[sub.kind] = next
			return
		}
	}
}

// Len returns the number of listeners registered for kind.
func (c *Channel) Len(kind EventKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners[kind])
}

// Emit delivers ev to the listeners of its kind in subscription order.
// A panicking listener is logged and skipped.
func (c *Channel) Emit(ev Event) {
	c.mu.RLock()
	regs := c.listeners[ev.Kind()]
	c.mu.RUnlock()

	for _, r := range regs {
		c.deliver(r, ev)
	}
}

func (c *Channel) deliver(r registration, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("Listener %d panicked on %s event: %v", r.id, ev.Kind(), p)
		}
	}()
	r.fn(ev)
}

// request emits a validate-request and collects the answer. answered is
// false when no listener resolved or held the request.
func (c *Channel) request(ctx context.Context, stepID string, data any) (valid, answered bool, err error) {
	t := newTicket()
	c.Emit(ValidateRequestEvent{StepID: stepID, Data: data, ticket: t})

	select {
	case v := <-t.done:
		return v, true, nil
	default:
	}
	if !t.held.Load() {
		return false, false, nil
	}

	logger.Debug("Waiting for held validation of step %s", stepID)
	select {
	case v := <-t.done:
		return v, true, nil
	case <-ctx.Done():
		return false, true, ctx.Err()
	}
}

// ValidateStep emits a validate-request for stepID and returns the answer
// of whichever listener resolves it.
func (c *Channel) ValidateStep(ctx context.Context, stepID string, data any) (bool, error) {
	valid, answered, err := c.request(ctx, stepID, data)
	if err != nil {
		return false, err
	}
	if !answered {
		return false, ErrNoValidator
	}
	return valid, nil
}
