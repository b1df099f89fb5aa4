package wizard

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/stepwise/internal/logger"
)

// Store is the navigation and validation state machine of one wizard.
// It is safe for concurrent use; no lock is held while hooks, listeners,
// conditions or validators run.
type Store struct {
	steps     []StepDefinition
	hooks     *Hooks
	config    Config
	events    *Channel
	validator Validator

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu               sync.Mutex
	currentIndex     int
	stepData         map[string]any
	validationStatus map[string]bool
	err              *WizardError

	navigating atomic.Bool
	pending    sync.WaitGroup
}

// Option customizes a Store.
type Option func(*Store)

// WithValidator replaces the fallback validator used when no listener
// answers a validate-request.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithContext sets the parent context of background validations.
func WithContext(ctx context.Context) Option {
	return func(s *Store) {
		s.ctx, s.cancel = context.WithCancel(ctx)
	}
}

// NewStore builds a store over steps. A nil events channel gets a private one.
func NewStore(steps []StepDefinition, hooks *Hooks, cfg Config, events *Channel, opts ...Option) (*Store, error) {
	seen := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return nil, ErrEmptyStepID
		}
		if _, dup := seen[step.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStepID, step.ID)
		}
		seen[step.ID] = struct{}{}
	}

	if events == nil {
		events = NewChannel()
	}

	s := &Store{
		steps:            append([]StepDefinition(nil), steps...),
		hooks:            hooks,
		config:           cfg,
		events:           events,
		validator:        StepValidator{},
		stepData:         make(map[string]any),
		validationStatus: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ctx == nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	logger.Debug("Created wizard store with %d steps", len(steps))
	return s, nil
}

// NextStep validates the current step and moves forward, or completes the
// wizard when the current step is the last visible one. A failed validation
// is reported through Err and the error event, not as a returned error.
func (s *Store) NextStep(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.navigating.CompareAndSwap(false, true) {
		return ErrNavigationInFlight
	}
	defer s.navigating.Store(false)

	s.mu.Lock()
	index := s.currentIndex
	data := maps.Clone(s.stepData)
	s.mu.Unlock()

	visible := visibleSteps(s.steps, data)
	if index < 0 || index >= len(visible) {
		logger.Debug("NextStep: no visible step at index %d (%d visible)", index, len(visible))
		return nil
	}
	current := visible[index]

	valid, err := s.validate(ctx, current, data[current.ID])
	if err != nil {
		return err
	}
	if !valid && s.config.RequireStepValidation {
		logger.Debug("Step %s failed validation, staying put", current.ID)
		s.SetError(validationError(current))
		return nil
	}

	if index+1 >= len(visible) {
		logger.Debug("Wizard complete at step %s", current.ID)
		if err := s.hooks.complete(maps.Clone(data)); err != nil {
			return err
		}
		s.events.Emit(CompleteEvent{StepData: data})
		return nil
	}

	next := visible[index+1]

	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()

	if err := s.hooks.stepLeave(current.ID, next.ID); err != nil {
		return err
	}

	s.mu.Lock()
	s.currentIndex = index + 1
	s.mu.Unlock()

	if err := s.hooks.stepEnter(next.ID, current.ID); err != nil {
		return err
	}
	s.events.Emit(NavigateEvent{From: current.ID, To: next.ID})
	return nil
}

// validate routes the request through the channel first and falls back to
// the store's validator when no listener answered.
func (s *Store) validate(ctx context.Context, step StepDefinition, data any) (bool, error) {
	vctx := ctx
	if s.config.ValidationTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, s.config.ValidationTimeout)
		defer cancel()
	}

	valid, answered, err := s.events.request(vctx, step.ID, data)
	if err == nil && !answered {
		valid, err = s.validator.Validate(vctx, step, data)
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Warn("Validation of step %s errored: %v", step.ID, err)
		return false, nil
	}
	return valid, nil
}

// PrevStep moves back one visible step. It never validates and never clears
// the error state. At the first step it does nothing.
func (s *Store) PrevStep() error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	index := s.currentIndex
	data := maps.Clone(s.stepData)
	s.mu.Unlock()

	if index <= 0 {
		return nil
	}

	visible := visibleSteps(s.steps, data)
	if index-1 >= len(visible) {
		logger.Debug("PrevStep: no visible step at index %d", index-1)
		return nil
	}
	prev := visible[index-1]
	var currentID string
	if index < len(visible) {
		currentID = visible[index].ID
	}

	if err := s.hooks.stepLeave(currentID, prev.ID); err != nil {
		return err
	}

	s.mu.Lock()
	s.currentIndex = index - 1
	s.mu.Unlock()

	if err := s.hooks.stepEnter(prev.ID, currentID); err != nil {
		return err
	}
	s.events.Emit(NavigateEvent{From: currentID, To: prev.ID})
	return nil
}

// SetStepData replaces the data of stepID and emits step-data-update. When
// the step has a Validate function it runs in the background and reports
// through validation-status. Ids unknown to the wizard are still recorded.
func (s *Store) SetStepData(stepID string, data any) {
	var previousID string
	if s.config.ReconcileIndex {
		current, _ := s.CurrentStep()
		previousID = current.ID
	}

	// closed is checked and pending grown under mu so Close never waits
	// while a new validation is being registered.
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		logger.Debug("SetStepData(%s) ignored: store closed", stepID)
		return
	}
	s.stepData[stepID] = data
	i := indexOf(s.steps, stepID)
	validate := i >= 0 && s.steps[i].Validate != nil
	if validate {
		s.pending.Add(1)
	}
	s.mu.Unlock()

	s.events.Emit(StepDataUpdateEvent{StepID: stepID, Data: data})

	if s.config.ReconcileIndex {
		s.reconcile(previousID)
	}
	if validate {
		go s.runValidation(s.steps[i], data)
	}
}

// reconcile keeps the index on previousID when it is still visible and
// clamps it into range otherwise. navigate is emitted only when the current
// step changed.
func (s *Store) reconcile(previousID string) {
	s.mu.Lock()
	index := s.currentIndex
	data := maps.Clone(s.stepData)
	s.mu.Unlock()

	visible := visibleSteps(s.steps, data)
	if len(visible) == 0 {
		return
	}
	target := indexOf(visible, previousID)
	if target < 0 {
		target = min(index, len(visible)-1)
	}
	if target == index && visible[target].ID == previousID {
		return
	}

	s.mu.Lock()
	if s.currentIndex != index {
		s.mu.Unlock()
		return
	}
	s.currentIndex = target
	s.mu.Unlock()

	logger.Debug("Reconciled index %d -> %d after visibility change", index, target)
	if to := visible[target].ID; to != previousID {
		s.events.Emit(NavigateEvent{From: previousID, To: to})
	}
}

func (s *Store) runValidation(step StepDefinition, data any) {
	defer s.pending.Done()

	ctx := s.ctx
	if s.config.ValidationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ValidationTimeout)
		defer cancel()
	}

	valid, err := callValidate(ctx, step, data)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.Warn("Validation of step %s errored: %v", step.ID, err)
		valid = false
	}

	s.mu.Lock()
	s.validationStatus[step.ID] = valid
	s.mu.Unlock()

	s.events.Emit(ValidationStatusEvent{StepID: step.ID, Valid: valid})
}

func callValidate(ctx context.Context, step StepDefinition, data any) (valid bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			valid, err = false, fmt.Errorf("validator panicked: %v", p)
		}
	}()
	return step.Validate(ctx, data)
}

// SetError sets or clears the error state. Only setting emits an error event.
func (s *Store) SetError(e *WizardError) {
	s.mu.Lock()
	s.err = e
	s.mu.Unlock()

	if e != nil {
		s.events.Emit(ErrorEvent{Message: e.UserMessage})
	}
}

// Wait blocks until all background validations have finished.
func (s *Store) Wait() {
	s.pending.Wait()
}

// Close cancels background validations and waits for them. Later operations
// return ErrClosed or are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	already := s.closed.Swap(true)
	s.mu.Unlock()
	if already {
		return
	}
	s.cancel()
	s.pending.Wait()
}

// Steps returns all step definitions in order.
func (s *Store) Steps() []StepDefinition {
	return append([]StepDefinition(nil), s.steps...)
}

// Events returns the channel the store emits on.
func (s *Store) Events() *Channel {
	return s.events
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// CurrentStepIndex returns the index into VisibleSteps of the current step.
func (s *Store) CurrentStepIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// StepData returns a copy of the collected data.
func (s *Store) StepData() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.stepData)
}

// ValidationStatus returns a copy of the per-step validation results.
func (s *Store) ValidationStatus() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.validationStatus)
}

// Err returns the current error state, or nil.
func (s *Store) Err() *WizardError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	e := *s.err
	return &e
}

// VisibleSteps returns the steps whose condition holds for the current data.
func (s *Store) VisibleSteps() []StepDefinition {
	return visibleSteps(s.steps, s.StepData())
}

// RenderedSteps returns the visible steps the presentation layer should mount.
func (s *Store) RenderedSteps() []StepDefinition {
	s.mu.Lock()
	index := s.currentIndex
	data := maps.Clone(s.stepData)
	s.mu.Unlock()
	return renderedSteps(visibleSteps(s.steps, data), index, s.config)
}

// CurrentStep returns the current visible step.
func (s *Store) CurrentStep() (StepDefinition, bool) {
	s.mu.Lock()
	index := s.currentIndex
	data := maps.Clone(s.stepData)
	s.mu.Unlock()

	visible := visibleSteps(s.steps, data)
	if index < 0 || index >= len(visible) {
		return StepDefinition{}, false
	}
	return visible[index], true
}

// Snapshot copies the mutable state.
func (s *Store) Snapshot() Snapshot {
	step, _ := s.CurrentStep()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		CurrentStepIndex: s.currentIndex,
		CurrentStepID:    step.ID,
		StepData:         maps.Clone(s.stepData),
		ValidationStatus: maps.Clone(s.validationStatus),
	}
	if s.err != nil {
		e := *s.err
		snap.Error = &e
	}
	return snap
}

// Restore replaces the mutable state with snap. The index follows
// CurrentStepID when that step is visible and is clamped into range
// otherwise. Restore emits no events.
func (s *Store) Restore(snap Snapshot) {
	data := maps.Clone(snap.StepData)
	if data == nil {
		data = make(map[string]any)
	}
	status := maps.Clone(snap.ValidationStatus)
	if status == nil {
		status = make(map[string]bool)
	}

	visible := visibleSteps(s.steps, data)
	index := indexOf(visible, snap.CurrentStepID)
	if index < 0 {
		index = max(0, min(snap.CurrentStepIndex, len(visible)-1))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepData = data
	s.validationStatus = status
	s.currentIndex = index
	s.err = nil
	if snap.Error != nil {
		e := *snap.Error
		s.err = &e
	}
}
