// Package wizard implements the multi-step wizard engine: the navigation and
// validation state machine (Store), the event bus it reports through (Channel)
// and the Provider that owns one store per mounted wizard.
package wizard

import (
	"context"
	"fmt"
	"time"
)

// ValidateFunc reports whether the data collected for a step is acceptable.
// It may block; ctx is cancelled when the store closes or the validation
// timeout expires.
type ValidateFunc func(ctx context.Context, data any) (bool, error)

// ConditionFunc decides whether a step is visible given all collected data.
type ConditionFunc func(data map[string]any) bool

// StepDefinition describes one step. Definitions are never mutated once a
// store has been built from them.
type StepDefinition struct {
	ID       string
	Title    string
	Optional bool // informational only

	Validate  ValidateFunc  // nil: always valid
	Condition ConditionFunc // nil: always visible

	// Evictable marks a step that may be unmounted while it is outside the
	// render window. Non-evictable steps stay rendered.
	Evictable bool

	Description string
	Meta        map[string]any
}

// Hooks are lifecycle callbacks invoked on transitions. Any of them may be nil.
// A returned error aborts the rest of the transition and is returned to the
// caller of NextStep or PrevStep.
type Hooks struct {
	OnStepEnter      func(stepID, fromStepID string) error
	OnStepLeave      func(stepID, toStepID string) error
	OnWizardComplete func(stepData map[string]any) error
}

func (h *Hooks) stepEnter(stepID, from string) error {
	if h == nil || h.OnStepEnter == nil {
		return nil
	}
	if err := h.OnStepEnter(stepID, from); err != nil {
		return fmt.Errorf("onStepEnter %q: %w", stepID, err)
	}
	return nil
}

func (h *Hooks) stepLeave(stepID, to string) error {
	if h == nil || h.OnStepLeave == nil {
		return nil
	}
	if err := h.OnStepLeave(stepID, to); err != nil {
		return fmt.Errorf("onStepLeave %q: %w", stepID, err)
	}
	return nil
}

func (h *Hooks) complete(data map[string]any) error {
	if h == nil || h.OnWizardComplete == nil {
		return nil
	}
	if err := h.OnWizardComplete(data); err != nil {
		return fmt.Errorf("onWizardComplete: %w", err)
	}
	return nil
}

// Config holds the behavior switches of one wizard. It is fixed at construction.
type Config struct {
	LazyRendering         bool
	RenderAdjacent        bool
	RequireStepValidation bool

	// ReconcileIndex keeps the current index pointing at a visible step after
	// data changes alter step visibility.
	ReconcileIndex bool

	// ValidationTimeout bounds each validation. Zero waits indefinitely.
	ValidationTimeout time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		LazyRendering:         true,
		RenderAdjacent:        false,
		RequireStepValidation: true,
	}
}

// ConfigOverrides carries caller-supplied config. Nil fields keep the default.
type ConfigOverrides struct {
	LazyRendering         *bool
	RenderAdjacent        *bool
	RequireStepValidation *bool
	ReconcileIndex        *bool
	ValidationTimeout     *time.Duration
}

// MergeConfig shallow-merges overrides over DefaultConfig.
func MergeConfig(o *ConfigOverrides) Config {
	cfg := DefaultConfig()
	if o == nil {
		return cfg
	}
	if o.LazyRendering != nil {
		cfg.LazyRendering = *o.LazyRendering
	}
	if o.RenderAdjacent != nil {
		cfg.RenderAdjacent = *o.RenderAdjacent
	}
	if o.RequireStepValidation != nil {
		cfg.RequireStepValidation = *o.RequireStepValidation
	}
	if o.ReconcileIndex != nil {
		cfg.ReconcileIndex = *o.ReconcileIndex
	}
	if o.ValidationTimeout != nil {
		cfg.ValidationTimeout = *o.ValidationTimeout
	}
	return cfg
}

// WizardError is the user-facing error state of a wizard.
type WizardError struct {
	UserMessage string `json:"user_message"`
	DevMessage  string `json:"dev_message"`
}

// Error returns the developer message.
func (e *WizardError) Error() string {
	return e.DevMessage
}

func validationError(step StepDefinition) *WizardError {
	return &WizardError{
		UserMessage: fmt.Sprintf("Please complete %q correctly.", step.Title),
		DevMessage:  fmt.Sprintf("Validation failed for step %q.", step.ID),
	}
}

// Snapshot is a copy of the mutable state of a store.
type Snapshot struct {
	CurrentStepIndex int             `json:"current_step_index"`
	CurrentStepID    string          `json:"current_step_id,omitempty"`
	StepData         map[string]any  `json:"step_data"`
	ValidationStatus map[string]bool `json:"validation_status"`
	Error            *WizardError    `json:"error,omitempty"`
}
