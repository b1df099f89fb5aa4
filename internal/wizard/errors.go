package wizard

import "errors"

var (
	// ErrEmptyStepID is returned when a step definition has no id.
	ErrEmptyStepID = errors.New("step id cannot be empty")

	// ErrDuplicateStepID is returned when two steps of one wizard share an id.
	ErrDuplicateStepID = errors.New("duplicate step id")

	// ErrNavigationInFlight is returned by NextStep while a previous call is still validating.
	ErrNavigationInFlight = errors.New("navigation already in progress")

	// ErrNoValidator is returned by ValidateStep when no listener answered the request.
	ErrNoValidator = errors.New("no listener answered the validation request")

	// ErrClosed is returned when operating on a store after Close.
	ErrClosed = errors.New("wizard store is closed")
)
