package wizard

import "context"

// Validator judges step data when no channel listener answered the
// validate-request for it.
type Validator interface {
	Validate(ctx context.Context, step StepDefinition, data any) (bool, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, step StepDefinition, data any) (bool, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, step StepDefinition, data any) (bool, error) {
	return f(ctx, step, data)
}

// StepValidator is the default Validator: it runs the step's own Validate
// function and treats steps without one as valid.
type StepValidator struct{}

// Validate implements Validator.
func (StepValidator) Validate(ctx context.Context, step StepDefinition, data any) (bool, error) {
	if step.Validate == nil {
		return true, nil
	}
	return step.Validate(ctx, data)
}
