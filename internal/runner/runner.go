// Package runner drives a wizard without a terminal, feeding each step
// from a prepared answers file.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/wizard"
)

var (
	// ErrStepInvalid is returned when a step's answers fail validation.
	ErrStepInvalid = errors.New("step failed validation")
	// ErrNoProgress is returned when the wizard stops moving forward.
	ErrNoProgress = errors.New("wizard made no progress")
)

// Answers maps step ids to the data submitted for them.
type Answers map[string]map[string]any

// LoadAnswers reads answers from a YAML or JSON file.
func LoadAnswers(path string) (Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers file: %w", err)
	}
	var answers Answers
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parsing answers file: %w", err)
	}
	if answers == nil {
		answers = Answers{}
	}
	return answers, nil
}

// Run walks store from its current step to completion, submitting the
// answer of every step it visits. Steps without an answer are submitted
// with whatever data they already hold. Returns the completed step data.
func Run(ctx context.Context, store *wizard.Store, answers Answers) (map[string]any, error) {
	var (
		mu     sync.Mutex
		result map[string]any
	)
	sub := store.Events().Subscribe(wizard.KindComplete, func(ev wizard.Event) {
		mu.Lock()
		result = ev.(wizard.CompleteEvent).StepData
		mu.Unlock()
	})
	defer store.Events().Unsubscribe(sub)

	done := func() (map[string]any, bool) {
		mu.Lock()
		defer mu.Unlock()
		return result, result != nil
	}

	// Every successful NextStep advances or completes, so this bounds a
	// well-behaved run with room for steps revealed along the way.
	limit := 2*len(store.Steps()) + 1
	for range limit {
		step, ok := store.CurrentStep()
		if !ok {
			return nil, fmt.Errorf("%w: no visible step", ErrNoProgress)
		}

		if answer, ok := answers[step.ID]; ok {
			logger.Debug("Submitting %d answers for step %s", len(answer), step.ID)
			store.SetStepData(step.ID, answer)
		}

		before := store.CurrentStepIndex()
		if err := store.NextStep(ctx); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.ID, err)
		}
		if data, ok := done(); ok {
			return data, nil
		}
		if e := store.Err(); e != nil {
			return nil, fmt.Errorf("%w: %s", ErrStepInvalid, e.UserMessage)
		}
		if store.CurrentStepIndex() == before {
			return nil, fmt.Errorf("%w at step %q", ErrNoProgress, step.ID)
		}
	}
	return nil, fmt.Errorf("%w after %d steps", ErrNoProgress, limit)
}
