package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mark3labs/stepwise/internal/hooks"
	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// Compiled is a validated flow turned into wizard steps. Steps and Config
// return the same values on every call, so a Provider rendered from them
// keeps its store.
type Compiled struct {
	Name  string
	Theme wizard.Theme
	Hooks hooks.HooksConfig

	steps  []wizard.StepDefinition
	config *wizard.ConfigOverrides
	fields map[string][]Field
	output *output

	mu     sync.RWMutex
	source func() map[string]any
}

// Compile validates def and compiles every expression and schema in it.
func Compile(def *Definition) (*Compiled, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	env, err := celEnv()
	if err != nil {
		return nil, err
	}

	c := &Compiled{
		Name:   def.Name,
		Theme:  wizard.Theme(def.Theme),
		Hooks:  def.Hooks,
		fields: make(map[string][]Field, len(def.Steps)),
		config: &wizard.ConfigOverrides{
			LazyRendering:         def.Config.LazyRendering,
			RenderAdjacent:        def.Config.RenderAdjacent,
			RequireStepValidation: def.Config.RequireStepValidation,
			ReconcileIndex:        def.Config.ReconcileIndex,
		},
	}

	for _, spec := range def.Steps {
		step, err := c.compileStep(env, spec)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", spec.ID, err)
		}
		c.steps = append(c.steps, step)
		c.fields[spec.ID] = spec.Fields
	}

	if def.Output != "" {
		c.output, err = compileOutput(def.Output)
		if err != nil {
			return nil, fmt.Errorf("output: %w", err)
		}
	}

	logger.Debug("Compiled flow %q with %d steps", def.Name, len(c.steps))
	return c, nil
}

func (c *Compiled) compileStep(env *cel.Env, spec StepSpec) (wizard.StepDefinition, error) {
	step := wizard.StepDefinition{
		ID:          spec.ID,
		Title:       spec.Title,
		Description: spec.Description,
		Optional:    spec.Optional,
		Evictable:   spec.Evictable,
	}
	if step.Title == "" {
		step.Title = spec.ID
	}

	if spec.Condition != "" {
		cond, err := compileCondition(spec.Condition)
		if err != nil {
			return step, fmt.Errorf("condition: %w", err)
		}
		step.Condition = cond.eval
	}

	v := &stepValidator{stepID: spec.ID, steps: c.stepData}
	for _, f := range spec.Fields {
		if f.Required {
			v.required = append(v.required, f.Name)
		}
	}
	if len(spec.Schema) > 0 {
		s, err := compileSchema(spec.ID, spec.Schema)
		if err != nil {
			return step, fmt.Errorf("schema: %w", err)
		}
		v.schema = s
	}
	if spec.Validate != "" {
		r, err := compileRule(env, spec.Validate)
		if err != nil {
			return step, fmt.Errorf("validate: %w", err)
		}
		v.rule = r
	}
	if v.active() {
		step.Validate = v.validate
	}
	return step, nil
}

// Steps returns the compiled step definitions.
func (c *Compiled) Steps() []wizard.StepDefinition {
	return c.steps
}

// Config returns the flow's configuration overrides.
func (c *Compiled) Config() *wizard.ConfigOverrides {
	return c.config
}

// Fields returns the input fields of a step.
func (c *Compiled) Fields(stepID string) []Field {
	return c.fields[stepID]
}

// Bind sets where validate expressions read `steps` from, normally
// Store.StepData. Unbound flows see an empty map.
func (c *Compiled) Bind(source func() map[string]any) {
	c.mu.Lock()
	c.source = source
	c.mu.Unlock()
}

func (c *Compiled) stepData() map[string]any {
	c.mu.RLock()
	source := c.source
	c.mu.RUnlock()
	if source == nil {
		return map[string]any{}
	}
	return source()
}

// Output shapes the collected step data with the flow's jq program. Without
// one, the data is returned as is.
func (c *Compiled) Output(ctx context.Context, data map[string]any) (any, error) {
	if c.output == nil {
		return data, nil
	}
	return c.output.run(ctx, data)
}

// stepValidator combines required fields, the JSON Schema and the CEL rule
// of one step. All configured checks must pass.
type stepValidator struct {
	stepID   string
	required []string
	schema   *jsonschema.Schema
	rule     *rule
	steps    func() map[string]any
}

func (v *stepValidator) active() bool {
	return len(v.required) > 0 || v.schema != nil || v.rule != nil
}

func (v *stepValidator) validate(ctx context.Context, data any) (bool, error) {
	fields, err := asMap(data)
	if err != nil {
		return false, err
	}

	for _, name := range v.required {
		if isBlank(fields[name]) {
			logger.Debug("Step %s: required field %s is empty", v.stepID, name)
			return false, nil
		}
	}

	if v.schema != nil {
		violations, err := checkSchema(v.schema, fields)
		if err != nil {
			return false, err
		}
		if len(violations) > 0 {
			logger.Debug("Step %s: schema violations: %s", v.stepID, strings.Join(violations, "; "))
			return false, nil
		}
	}

	if v.rule != nil {
		return v.rule.eval(ctx, fields, v.steps())
	}
	return true, nil
}

// asMap coerces step data to a JSON object.
func asMap(data any) (map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return d, nil
	case map[string]string:
		out := make(map[string]any, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out, nil
	}
	n, err := normalize(data)
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("step data must be an object, got %T", data)
	}
	return m, nil
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
