package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/cel-go/cel"
	"github.com/itchyny/gojq"

	"github.com/mark3labs/stepwise/internal/logger"
)

// condition is a compiled expr-lang visibility rule. It sees the collected
// step data as `steps`.
type condition struct {
	source  string
	program *vm.Program
}

func compileCondition(source string) (*condition, error) {
	prg, err := expr.Compile(source,
		expr.Env(map[string]any{"steps": map[string]any{}}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("expr compile error in %q: %w", source, err)
	}
	return &condition{source: source, program: prg}, nil
}

// eval reports visibility. Errors and non-bool results hide the step.
func (c *condition) eval(stepData map[string]any) bool {
	if stepData == nil {
		stepData = map[string]any{}
	}
	out, err := vm.Run(c.program, map[string]any{"steps": stepData})
	if err != nil {
		logger.Warn("Condition %q failed: %v", c.source, err)
		return false
	}
	visible, ok := out.(bool)
	if !ok {
		logger.Warn("Condition %q returned %T, want bool", c.source, out)
		return false
	}
	return visible
}

// celEnv declares the variables a validate expression may use.
func celEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.DynType),
		cel.Variable("steps", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return env, nil
}

// rule is a compiled CEL validate expression.
type rule struct {
	source  string
	program cel.Program
}

func compileRule(env *cel.Env, source string) (*rule, error) {
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", source, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error for %q: %w", source, err)
	}
	return &rule{source: source, program: prg}, nil
}

func (r *rule) eval(ctx context.Context, data map[string]any, steps map[string]any) (bool, error) {
	if steps == nil {
		steps = map[string]any{}
	}
	out, _, err := r.program.ContextEval(ctx, map[string]any{
		"data":  data,
		"steps": steps,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation failed for %q: %w", r.source, err)
	}
	valid, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression %q returned %T, want bool", r.source, out.Value())
	}
	return valid, nil
}

// output is a compiled jq program shaping the completion result.
type output struct {
	source string
	code   *gojq.Code
}

func compileOutput(source string) (*output, error) {
	query, err := gojq.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("jq parse error in %q: %w", source, err)
	}
	code, err := gojq.Compile(query,
		// Sandbox: no access to the process environment.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, fmt.Errorf("jq compile error in %q: %w", source, err)
	}
	return &output{source: source, code: code}, nil
}

// run returns the single result, a slice for several results, or nil.
func (o *output) run(ctx context.Context, data map[string]any) (any, error) {
	input, err := normalize(data)
	if err != nil {
		return nil, err
	}

	iter := o.code.RunWithContext(ctx, input)
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq evaluation failed for %q: %w", o.source, err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// normalize round-trips v through JSON so every value is a plain JSON type.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding step data: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding step data: %w", err)
	}
	return out, nil
}
