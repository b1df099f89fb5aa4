// Package flow loads wizard definitions from YAML files and compiles them
// into wizard steps.
package flow

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/stepwise/internal/hooks"
)

// Definition is the on-disk form of a flow.
type Definition struct {
	Version int               `yaml:"version" validate:"required,eq=1"`
	Name    string            `yaml:"name" validate:"required"`
	Config  ConfigSection     `yaml:"config"`
	Theme   map[string]string `yaml:"theme,omitempty"`
	Output  string            `yaml:"output,omitempty"`
	Hooks   hooks.HooksConfig `yaml:"hooks,omitempty"`
	Steps   []StepSpec        `yaml:"steps" validate:"required,min=1,dive"`
}

// ConfigSection mirrors wizard.ConfigOverrides. Unset keys keep the defaults.
type ConfigSection struct {
	LazyRendering         *bool `yaml:"lazy_rendering,omitempty"`
	RenderAdjacent        *bool `yaml:"render_adjacent,omitempty"`
	RequireStepValidation *bool `yaml:"require_step_validation,omitempty"`
	ReconcileIndex        *bool `yaml:"reconcile_index,omitempty"`
}

// StepSpec describes one step.
type StepSpec struct {
	ID          string         `yaml:"id" validate:"required,max=64"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description,omitempty"`
	Optional    bool           `yaml:"optional,omitempty"`
	Evictable   bool           `yaml:"evictable,omitempty"`
	Condition   string         `yaml:"condition,omitempty"`
	Validate    string         `yaml:"validate,omitempty"`
	Schema      map[string]any `yaml:"schema,omitempty"`
	Fields      []Field        `yaml:"fields,omitempty" validate:"dive"`
}

// Field is one text input of a step.
type Field struct {
	Name        string `yaml:"name" validate:"required"`
	Label       string `yaml:"label,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
}

var validate = validator.New()

// Load reads and parses a flow file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a flow document. It does not validate it.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing flow: %w", err)
	}
	return &def, nil
}

// Validate checks field constraints, then the structural rules the tags
// cannot express.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid flow: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid flow: %w", err)
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("invalid flow: duplicate step id %q", step.ID)
		}
		seen[step.ID] = struct{}{}

		fields := make(map[string]struct{}, len(step.Fields))
		for _, f := range step.Fields {
			if _, dup := fields[f.Name]; dup {
				return fmt.Errorf("invalid flow: step %q has duplicate field %q", step.ID, f.Name)
			}
			fields[f.Name] = struct{}{}
		}
	}
	return nil
}
