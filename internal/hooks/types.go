package hooks

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for hooks loaded from .stepwise.hooks.yml.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig contains all hook configurations.
type HooksConfig struct {
	OnStepEnter HookList `yaml:"on_step_enter,omitempty"`
	OnStepLeave HookList `yaml:"on_step_leave,omitempty"`
	OnComplete  HookList `yaml:"on_complete,omitempty"`
}

// HookConfig defines a single hook's configuration.
type HookConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // seconds, default 30
}

// HookList is one or more hooks run in order. In YAML it may be written as a
// single mapping or as a sequence.
type HookList []*HookConfig

// UnmarshalYAML accepts both forms.
func (l *HookList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var h HookConfig
		if err := node.Decode(&h); err != nil {
			return err
		}
		*l = HookList{&h}
		return nil
	case yaml.SequenceNode:
		var hs []*HookConfig
		if err := node.Decode(&hs); err != nil {
			return err
		}
		*l = hs
		return nil
	default:
		return fmt.Errorf("line %d: hook must be a mapping or a list", node.Line)
	}
}

// Empty reports whether no hook is configured.
func (c HooksConfig) Empty() bool {
	return len(c.OnStepEnter) == 0 && len(c.OnStepLeave) == 0 && len(c.OnComplete) == 0
}

// Merge returns base with every event that override configures replaced.
func Merge(base, override HooksConfig) HooksConfig {
	if len(override.OnStepEnter) > 0 {
		base.OnStepEnter = override.OnStepEnter
	}
	if len(override.OnStepLeave) > 0 {
		base.OnStepLeave = override.OnStepLeave
	}
	if len(override.OnComplete) > 0 {
		base.OnComplete = override.OnComplete
	}
	return base
}

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30
