// Package hooks runs shell commands on wizard lifecycle transitions.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// ConfigFileName is the per-project hooks file, merged after a flow's own hooks.
const ConfigFileName = ".stepwise.hooks.yml"

// LoadConfig reads ConfigFileName from workDir. A missing file is not an
// error and yields nil.
func LoadConfig(workDir string) (*Config, error) {
	path := filepath.Join(workDir, ConfigFileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("No hooks config found at %s", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}
	logger.Debug("Loaded hooks config from %s (version: %d)", path, cfg.Version)
	return &cfg, nil
}

// Variables describe the transition a hook runs for. They are exported as
// STEPWISE_STEP, STEPWISE_FROM, STEPWISE_TO and STEPWISE_DATA. The
// placeholders {{step}}, {{from}}, {{to}} and {{data}} in a command become
// quoted references to those variables, so values never reach the shell as
// command text. Placeholders should not be wrapped in quotes by the author.
type Variables struct {
	Step string
	From string
	To   string
	Data string // JSON
}

var placeholders = strings.NewReplacer(
	"{{step}}", `"$STEPWISE_STEP"`,
	"{{from}}", `"$STEPWISE_FROM"`,
	"{{to}}", `"$STEPWISE_TO"`,
	"{{data}}", `"$STEPWISE_DATA"`,
)

func expand(command string) string {
	return placeholders.Replace(command)
}

func (v Variables) environ() []string {
	return append(os.Environ(),
		"STEPWISE_STEP="+v.Step,
		"STEPWISE_FROM="+v.From,
		"STEPWISE_TO="+v.To,
		"STEPWISE_DATA="+v.Data,
	)
}

// Execute runs hook through sh -c in workDir and returns what it printed.
// A failing or timed out command is not an error: the failure is folded
// into the returned output. Only cancellation of ctx is returned.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || hook.Command == "" {
		return "", nil
	}

	command := expand(hook.Command)
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger.Debug("Executing hook command (timeout %ds): %s", timeout, command)

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = vars.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("Hook command timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[Hook timed out after %ds]\nPartial output:\n%s", timeout, stdout.String()), nil
	}
	if err != nil {
		logger.Warn("Hook command failed: %v", err)
		return fmt.Sprintf("[Hook command failed: %v]\n%s", err, combine(stdout, stderr)), nil
	}

	output := combine(stdout, stderr)
	logger.Debug("Hook finished, %d bytes of output", len(output))
	return output, nil
}

func combine(stdout, stderr bytes.Buffer) string {
	if stderr.Len() == 0 {
		return stdout.String()
	}
	return stdout.String() + "\n[stderr]\n" + stderr.String()
}

// ExecuteAll runs hooks in order and joins their non-empty outputs with a
// newline. It stops at the first context cancellation.
func ExecuteAll(ctx context.Context, hooks HookList, workDir string, vars Variables) (string, error) {
	var outputs []string
	for _, hook := range hooks {
		out, err := Execute(ctx, hook, workDir, vars)
		if err != nil {
			return "", err
		}
		if out != "" {
			outputs = append(outputs, out)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

// Bind adapts cfg to wizard lifecycle hooks, or returns nil when nothing is
// configured. Hook output is logged; only cancellation of ctx aborts a
// transition. {{data}} is set for on_complete only.
func Bind(ctx context.Context, cfg HooksConfig, workDir string) *wizard.Hooks {
	if cfg.Empty() {
		return nil
	}

	run := func(event string, list HookList, vars Variables) error {
		if len(list) == 0 {
			return nil
		}
		out, err := ExecuteAll(ctx, list, workDir, vars)
		if err != nil {
			return err
		}
		if out = strings.TrimSpace(out); out != "" {
			logger.With("hook", event).Info("%s", out)
		}
		return nil
	}

	return &wizard.Hooks{
		OnStepEnter: func(stepID, from string) error {
			return run("on_step_enter", cfg.OnStepEnter, Variables{Step: stepID, From: from, To: stepID})
		},
		OnStepLeave: func(stepID, to string) error {
			return run("on_step_leave", cfg.OnStepLeave, Variables{Step: stepID, From: stepID, To: to})
		},
		OnWizardComplete: func(stepData map[string]any) error {
			data, err := json.Marshal(stepData)
			if err != nil {
				return fmt.Errorf("encoding step data: %w", err)
			}
			return run("on_complete", cfg.OnComplete, Variables{Data: string(data)})
		},
	}
}
