// Package config loads user settings for stepwise with Viper and layers
// them over what a flow file declares.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/stepwise/internal/wizard"
)

const fileName = "stepwise.yml"

// Config holds all configuration values for stepwise.
type Config struct {
	LogLevel          string            `mapstructure:"log_level" yaml:"log_level"`
	LogFile           string            `mapstructure:"log_file" yaml:"log_file"`
	DataDir           string            `mapstructure:"data_dir" yaml:"data_dir"`
	Journal           bool              `mapstructure:"journal" yaml:"journal"`
	ValidationTimeout time.Duration     `mapstructure:"validation_timeout" yaml:"validation_timeout"`
	Theme             map[string]string `mapstructure:"theme" yaml:"theme,omitempty"`

	// RequireStepValidation overrides the flow's own setting when set.
	RequireStepValidation *bool `mapstructure:"require_step_validation" yaml:"require_step_validation,omitempty"`
}

var defaults = map[string]any{
	"log_level":          "info",
	"log_file":           "",
	"data_dir":           ".stepwise",
	"journal":            false,
	"validation_timeout": "0s",
}

// envKeys lists every key bound to a STEPWISE_ environment variable.
var envKeys = []string{"log_level", "log_file", "data_dir", "journal", "validation_timeout", "require_step_validation"}

// Load resolves configuration with precedence
// ENV vars > project stepwise.yml > XDG global stepwise.yml > defaults.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	if err := readFiles(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("STEPWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range envKeys {
		if err := v.BindEnv(key, "STEPWISE_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}
	return v, nil
}

func readFiles(v *viper.Viper) error {
	if path := GlobalPath(); fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading global config: %w", err)
		}
	}
	if path := ProjectPath(); fileExists(path) {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("merging project config: %w", err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.ValidationTimeout < 0 {
		return fmt.Errorf("validation_timeout must be >= 0, got %s", c.ValidationTimeout)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	return nil
}

// ResolveDataDir returns flagValue when set, otherwise the configured data dir.
func (c *Config) ResolveDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return c.DataDir
}

// JournalDir is where the embedded JetStream server keeps its files.
func JournalDir(dataDir string) string {
	return filepath.Join(dataDir, "data")
}

// Overrides layers the user's validation settings over a flow's config.
// base is not modified.
func (c *Config) Overrides(base *wizard.ConfigOverrides) *wizard.ConfigOverrides {
	var o wizard.ConfigOverrides
	if base != nil {
		o = *base
	}
	if c.RequireStepValidation != nil {
		require := *c.RequireStepValidation
		o.RequireStepValidation = &require
	}
	if c.ValidationTimeout > 0 {
		timeout := c.ValidationTimeout
		o.ValidationTimeout = &timeout
	}
	return &o
}

// ApplyTheme returns the flow theme with the user's colors on top.
func (c *Config) ApplyTheme(base wizard.Theme) wizard.Theme {
	t := maps.Clone(base)
	if t == nil {
		t = wizard.Theme{}
	}
	maps.Copy(t, c.Theme)
	return t
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns $XDG_CONFIG_HOME/stepwise/stepwise.yml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stepwise", fileName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "stepwise", fileName)
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return fileName
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
