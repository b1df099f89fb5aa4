package wizard

import "maps"

// Theme is an opaque set of styling tokens handed to the presentation layer.
type Theme map[string]string

// DefaultTheme returns the built-in tokens (Catppuccin Mocha).
func DefaultTheme() Theme {
	return Theme{
		"primary":   "#cba6f7",
		"secondary": "#b4befe",
		"text":      "#cdd6f4",
		"muted":     "#a6adc8",
		"surface":   "#585b70",
		"base":      "#1e1e2e",
		"success":   "#a6e3a1",
		"error":     "#f38ba8",
	}
}

// MergeTheme layers override on top of DefaultTheme.
func MergeTheme(override Theme) Theme {
	merged := DefaultTheme()
	maps.Copy(merged, override)
	return merged
}
