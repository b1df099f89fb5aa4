package theme

// NewCatppuccinMocha creates the default Catppuccin Mocha theme.
func NewCatppuccinMocha() *Theme {
	return &Theme{
		Name: "catppuccin-mocha",

		Primary:   "#cba6f7", // Mauve
		Secondary: "#b4befe", // Lavender

		BgBase:     "#1e1e2e", // Base
		BgSurface0: "#585b70", // Surface2

		FgMuted: "#a6adc8", // Subtext0
		FgBase:  "#cdd6f4", // Text

		Success: "#a6e3a1", // Green
		Error:   "#f38ba8", // Red
	}
}
