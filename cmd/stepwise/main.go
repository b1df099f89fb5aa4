package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/stepwise/internal/config"
	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/tui/theme"
)

const (
	logoText1 = "█▀▀ ▀█▀ █▀▀ █▀█ █ █ █ █ █▀▀ █▀▀"
	logoText2 = "▄▄█  █  ██▄ █▀▀ ▀▄▀▄▀ █ ▄▄█ ██▄"
)

// Version set via ldflags during build
var version = "dev"

// appConfig is loaded before any subcommand runs.
var appConfig *config.Config

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stepwise",
	Short: "Run multi-step wizards defined in YAML",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
			return fmt.Errorf("configuring logger: %w", err)
		}
		appConfig = cfg
		return nil
	},
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

stepwise walks users through multi-step wizards described in a flow file.
Steps can be shown conditionally, validated with CEL expressions and JSON
Schema, and the collected answers shaped with jq on completion. Runs can be
journaled to an embedded NATS JetStream log and resumed later.`

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
}
