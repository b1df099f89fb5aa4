package main

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/mark3labs/stepwise/internal/flow"
	"github.com/mark3labs/stepwise/internal/tui/theme"
	"github.com/mark3labs/stepwise/internal/wizard"
)

var checkCmd = &cobra.Command{
	Use:   "check <flow.yml>",
	Short: "Validate and compile a flow file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	def, err := flow.Load(args[0])
	if err != nil {
		return err
	}
	compiled, err := flow.Compile(def)
	if err != nil {
		return err
	}

	t := theme.FromWizard(compiled.Theme)
	cfg := wizard.MergeConfig(compiled.Config())
	fmt.Fprintln(cmd.OutOrStdout(), t.S().Title.Render(fmt.Sprintf("%s (%d steps)", compiled.Name, len(compiled.Steps()))))
	fmt.Fprintln(cmd.OutOrStdout(), t.S().Muted.Render(fmt.Sprintf(
		"lazy_rendering=%t render_adjacent=%t require_step_validation=%t reconcile_index=%t",
		cfg.LazyRendering, cfg.RenderAdjacent, cfg.RequireStepValidation, cfg.ReconcileIndex)))

	fmt.Fprintln(cmd.OutOrStdout(), stepTable(compiled, t))
	return nil
}

func stepTable(compiled *flow.Compiled, t *theme.Theme) string {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(t.BgSurface0))).
		Headers("#", "ID", "TITLE", "FIELDS", "CONDITIONAL", "VALIDATED", "EVICTABLE")

	for i, step := range compiled.Steps() {
		var names []string
		for _, f := range compiled.Fields(step.ID) {
			names = append(names, f.Name)
		}
		tbl.Row(
			fmt.Sprint(i+1),
			step.ID,
			step.Title,
			strings.Join(names, ", "),
			yesNo(step.Condition != nil),
			yesNo(step.Validate != nil),
			yesNo(step.Evictable),
		)
	}
	return tbl.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
