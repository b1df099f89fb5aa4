package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/stepwise/internal/config"
	"github.com/mark3labs/stepwise/internal/journal"
	"github.com/mark3labs/stepwise/internal/nats"
	"github.com/mark3labs/stepwise/internal/tui/theme"
	"github.com/mark3labs/stepwise/internal/wizard"
)

var historyFlags struct {
	dataDir string
	purge   bool
}

var historyCmd = &cobra.Command{
	Use:   "history [instance]",
	Short: "Show journaled events of a run",
	Long: `Show the journaled events of a run and the progress they add up to.

Without an instance id, lists the runs found in the journal. With --purge
the instance's events are deleted instead of printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFlags.dataDir, "data-dir", "", "Data directory (default from config: .stepwise)")
	historyCmd.Flags().BoolVar(&historyFlags.purge, "purge", false, "Delete the journaled events of the given instance")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dataDir := appConfig.ResolveDataDir(historyFlags.dataDir)

	bus, err := nats.Start(ctx, config.JournalDir(dataDir))
	if err != nil {
		return fmt.Errorf("starting journal: %w", err)
	}
	defer func() { _ = bus.Close() }()

	out := cmd.OutOrStdout()
	s := theme.NewCatppuccinMocha().S()

	if len(args) == 0 {
		if historyFlags.purge {
			return fmt.Errorf("--purge needs an instance id")
		}
		ids, err := journal.Instances(ctx, bus.Stream)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, s.Muted.Render("No journaled runs."))
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	if err := nats.ValidInstance(args[0]); err != nil {
		return err
	}
	if historyFlags.purge {
		if err := nats.PurgeInstance(ctx, bus.Stream, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, s.Success.Render("✓ purged "+args[0]))
		return nil
	}

	records, err := journal.Load(ctx, bus.Stream, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no events for instance %s", args[0])
	}

	for _, rec := range records {
		fmt.Fprintf(out, "%s  %s  %s\n",
			s.Muted.Render(rec.Timestamp.Format("2006-01-02 15:04:05")),
			s.Label.Render(fmt.Sprintf("%-18s", rec.Kind)),
			describe(rec))
	}

	p := journal.Replay(records)
	status := "in progress"
	if p.Complete {
		status = "complete"
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, s.Title.Render(fmt.Sprintf("%d events, %s, at step %q", p.Events, status, p.CurrentStepID)))
	if p.LastError != "" {
		fmt.Fprintln(out, s.Error.Render("✗ "+p.LastError))
	}
	return nil
}

// describe summarizes a record on one line.
func describe(rec journal.Record) string {
	switch rec.Kind {
	case wizard.KindNavigate:
		return fmt.Sprintf("%s → %s", rec.From, rec.To)
	case wizard.KindValidationStatus:
		valid := rec.Valid != nil && *rec.Valid
		return fmt.Sprintf("%s valid=%t", rec.StepID, valid)
	case wizard.KindStepDataUpdate:
		return fmt.Sprintf("%s %s", rec.StepID, string(rec.Data))
	case wizard.KindError:
		return rec.Message
	case wizard.KindComplete:
		return string(rec.Data)
	default:
		return rec.StepID
	}
}
