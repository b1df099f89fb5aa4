package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mark3labs/stepwise/internal/config"
	"github.com/mark3labs/stepwise/internal/flow"
	"github.com/mark3labs/stepwise/internal/hooks"
	"github.com/mark3labs/stepwise/internal/journal"
	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/nats"
	"github.com/mark3labs/stepwise/internal/runner"
	"github.com/mark3labs/stepwise/internal/state"
	"github.com/mark3labs/stepwise/internal/tui/theme"
	"github.com/mark3labs/stepwise/internal/tui/wizardview"
	"github.com/mark3labs/stepwise/internal/wizard"
)

var runFlags struct {
	answers  string
	resume   bool
	journal  bool
	dataDir  string
	instance string
}

var runCmd = &cobra.Command{
	Use:   "run <flow.yml>",
	Short: "Run a flow interactively or from an answers file",
	Long: `Run a flow.

Without --answers the flow runs in a full-screen terminal UI. With --answers
each visited step is submitted from the file and the first failing step is
reported as an error. On completion the collected data, shaped by the flow's
output expression, is printed as JSON.

Unfinished runs are saved under the data directory and picked up again with
--resume. With --journal every wizard event is also recorded to an embedded
NATS JetStream log, readable with 'stepwise history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlow,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.answers, "answers", "a", "", "Answers file (YAML or JSON) for a headless run")
	runCmd.Flags().BoolVarP(&runFlags.resume, "resume", "r", false, "Resume the saved run of this flow")
	runCmd.Flags().BoolVar(&runFlags.journal, "journal", false, "Record wizard events to the JetStream journal")
	runCmd.Flags().StringVar(&runFlags.dataDir, "data-dir", "", "Data directory (default from config: .stepwise)")
	runCmd.Flags().StringVar(&runFlags.instance, "instance", "", "Run id (default: saved run id or a new UUID)")
}

func runFlow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dataDir := appConfig.ResolveDataDir(runFlags.dataDir)
	useJournal := runFlags.journal || appConfig.Journal

	def, err := flow.Load(args[0])
	if err != nil {
		return err
	}
	compiled, err := flow.Compile(def)
	if err != nil {
		return err
	}

	var saved *state.Run
	if runFlags.resume {
		if run, ok := state.Load(dataDir, compiled.Name); ok {
			saved = run
		}
	}

	instance := runFlags.instance
	if instance != "" {
		if err := nats.ValidInstance(instance); err != nil {
			return err
		}
	}
	if instance == "" && saved != nil {
		instance = saved.Instance
	}
	if instance == "" {
		instance = uuid.NewString()
	}
	log := logger.With("instance", instance)
	log.Info("Running flow %q", compiled.Name)

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	hooksCfg := compiled.Hooks
	if fileCfg, err := hooks.LoadConfig(workDir); err != nil {
		return err
	} else if fileCfg != nil {
		hooksCfg = hooks.Merge(hooksCfg, fileCfg.Hooks)
	}

	provider := wizard.NewProvider()
	inst, err := provider.Render(wizard.Props{
		Steps:  compiled.Steps(),
		Hooks:  hooks.Bind(ctx, hooksCfg, workDir),
		Theme:  appConfig.ApplyTheme(compiled.Theme),
		Config: appConfig.Overrides(compiled.Config()),
	})
	if err != nil {
		return err
	}
	defer provider.Unmount()
	compiled.Bind(inst.StepData)

	var bus *nats.Bus
	if useJournal {
		bus, err = nats.Start(ctx, config.JournalDir(dataDir))
		if err != nil {
			return fmt.Errorf("starting journal: %w", err)
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logger.Warn("Closing journal: %v", err)
			}
		}()
	}

	switch {
	case saved != nil:
		inst.Restore(saved.Snapshot)
		log.Info("Resumed at step %q", saved.Snapshot.CurrentStepID)
	case runFlags.resume && bus != nil:
		records, err := journal.Load(ctx, bus.Stream, instance)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			inst.Restore(journal.Replay(records).Snapshot())
			log.Info("Resumed from %d journaled events", len(records))
		}
	}

	if bus != nil {
		detach := journal.Attach(ctx, bus.JS, instance, inst.Events())
		defer detach()
	}

	var (
		mu     sync.Mutex
		result map[string]any
	)
	sub := inst.Events().Subscribe(wizard.KindComplete, func(ev wizard.Event) {
		mu.Lock()
		result = maps.Clone(ev.(wizard.CompleteEvent).StepData)
		mu.Unlock()
	})
	defer inst.Events().Unsubscribe(sub)

	if runFlags.answers != "" {
		answers, err := runner.LoadAnswers(runFlags.answers)
		if err != nil {
			return err
		}
		if _, err := runner.Run(ctx, inst.Store, answers); err != nil {
			saveProgress(dataDir, compiled.Name, instance, inst.Store)
			return err
		}
	} else {
		err := wizardview.Run(ctx, inst.Store, compiled, theme.FromWizard(inst.Theme))
		if errors.Is(err, wizardview.ErrCancelled) {
			saveProgress(dataDir, compiled.Name, instance, inst.Store)
			fmt.Fprintln(cmd.ErrOrStderr(), "Progress saved. Continue with: stepwise run --resume", args[0])
			return nil
		}
		if err != nil {
			return err
		}
	}
	inst.Wait()

	mu.Lock()
	data := result
	mu.Unlock()
	if data == nil {
		return errors.New("wizard ended without completing")
	}

	if err := state.Clear(dataDir, compiled.Name); err != nil {
		log.Warn("Clearing saved run: %v", err)
	}

	out, err := compiled.Output(ctx, data)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func saveProgress(dataDir, flowName, instance string, store *wizard.Store) {
	store.Wait()
	run := &state.Run{
		Flow:     flowName,
		Instance: instance,
		Snapshot: store.Snapshot(),
	}
	if err := state.Save(dataDir, run); err != nil {
		logger.Warn("Saving progress: %v", err)
	}
}
