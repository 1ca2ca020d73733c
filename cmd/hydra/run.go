package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
	"github.com/ShayCichocki/hydra/internal/orchestrator"
	"github.com/ShayCichocki/hydra/internal/state"
	"github.com/ShayCichocki/hydra/internal/tui"
	"github.com/ShayCichocki/hydra/pkg/models"
)

var (
	runConfigPath string
	runHeadless   bool
	runWatch      bool
	runNoHistory  bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task with parallel agents",
	Long: `Run a task through the full pipeline: plan, execute, synthesize.

The task is decomposed into subquestions, one per agent slot. Slots run
concurrently, each under its own timeout; a slot that fails or times
out is recorded and the run continues. The final answer synthesizes
every successful slot, so partial failure degrades the answer rather
than losing it.

Exit code is 0 for any run that produced an answer, including degraded
ones, and non-zero only when zero subtasks succeeded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", DefaultConfigPath(), "Path to the configuration file")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without the TUI, printing progress lines")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Reload configuration when the file changes on disk")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Skip recording the run in the history database")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	resolver := config.NewResolver()
	snap, err := resolver.Load(runConfigPath)
	if err != nil {
		return err
	}

	registry := agent.DefaultRegistry()
	if err := registry.Validate(referencedProviders(snap)...); err != nil {
		return fmt.Errorf("configuration references an unavailable provider: %w", err)
	}

	var recorder orchestrator.Recorder
	if !runNoHistory {
		db, err := state.Open(state.DefaultDBPath())
		if err != nil {
			log.Printf("[hydra] run history unavailable: %v", err)
		} else if err := db.Migrate(); err != nil {
			log.Printf("[hydra] run history unavailable: %v", err)
			db.Close()
		} else {
			defer db.Close()
			recorder = db
		}
	}

	if runWatch {
		watcher, err := config.NewWatcher(resolver, runConfigPath)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Close()
	}

	orc, err := orchestrator.New(orchestrator.Options{
		ConfigPath: runConfigPath,
		Resolver:   resolver,
		Registry:   registry,
		Recorder:   recorder,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	type outcome struct {
		run *orchestrator.Run
		err error
	}
	result := make(chan outcome, 1)
	go func() {
		run, err := orc.Execute(ctx, task)
		orc.Close()
		result <- outcome{run: run, err: err}
	}()

	if runHeadless {
		printEvents(orc.Events())
	} else {
		app := tui.NewApp(task, snap.Orchestrator.ParallelAgents, orc.Events())
		if _, err := tea.NewProgram(app).Run(); err != nil {
			// The run keeps going; fall back to waiting on its outcome.
			log.Printf("[hydra] progress display failed: %v", err)
		}
	}

	out := <-result
	if out.err != nil {
		var agg *orchestrator.AggregateError
		if errors.As(out.err, &agg) {
			printTotalFailure(agg)
		}
		return out.err
	}

	printAnswer(out.run)
	return nil
}

// referencedProviders collects every provider name the snapshot can
// route an agent to.
func referencedProviders(snap *config.Snapshot) []string {
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" {
			seen[name] = true
		}
	}
	add(snap.Provider)
	add(snap.Orchestrator.Provider)
	for _, override := range snap.Agents {
		add(override.Provider)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

// printEvents renders headless progress, one line per event.
func printEvents(events <-chan orchestrator.Event) {
	for event := range events {
		switch event.Type {
		case orchestrator.EventRunStarted:
			color.Cyan("run %s started", event.RunID)
		case orchestrator.EventPlanReady:
			color.Cyan("%s", event.Message)
		case orchestrator.EventSlotStarted:
			fmt.Printf("  %s started: %s\n", event.AgentID, event.Question)
		case orchestrator.EventSlotCompleted:
			color.Green("  %s completed in %s", event.AgentID, event.Duration.Round(time.Millisecond))
		case orchestrator.EventSlotFailed:
			color.Red("  %s failed: %v", event.AgentID, event.Err)
		case orchestrator.EventSlotTimedOut:
			color.Yellow("  %s timed out (%s)", event.AgentID, event.Message)
		case orchestrator.EventSynthesisStarted:
			color.Cyan("synthesizing results")
		case orchestrator.EventRunDone:
			color.Green("run %s done: %s", event.RunID, event.Message)
		case orchestrator.EventRunFailed:
			color.Red("run %s failed: %v", event.RunID, event.Err)
		}
	}
}

// printAnswer prints the final answer with a summary heading.
func printAnswer(run *orchestrator.Run) {
	heading := color.New(color.Bold)
	heading.Printf("\nFinal answer (%d/%d subtasks", run.Answer.Successes, len(run.Slots))
	if run.Answer.Fallback {
		heading.Printf(", simple synthesis")
	}
	heading.Printf(")\n\n")

	fmt.Println(run.Answer.Text)

	if run.State == models.RunDegraded {
		color.Yellow("\nDegraded run: %d of %d subtasks did not complete.", len(run.Slots)-run.Answer.Successes, len(run.Slots))
	}
}

// printTotalFailure lists every slot's diagnostic when nothing succeeded.
func printTotalFailure(agg *orchestrator.AggregateError) {
	color.Red("\nNo subtask succeeded:")
	for _, slot := range agg.Results {
		color.Red("  agent_%d [%s]: %s", slot.Index+1, slot.Status, slot.Error)
	}
}
