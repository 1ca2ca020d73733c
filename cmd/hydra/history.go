package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hydra/internal/state"
	"github.com/ShayCichocki/hydra/pkg/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.Open(state.DefaultDBPath())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		summaries, err := db.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		fmt.Printf("%-10s %-12s %-9s %-20s %s\n", "RUN", "STATE", "SLOTS", "STARTED", "TASK")
		for _, s := range summaries {
			fmt.Printf("%-10s %-12s %-9s %-20s %s\n",
				s.ID,
				stateLabel(s.State),
				fmt.Sprintf("%d/%d", s.Successes, s.Slots),
				s.Started.Local().Format("2006-01-02 15:04:05"),
				s.Task,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.Open(state.DefaultDBPath())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}

		heading := color.New(color.Bold)
		heading.Printf("Run %s: %s\n", run.ID, run.Task)
		fmt.Printf("State: %s  Duration: %s\n\n", stateLabel(run.State), run.Finished.Sub(run.Started).Round(time.Millisecond))

		for _, slot := range run.Slots {
			heading.Printf("agent_%d [%s] %s\n", slot.Index+1, stateText(slot.Status), slot.Question)
			switch {
			case slot.Succeeded():
				fmt.Printf("%s\n\n", slot.Response)
			case slot.PartialOutput != "":
				fmt.Printf("error: %s\npartial output: %s\n\n", slot.Error, slot.PartialOutput)
			default:
				fmt.Printf("error: %s\n\n", slot.Error)
			}
		}

		if run.Answer != nil {
			heading.Println("Final answer")
			fmt.Println(run.Answer.Text)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
	historyCmd.AddCommand(historyShowCmd)
}

// stateLabel colors a run state for terminal output.
func stateLabel(s models.RunState) string {
	switch s {
	case models.RunDone:
		return color.GreenString(string(s))
	case models.RunDegraded:
		return color.YellowString(string(s))
	case models.RunFailed:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

// stateText colors a slot status for terminal output.
func stateText(s models.SubtaskStatus) string {
	switch s {
	case models.StatusCompleted:
		return color.GreenString(string(s))
	case models.StatusTimedOut:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
