package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelworks/steward/internal/state"
)

var (
	historyConfig string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Inspect recorded runs",
	Long: `List recorded runs, or show the full report and alerts for one run.

Without arguments, lists the most recent runs. With a run ID, prints that
run's execution report and its alert history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyConfig, "config", "", "Path to a config file (overrides default search)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(historyConfig)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history recording is disabled (history.path is empty)")
	}

	journal, err := state.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("opening history journal: %w", err)
	}
	defer journal.Close()

	if len(args) == 1 {
		return showRun(journal, args[0])
	}
	return listRuns(journal)
}

func listRuns(journal *state.Journal) error {
	runs, err := journal.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-38s %-20s %-10s %-10s %s\n", "RUN", "STARTED", "TASKS", "COMPLETED", "ALIGNMENT")
	for _, run := range runs {
		status := fmt.Sprintf("%.0f%%", run.AlignmentRate*100)
		if run.Aborted {
			status = "aborted"
		}
		fmt.Printf("%-38s %-20s %-10d %-10d %s\n",
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.TotalTasks,
			run.CompletedTasks,
			status)
	}
	return nil
}

func showRun(journal *state.Journal, runID string) error {
	rep, err := journal.GetReport(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", rep.RunID)
	fmt.Printf("  Started:  %s\n", rep.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Finished: %s\n", rep.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	printSummary(rep)

	alerts, err := journal.AlertsForRun(runID)
	if err != nil {
		return err
	}
	if len(alerts) > 0 {
		fmt.Printf("\nAlerts (%d):\n", len(alerts))
		for _, alert := range alerts {
			printAlert(alert)
		}
	} else {
		printStatus("✓", "No alerts recorded", color.FgGreen)
	}
	return nil
}
