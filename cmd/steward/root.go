package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Dependency-aware task scheduler with goal-alignment monitoring",
	Long: `Steward executes a set of interdependent tasks with a parallel worker
pool while monitoring each result against the goals declared on the task.

Tasks are declared in a YAML file with explicit dependencies. Steward
validates the dependency graph, derives a canonical execution order,
suggests a worker count from the number of independent tasks, and
dispatches work to either Anthropic API agents or a simulated pool.

When a task fails, its transitive dependents are blocked and a decision
is requested from the configured collaborator: retry, skip, modify, or
abort. Completed work is checked against the task's goal tags and
critical misalignments are alerted before the task is reported done.

Core commands:
  steward plan <tasks.yaml>   Validate the graph and preview the schedule
  steward run <tasks.yaml>    Execute the tasks
  steward history             Inspect recorded runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
