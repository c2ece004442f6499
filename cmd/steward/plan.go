package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelworks/steward/internal/classify"
	"github.com/kestrelworks/steward/internal/graph"
)

var planConfig string

var planCmd = &cobra.Command{
	Use:   "plan <tasks.yaml>",
	Short: "Validate a task file and preview the execution schedule",
	Long: `Validate the dependency graph in a task file and print the execution
plan without running anything.

The plan shows the canonical execution order, which tasks can start
immediately, and the worker count steward would use by default.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planConfig, "config", "", "Path to a config file (overrides default search)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(planConfig)
	if err != nil {
		return err
	}

	tasks, err := loadTaskFile(args[0])
	if err != nil {
		return err
	}

	g, err := graph.Build(tasks)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Graph validation failed: %v", err), color.FgRed)
		return err
	}
	printStatus("✓", fmt.Sprintf("Graph valid: %d tasks", g.Size()), color.FgGreen)

	class := classify.Classify(tasks, cfg.Scheduler.Cap)
	suggestion := class.SuggestWorkerCount()

	fmt.Println()
	fmt.Println("Execution order:")
	for i, id := range g.Order() {
		task := g.Task(id)
		deps := ""
		if len(task.Dependencies) > 0 {
			deps = fmt.Sprintf("  (after %s)", strings.Join(task.Dependencies, ", "))
		}
		fmt.Printf("  %2d. %s: %s%s\n", i+1, id, task.Title, deps)
	}

	fmt.Println()
	fmt.Printf("Independent tasks: %d\n", len(class.Independent))
	fmt.Printf("Dependent tasks:   %d\n", len(class.Dependent))
	fmt.Printf("Max parallelism:   %d\n", class.MaxParallel)
	fmt.Printf("Suggested workers: %d (%s)\n", suggestion.Count, suggestion.Rationale)

	return nil
}
