package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

const projectConfigTemplate = `# Steward project configuration.
# Settings here override the user config in ~/.config/steward/.

scheduler:
  # Worker count 1-5; 0 lets steward suggest one from the task graph.
  workers: 0
  # "agent" dispatches to Anthropic API agents, "simulated" is a dry run.
  backend: simulated

decision:
  # Failed-task decisions are requested as files in this directory.
  dir: .steward/decisions
  timeout: 10m

alignment:
  coverage_target: 0.8
`

const exampleTasksTemplate = `# Example steward task file. Run with: steward run tasks.yaml
tasks:
  - id: schema
    title: Design the database schema
    goal_tags:
      architecture: layered
      security: strict
  - id: api
    title: Implement the HTTP API
    dependencies: [schema]
    goal_tags:
      testing: required
  - id: docs
    title: Write user documentation
`

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a steward project",
	Long: `Initialize a directory for use with steward.

Creates a .steward.yaml project config, the decisions directory used for
failed-task decisions, and an example task file.

The directory argument is optional and defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing steward in %s...\n\n", absPath)

	configPath := filepath.Join(absPath, ".steward.yaml")
	if err := writeIfMissing(configPath, projectConfigTemplate); err != nil {
		return err
	}

	decisionsDir := filepath.Join(absPath, ".steward", "decisions")
	if err := os.MkdirAll(decisionsDir, 0755); err != nil {
		printStatus("✗", fmt.Sprintf("Could not create %s", decisionsDir), color.FgRed)
		return err
	}
	printStatus("✓", "Decisions directory created", color.FgGreen)

	tasksPath := filepath.Join(absPath, "tasks.yaml")
	if err := writeIfMissing(tasksPath, exampleTasksTemplate); err != nil {
		return err
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit tasks.yaml with your tasks and dependencies")
	fmt.Println("  2. Preview the schedule: steward plan tasks.yaml")
	fmt.Println("  3. Execute: steward run tasks.yaml")
	return nil
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil && !initForce {
		printStatus("-", fmt.Sprintf("%s already exists (use --force to overwrite)", filepath.Base(path)), color.FgYellow)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		printStatus("✗", fmt.Sprintf("Could not write %s", path), color.FgRed)
		return err
	}
	printStatus("✓", fmt.Sprintf("%s created", filepath.Base(path)), color.FgGreen)
	return nil
}
