package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/steward/internal/config"
	"github.com/kestrelworks/steward/pkg/models"
)

// printStatus prints a colored status symbol followed by a message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// taskFile is the on-disk task list format. Tasks may be declared either
// under a top-level "tasks" key or as a bare YAML sequence.
type taskFile struct {
	Tasks []*models.Task `yaml:"tasks"`
}

// loadTaskFile reads and parses a task YAML file.
func loadTaskFile(path string) ([]*models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	var wrapped taskFile
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Tasks) > 0 {
		return wrapped.Tasks, nil
	}

	var bare []*models.Task
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}
	if len(bare) == 0 {
		return nil, fmt.Errorf("task file %s contains no tasks", path)
	}
	return bare, nil
}

// loadConfig loads configuration from an explicit path, or from the
// default search locations when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
