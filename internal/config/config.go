// Package config handles configuration loading and management for Steward.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Steward.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Alignment AlignmentConfig `mapstructure:"alignment"`
	History   HistoryConfig   `mapstructure:"history"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings for the agent backend.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SchedulerConfig holds worker pool settings.
type SchedulerConfig struct {
	// Workers is the worker count; zero means use the classifier suggestion.
	Workers int `mapstructure:"workers"`
	// Cap is the hard ceiling on concurrent workers.
	Cap int `mapstructure:"cap"`
	// Backend selects the worker backend ("agent" or "simulated").
	Backend string `mapstructure:"backend"`
	// LogPath is the debug log file; empty disables debug logging.
	LogPath string `mapstructure:"log_path"`
}

// DecisionConfig holds human-in-the-loop settings.
type DecisionConfig struct {
	// Dir is the directory watched for decision answer files.
	Dir string `mapstructure:"dir"`
	// Timeout bounds how long a single decision may take.
	Timeout time.Duration `mapstructure:"timeout"`
}

// AlignmentConfig holds alignment checker settings.
type AlignmentConfig struct {
	// CoverageTarget is the default coverage goal fraction (0..1).
	CoverageTarget float64 `mapstructure:"coverage_target"`
}

// HistoryConfig holds the run-history journal settings.
type HistoryConfig struct {
	// Path is the sqlite journal file; empty disables history recording.
	Path string `mapstructure:"path"`
}

// TUIConfig holds watch-mode display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (STEWARD_*, ANTHROPIC_API_KEY)
// 2. Project config (.steward.yaml in current directory or parent)
// 3. User config (~/.config/steward/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over user config.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("STEWARD")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("scheduler.workers", "STEWARD_WORKERS")
	v.BindEnv("scheduler.backend", "STEWARD_BACKEND")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("scheduler.workers", cfg.Scheduler.Workers)
	v.Set("scheduler.cap", cfg.Scheduler.Cap)
	v.Set("scheduler.backend", cfg.Scheduler.Backend)
	v.Set("scheduler.log_path", cfg.Scheduler.LogPath)
	v.Set("decision.dir", cfg.Decision.Dir)
	v.Set("decision.timeout", cfg.Decision.Timeout.String())
	v.Set("alignment.coverage_target", cfg.Alignment.CoverageTarget)
	v.Set("history.path", cfg.History.Path)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("scheduler.workers", 0)
	v.SetDefault("scheduler.cap", 5)
	v.SetDefault("scheduler.backend", "simulated")
	v.SetDefault("scheduler.log_path", "")

	v.SetDefault("decision.dir", ".steward/decisions")
	v.SetDefault("decision.timeout", "10m")

	v.SetDefault("alignment.coverage_target", 0.8)

	v.SetDefault("history.path", defaultHistoryPath())

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for Steward.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "steward")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "steward")
	}
	return filepath.Join(home, ".config", "steward")
}

// defaultHistoryPath returns the default location of the run-history journal.
func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".steward", "history.db")
	}
	return filepath.Join(home, ".local", "share", "steward", "history.db")
}

// findProjectConfig searches for .steward.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".steward.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Workers: 0,
			Cap:     5,
			Backend: "simulated",
		},
		Decision: DecisionConfig{
			Dir:     ".steward/decisions",
			Timeout: 10 * time.Minute,
		},
		Alignment: AlignmentConfig{
			CoverageTarget: 0.8,
		},
		History: HistoryConfig{
			Path: defaultHistoryPath(),
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
