package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config represents the flakespec configuration
type Config struct {
	OutputDir     string  `json:"outputDir,omitempty"`     // Directory for the retry report
	ReportFile    string  `json:"reportFile,omitempty"`    // Overrides the default report filename
	HistoryDB     string  `json:"historyDb,omitempty"`     // SQLite flake history path, empty disables history
	OverridesFile string  `json:"overridesFile,omitempty"` // YAML per-test retry cap overrides
	RetryRate     float64 `json:"retryRate,omitempty"`     // Retry dispatch pacing in tests/sec, 0 disables
	Parallel      *bool   `json:"parallel,omitempty"`
	Concurrency   int     `json:"concurrency,omitempty"` // Number of parallel test workers
	Verbose       *bool   `json:"verbose,omitempty"`
	NoColor       *bool   `json:"noColor,omitempty"`
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetParallel returns the parallel setting, defaulting to false
func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ReportPath resolves where the retry report should be written.
func (c *Config) ReportPath() string {
	name := c.ReportFile
	if name == "" {
		name = "flakespec-retries.json"
	}
	if c.OutputDir == "" {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".flakespec.config.json",
	"flakespec.config.json",
	".flakespecrc",
	".flakespecrc.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.ReportFile != "" {
		result.ReportFile = other.ReportFile
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.OverridesFile != "" {
		result.OverridesFile = other.OverridesFile
	}
	if other.RetryRate > 0 {
		result.RetryRate = other.RetryRate
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
