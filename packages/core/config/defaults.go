package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		OutputDir:   "",
		ReportFile:  "",
		HistoryDB:   "",
		RetryRate:   0,
		Concurrency: 5,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.OutputDir == defaults.OutputDir &&
		c.ReportFile == defaults.ReportFile &&
		c.HistoryDB == defaults.HistoryDB &&
		c.OverridesFile == defaults.OverridesFile &&
		c.RetryRate == defaults.RetryRate &&
		c.Concurrency == defaults.Concurrency &&
		c.GetParallel() == defaults.GetParallel() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
