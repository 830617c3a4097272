// Package config handles configuration loading and management for flakespec.
//
// It provides functionality for:
//   - Loading configuration from .flakespec.config.json files
//   - Default configuration values
//   - Per-test retry cap overrides from a YAML file
package config
