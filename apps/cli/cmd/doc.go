// Package cmd implements the flakespec CLI commands for inspecting retry
// reports and flake history.
package cmd
