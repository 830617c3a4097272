// Package output renders retry reports, run summaries, and flake history
// for the terminal.
package output
