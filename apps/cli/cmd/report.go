package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/flakespec/packages/output"
	"github.com/abdul-hamid-achik/flakespec/packages/report"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	queryFlag   string
	noColorFlag bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect retry reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report-file>",
	Short: "Pretty-print a retry report",
	Long: `Pretty-print a retry report written at the end of a run.

With --query, extract raw values using a gjson path instead:
  flakespec report show flakespec-retries.json --query 'retries.#.name'
  flakespec report show flakespec-retries.json --query 'retries.#(fixable==false)#.name'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryFlag != "" {
			data, err := os.ReadFile(args[0])
			if err != nil {
				osExit(ExitReadError, cmd, "reading report: %v", err)
				return nil
			}
			result := gjson.GetBytes(data, queryFlag)
			if !result.Exists() {
				osExit(ExitReadError, cmd, "query %q matched nothing", queryFlag)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		}

		rep, err := report.Load(args[0])
		if err != nil {
			osExit(ExitReadError, cmd, "%v", err)
			return nil
		}
		formatter := output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithNoColor(noColorFlag),
		)
		formatter.FormatReport(rep)
		return nil
	},
}

var reportValidateCmd = &cobra.Command{
	Use:   "validate <report-file>",
	Short: "Validate a retry report against the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			osExit(ExitReadError, cmd, "reading report: %v", err)
			return nil
		}
		if err := report.ValidateBytes(data); err != nil {
			osExit(ExitValidationFailure, cmd, "%v", err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is a valid retry report\n", args[0])
		return nil
	},
}

var reportWatchCmd = &cobra.Command{
	Use:   "watch <report-file>",
	Short: "Re-print a retry report whenever it changes",
	Long: `Watch a retry report and re-print it on every write. Useful while a
long CI run with retry suites is still producing output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		formatter := output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithNoColor(noColorFlag),
		)

		// Print the current contents first if the file already exists.
		if rep, err := report.Load(path); err == nil {
			formatter.FormatReport(rep)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer watcher.Close()

		// Watch the directory: the emitter recreates the file on write,
		// which replaces the inode a file-level watch would be bound to.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s... (press Ctrl+C to stop)\n\n", path)

		var debounceTimer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				// Debounce: reset timer on each event
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					rep, err := report.Load(path)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
						return
					}
					formatter.FormatReport(rep)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			}
		}
	},
}

// osExit prints a message and exits with the given code.
func osExit(code int, cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	os.Exit(code)
}

func init() {
	reportShowCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "gjson path to extract instead of pretty-printing")
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportValidateCmd)
	reportCmd.AddCommand(reportWatchCmd)
}
