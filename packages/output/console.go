package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/flakespec/packages/history"
	"github.com/abdul-hamid-achik/flakespec/packages/host/local"
	"github.com/abdul-hamid-achik/flakespec/packages/report"
)

const timeRounding = time.Millisecond

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatReport pretty-prints a retry report.
func (f *ConsoleFormatter) FormatReport(rep *report.Report) {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Retry report"))
	if rep.RunID != "" {
		fmt.Fprintf(f.writer, "  run %s at %s\n", cyan(rep.RunID), rep.Time)
	}
	fmt.Fprintf(f.writer, "\n")

	if len(rep.Retries) == 0 {
		fmt.Fprintf(f.writer, "  no flaky retries recorded\n\n")
		return
	}

	for _, e := range rep.Retries {
		kind := red("non-fixable")
		if e.Fixable {
			kind = yellow("fixable")
		}
		fmt.Fprintf(f.writer, "  %s %s  retries %d/%d  (%s)\n",
			kind, bold(e.Name), e.AttemptedRetries, e.MaxRetriesAllowed, e.Reason)
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold(fmt.Sprintf("%d flaky tests retried", len(rep.Retries))))
}

// FormatRunSummary prints the aggregate outcome of a local run. Suppressed
// attempts are shown separately from failures since they do not fail the
// run.
func (f *ConsoleFormatter) FormatRunSummary(res *local.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if f.verbose {
		for _, a := range res.Attempts {
			mark := green("✓")
			switch {
			case a.Suppressed:
				mark = yellow("~")
			case !a.Passed:
				mark = red("✗")
			}
			fmt.Fprintf(f.writer, "  %s %s", mark, a.Identity)
			if a.Retry > 0 {
				fmt.Fprintf(f.writer, " (retry %d)", a.Retry)
			}
			if a.Failure != nil {
				fmt.Fprintf(f.writer, "\n      %s at %s", a.Failure.Message, a.Failure.Location)
			}
			fmt.Fprintf(f.writer, "\n")
		}
		fmt.Fprintf(f.writer, "\n")
	}

	status := green("PASSED")
	if !res.OK() {
		status = red("FAILED")
	}
	fmt.Fprintf(f.writer, "%s  %d passed, %d failed, %d suppressed across %d suites in %s\n",
		bold(status), res.Passed, res.Failed, res.Suppressed, res.Suites, res.Duration.Round(timeRounding))
}

// FormatHistory prints a flake-history ranking.
func (f *ConsoleFormatter) FormatHistory(tests []history.FlakyTest) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if len(tests) == 0 {
		fmt.Fprintf(f.writer, "no flake history recorded\n")
		return
	}

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Flakiest tests"))
	for i, t := range tests {
		fmt.Fprintf(f.writer, "  %2d. %s  %d retries over %d runs  (%s)\n",
			i+1, cyan(t.Name), t.TotalRetries, t.Runs, t.LastReason)
	}
	fmt.Fprintf(f.writer, "\n")
}
