package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/flakespec/packages/core/config"
	"github.com/abdul-hamid-achik/flakespec/packages/core/engine"
	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/history"
	"github.com/abdul-hamid-achik/flakespec/packages/host/local"
	"github.com/abdul-hamid-achik/flakespec/packages/metrics"
	"github.com/abdul-hamid-achik/flakespec/packages/output"
	"github.com/abdul-hamid-achik/flakespec/packages/report"
)

var (
	demoConfigFlag    string
	demoOutputDirFlag string
	demoHistoryFlag   string
	demoParallelFlag  bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a canned flaky suite through the retry pipeline",
	Long: `Run a small built-in suite with deliberately flaky tests to show the
whole pipeline: suppression, retry suites, the report artifact, and
optionally the flake history database.

Settings come from the config file (--config or the usual search list);
flags override it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runDemo(cmd)
		if err != nil {
			osExit(ExitReadError, cmd, "%v", err)
			return nil
		}
		if !res.OK() {
			os.Exit(ExitValidationFailure)
		}
		return nil
	},
}

// runDemo resolves configuration, wires the engine, and executes the canned
// suite. Split from the command so the wiring is testable without the
// process-exit on a red run.
func runDemo(cmd *cobra.Command) (*local.Result, error) {
	cfg, err := config.LoadConfig(demoConfigFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg = cfg.Merge(demoFlagConfig())

	log := newLogger(verboseFlag || cfg.GetVerbose())

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithEmitter(report.NewEmitter(report.WithPath(cfg.ReportPath()))),
	}

	if cfg.OverridesFile != "" {
		overrides, err := config.LoadOverrides(cfg.OverridesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithMaxRetriesOverride(overrides.Lookup))
	}
	if cfg.RetryRate > 0 {
		opts = append(opts, engine.WithRetryRateLimit(cfg.RetryRate))
	}

	collector := metrics.NewCollector()
	opts = append(opts, engine.WithMetrics(collector))

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		opts = append(opts, engine.WithHistory(store))
	}

	runner := local.NewRunner(&local.Config{
		Parallel:    cfg.GetParallel(),
		Concurrency: cfg.Concurrency,
	}, opts...)
	runner.WithMetrics(collector)

	if err := runner.Register(demoTests()...); err != nil {
		return nil, err
	}

	res, err := runner.Run(context.Background())
	if err != nil {
		return nil, err
	}

	formatter := output.NewConsoleFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithVerbose(verboseFlag || cfg.GetVerbose()),
		output.WithNoColor(noColorFlag || cfg.GetNoColor()),
	)
	formatter.FormatRunSummary(res)
	return res, nil
}

// demoFlagConfig lifts the demo flags into a config overlay so they take
// precedence over the config file.
func demoFlagConfig() *config.Config {
	overlay := &config.Config{
		OutputDir: demoOutputDirFlag,
		HistoryDB: demoHistoryFlag,
	}
	if demoParallelFlag {
		parallel := true
		overlay.Parallel = &parallel
	}
	return overlay
}

// demoTests builds a suite where one test flakes once and recovers, one
// exhausts its retry budget, and one is solid.
func demoTests() []local.Test {
	var apiCalls atomic.Int64
	return []local.Test{
		{
			Suite: "DemoSuite",
			Name:  "TestEventuallyPasses",
			Fn: func(t *local.T) {
				t.Flaky(flaky.NonFixable("upstream API times out under load", 2), func() error {
					if apiCalls.Add(1) == 1 {
						return errors.New("api timeout")
					}
					return nil
				})
			},
		},
		{
			Suite: "DemoSuite",
			Name:  "TestAlwaysFlakes",
			Fn: func(t *local.T) {
				t.Flaky(flaky.Fixable("known race in fixture teardown"), func() error {
					return errors.New("teardown race hit again")
				})
			},
		},
		{
			Suite: "DemoSuite",
			Name:  "TestSolid",
			Fn:    func(t *local.T) {},
		},
	}
}

func init() {
	demoCmd.Flags().StringVarP(&demoConfigFlag, "config", "c", "", "path to config file")
	demoCmd.Flags().StringVarP(&demoOutputDirFlag, "output-dir", "o", "", "directory for the retry report")
	demoCmd.Flags().StringVar(&demoHistoryFlag, "history-db", "", "append results to this flake history database")
	demoCmd.Flags().BoolVarP(&demoParallelFlag, "parallel", "p", false, "run the suite across parallel workers")
	rootCmd.AddCommand(demoCmd)
}
