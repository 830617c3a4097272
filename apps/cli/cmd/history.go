package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/flakespec/packages/core/config"
	"github.com/abdul-hamid-achik/flakespec/packages/history"
	"github.com/abdul-hamid-achik/flakespec/packages/output"
)

var (
	historyDBFlag string
	topLimitFlag  int
	configFlag    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the cross-run flake history",
}

var historyTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank the flakiest tests across recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := historyDBFlag
		if dbPath == "" {
			cfg, err := config.LoadConfig(configFlag)
			if err != nil {
				osExit(ExitReadError, cmd, "loading config: %v", err)
				return nil
			}
			dbPath = cfg.HistoryDB
		}
		if dbPath == "" {
			osExit(ExitUsageError, cmd, "no history database configured; pass --db or set historyDb in the config file")
			return nil
		}

		store, err := history.Open(dbPath)
		if err != nil {
			osExit(ExitReadError, cmd, "%v", err)
			return nil
		}
		defer store.Close()

		tests, err := store.TopFlaky(topLimitFlag)
		if err != nil {
			osExit(ExitReadError, cmd, "%v", err)
			return nil
		}

		formatter := output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithNoColor(noColorFlag),
		)
		formatter.FormatHistory(tests)
		return nil
	},
}

func init() {
	historyTopCmd.Flags().StringVar(&historyDBFlag, "db", "", "path to the flake history database")
	historyTopCmd.Flags().IntVarP(&topLimitFlag, "limit", "n", 10, "number of tests to show")
	historyTopCmd.Flags().StringVarP(&configFlag, "config", "c", "", "path to config file")
	historyCmd.AddCommand(historyTopCmd)
}
