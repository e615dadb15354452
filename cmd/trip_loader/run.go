package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/trip-loader/internal/observability"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one incremental load over the next window",
	Long: `Selects the window immediately following the last successful run, records
a pending run in the ledger, pulls records from the configured source,
and merges them into the target by fingerprint.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runLoadCmd,
}

var runFlags flagOverrides

func init() {
	runCommand.Flags().StringVar(&runFlags.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	runCommand.Flags().StringVarP(&runFlags.pipeline, "pipeline", "p", "", "Logical pipeline name")
	runCommand.Flags().StringVar(&runFlags.databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	runCommand.Flags().StringVar(&runFlags.sourceURL, "source-url", "", "Paginated JSON endpoint to pull from (mutually exclusive with --source-file)")
	runCommand.Flags().StringVar(&runFlags.sourceFile, "source-file", "", "JSONL export to pull from (mutually exclusive with --source-url)")
	runCommand.Flags().StringVarP(&runFlags.granularity, "granularity", "g", "", "Window size: day or month")
	runCommand.Flags().StringVar(&runFlags.epoch, "epoch", "", "Start of the very first window (RFC 3339)")
	runCommand.Flags().StringVar(&runFlags.onConflict, "on-conflict", "", "Existing-fingerprint policy: skip or update")
	runCommand.Flags().BoolVarP(&runFlags.verbose, "verbose", "v", false, "Print detailed run information")

	rootCmd.AddCommand(runCommand)
}

func runLoadCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(&runFlags)
	if err != nil {
		return err
	}

	ld, cleanup, err := buildLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := ld.Run(ctx)
	if cfg.Verbose && run != nil {
		observability.NewPrinter(os.Stdout).PrintRun(run)
	}
	return err
}
