package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/trip-loader/internal/db"
	"github.com/jonathan/trip-loader/internal/observability"
)

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the ledger",
	RunE:  runRunsCmd,
}

var (
	runsConfigPath  string
	runsPipeline    string
	runsDatabaseURL string
	runsLimit       int
)

func init() {
	runsCommand.Flags().StringVar(&runsConfigPath, "config", "", "Path to config.json file")
	runsCommand.Flags().StringVarP(&runsPipeline, "pipeline", "p", "", "Logical pipeline name")
	runsCommand.Flags().StringVar(&runsDatabaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	runsCommand.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to show")

	rootCmd.AddCommand(runsCommand)
}

func runRunsCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(&flagOverrides{
		configPath:  runsConfigPath,
		pipeline:    runsPipeline,
		databaseURL: runsDatabaseURL,
	})
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("a database URL is required (--db-url, config database_url, or DATABASE_URL)")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := db.NewRunLedger(database, cfg.Pipeline).ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintRunList(runs)
	return nil
}
