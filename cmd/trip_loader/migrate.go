package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/trip-loader/internal/db"
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Create the trips and runs tables",
	RunE:  runMigrateCmd,
}

var (
	migrateConfigPath  string
	migrateDatabaseURL string
)

func init() {
	migrateCommand.Flags().StringVar(&migrateConfigPath, "config", "", "Path to config.json file")
	migrateCommand.Flags().StringVar(&migrateDatabaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(migrateCommand)
}

func runMigrateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(&flagOverrides{
		configPath:  migrateConfigPath,
		databaseURL: migrateDatabaseURL,
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

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	cmd.Println("Schema is up to date.")
	return nil
}
