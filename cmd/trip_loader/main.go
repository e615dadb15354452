// Package main provides the entry point for the trip-loader CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trip_loader",
	Short: "Incremental taxi-trip loader",
	Long:  "trip_loader pulls taxi trip records from an upstream feed one window at a time and merges them into Postgres by content fingerprint, so replays and backfills never duplicate rows.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
