package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"simdb/internal/version"
)

var (
	// databaseFlag overrides the database path from config.
	databaseFlag string
	// logFormatFlag selects human or json log output.
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "simdb",
	Short: "simdb - circuit simulation results database",
	Long: `simdb imports analog circuit simulator CSV exports into a local SQLite
database, computes per-series metrics (error percentage, gain, bandwidth)
and makes the results searchable from the command line or through an
LLM-backed chat assistant.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("simdb version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&databaseFlag, "database", "",
		"Database file path (default from .simdb/config.json)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "human",
		"Log output format: human or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
