package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	statsFormat     string
	statsSimulation int64
)

var statsCmd = &cobra.Command{
	Use:   "stats <metric>",
	Short: "Aggregate statistics for a metric",
	Long: `Compute min, max, mean, median and standard deviation of a metric
across all series, optionally restricted to one simulation.

Examples:
  simdb stats gain
  simdb stats error_percentage --simulation 3`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "human", "Output format (human, json)")
	statsCmd.Flags().Int64Var(&statsSimulation, "simulation", 0, "Restrict to one simulation id")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(statsFormat)
	if err != nil {
		return err
	}

	logger := newLogger()
	svc := mustGetService(logger)

	var simID *int64
	if cmd.Flags().Changed("simulation") {
		simID = &statsSimulation
	}

	stats, err := svc.GetMetricStatistics(args[0], simID)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := formatJSON(stats)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(formatStatistics(stats))
	return nil
}
