package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simdb/internal/query"
)

var (
	filterFormat     string
	filterMin        float64
	filterMax        float64
	filterSimulation int64
	filterLimit      int
)

var filterCmd = &cobra.Command{
	Use:   "filter <metric>",
	Short: "Find series by metric value",
	Long: `Find data series whose metric value lies within a closed interval,
ordered by value ascending. Series without the metric never match.

Examples:
  simdb filter error_percentage --max 5
  simdb filter gain --min 2 --max 10 --simulation 3`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringVar(&filterFormat, "format", "human", "Output format (human, json)")
	filterCmd.Flags().Float64Var(&filterMin, "min", 0, "Inclusive lower bound")
	filterCmd.Flags().Float64Var(&filterMax, "max", 0, "Inclusive upper bound")
	filterCmd.Flags().Int64Var(&filterSimulation, "simulation", 0, "Restrict to one simulation id")
	filterCmd.Flags().IntVar(&filterLimit, "limit", query.DefaultFilterLimit, "Maximum number of results")
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(filterFormat)
	if err != nil {
		return err
	}

	logger := newLogger()
	svc := mustGetService(logger)

	opts := query.MetricFilterOptions{Metric: args[0], Limit: filterLimit}
	if cmd.Flags().Changed("min") {
		opts.Min = &filterMin
	}
	if cmd.Flags().Changed("max") {
		opts.Max = &filterMax
	}
	if cmd.Flags().Changed("simulation") {
		opts.SimulationID = &filterSimulation
	}

	matches, err := svc.FilterByMetric(opts)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := formatJSON(matches)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(formatMatches(matches))
	return nil
}
