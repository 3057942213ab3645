package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	seriesFormat    string
	seriesMaxPoints int
)

var seriesCmd = &cobra.Command{
	Use:   "series <series-id>",
	Short: "Show one data series with its points",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeries,
}

func init() {
	seriesCmd.Flags().StringVar(&seriesFormat, "format", "human", "Output format (human, json)")
	seriesCmd.Flags().IntVar(&seriesMaxPoints, "max-points", 20, "Points to print in human output (0 = all)")
	rootCmd.AddCommand(seriesCmd)
}

func runSeries(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(seriesFormat)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid series id %q", args[0])
	}

	logger := newLogger()
	svc := mustGetService(logger)

	data, err := svc.GetDataSeries(id)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := formatJSON(data)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(formatSeries(data, seriesMaxPoints))
	return nil
}
