package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show <simulation-id>",
	Short: "Show one simulation in full",
	Long: `Show a simulation's assumptions, categories, fixed parameters, sweep
axes and every data series with its metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(showFormat)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid simulation id %q", args[0])
	}

	logger := newLogger()
	svc := mustGetService(logger)

	details, err := svc.GetSimulationDetails(id)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := formatJSON(details)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(formatDetails(details))
	return nil
}
