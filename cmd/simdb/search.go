package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchFormat string

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search simulations by keyword",
	Long: `Search simulations by a case-insensitive keyword over name, circuit
name, description and categories. Without a keyword all simulations are
listed, newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(searchFormat)
	if err != nil {
		return err
	}

	keyword := ""
	if len(args) == 1 {
		keyword = args[0]
	}

	logger := newLogger()
	svc := mustGetService(logger)

	results, err := svc.Search(keyword)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := formatJSON(results)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(formatSummaries(results))
	return nil
}
