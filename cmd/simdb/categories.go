package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var categoriesFormat string

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with usage counts",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func init() {
	categoriesCmd.Flags().StringVar(&categoriesFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(categoriesFormat)
	if err != nil {
		return err
	}

	logger := newLogger()
	svc := mustGetService(logger)

	cats, err := svc.ListCategories()
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := formatJSON(cats)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(formatCategories(cats))
	return nil
}
