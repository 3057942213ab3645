package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"simdb/internal/errors"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <simulation-id>",
	Short: "Delete a simulation and all its data",
	Long: `Delete a simulation with all its series, points and metrics. Shared
categories are kept. Asks for confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid simulation id %q", args[0])
	}

	logger := newLogger()
	db, _ := mustGetDB(logger)
	defer db.Close()

	if !deleteYes {
		fmt.Printf("Delete simulation %d and all its data? [y/N] ", id)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted, err := db.DeleteSimulation(id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errors.Newf(errors.NotFound, "simulation %d not found", id)
	}

	fmt.Printf("Deleted simulation %d\n", id)
	return nil
}
