package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"simdb/internal/query"
	"simdb/internal/version"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <simulation-id>",
	Short: "Export a simulation as a compressed JSON archive",
	Long: `Export one simulation, including every data series with its full
point set, as a zstd-compressed JSON archive.

Examples:
  simdb export 3
  simdb export 3 -o opamp-sweep.json.zst`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default simulation-<id>.json.zst)")
	rootCmd.AddCommand(exportCmd)
}

// exportArchive is the on-disk archive shape.
type exportArchive struct {
	FormatVersion int                      `json:"format_version"`
	SimdbVersion  string                   `json:"simdb_version"`
	Simulation    *query.SimulationDetails `json:"simulation"`
	Series        []*query.SeriesData      `json:"series"`
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid simulation id %q", args[0])
	}

	logger := newLogger()
	db, _ := mustGetDB(logger)
	defer db.Close()
	svc := query.NewService(db, logger)

	details, err := svc.GetSimulationDetails(id)
	if err != nil {
		return err
	}

	archive := exportArchive{
		FormatVersion: 1,
		SimdbVersion:  version.Version,
		Simulation:    details,
	}
	for _, s := range details.Series {
		data, err := svc.GetDataSeries(s.ID)
		if err != nil {
			return err
		}
		archive.Series = append(archive.Series, data)
	}

	out := exportOutput
	if out == "" {
		out = fmt.Sprintf("simulation-%d.json.zst", id)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(archive); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return err
	}

	fmt.Printf("Exported simulation %d (%d series) to %s\n", id, len(archive.Series), out)
	return nil
}
