package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"simdb/internal/importer"
)

var (
	importName        string
	importCircuit     string
	importDescription string
	importCategories  []string
	importParams      []string
	importVDD         float64
	importVT          float64
	importTemperature float64
	importReference   float64
	importMeta        string
	importNoMetrics   bool
)

var importCmd = &cobra.Command{
	Use:   "import <csv-file>",
	Short: "Import a simulator CSV export",
	Long: `Import a circuit simulator CSV export into the database.

The file's columns must come in (X, Y) pairs whose headers follow
'<signal> (<name>=<value>,...) <X|Y>'. Gzip-compressed files (.csv.gz)
are decompressed transparently. Metadata can be given with flags or
collected in a YAML manifest:

  name: opamp gain sweep
  circuit: Two-Stage OpAmp
  categories: [Amplifier]
  reference: 1.0e-4
  assumptions:
    vdd: 1.8
    temperature: 27
  fixed_parameters:
    - {name: L, value: 1.0e-6, unit: m}

Examples:
  simdb import sweep.csv --name "gain sweep" --circuit "Two-Stage OpAmp"
  simdb import sweep.csv.gz --meta sweep.yaml
  simdb import sweep.csv --circuit Mirror --param L=1e-6:m --reference 1e-4`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "Simulation name (default: CSV file name)")
	importCmd.Flags().StringVar(&importCircuit, "circuit", "", "Circuit name")
	importCmd.Flags().StringVar(&importDescription, "description", "", "Free-form description")
	importCmd.Flags().StringArrayVar(&importCategories, "category", nil, "Category tag (repeatable)")
	importCmd.Flags().StringArrayVar(&importParams, "param", nil, "Fixed parameter as name=value[:unit] (repeatable)")
	importCmd.Flags().Float64Var(&importVDD, "vdd", 0, "Supply voltage assumption (V)")
	importCmd.Flags().Float64Var(&importVT, "vt", 0, "Threshold voltage assumption (V)")
	importCmd.Flags().Float64Var(&importTemperature, "temperature", 0, "Temperature assumption (C)")
	importCmd.Flags().Float64Var(&importReference, "reference", 0, "Ideal output value for error percentage")
	importCmd.Flags().StringVar(&importMeta, "meta", "", "YAML manifest with import metadata")
	importCmd.Flags().BoolVar(&importNoMetrics, "no-metrics", false, "Skip metric computation")
	rootCmd.AddCommand(importCmd)
}

// metaManifest is the YAML shape accepted by --meta.
type metaManifest struct {
	Name        string   `yaml:"name"`
	Circuit     string   `yaml:"circuit"`
	Description string   `yaml:"description"`
	Categories  []string `yaml:"categories"`
	Reference   *float64 `yaml:"reference"`
	Assumptions struct {
		VDD         *float64 `yaml:"vdd"`
		VT          *float64 `yaml:"vt"`
		Temperature *float64 `yaml:"temperature"`
	} `yaml:"assumptions"`
	FixedParameters []struct {
		Name  string  `yaml:"name"`
		Value float64 `yaml:"value"`
		Unit  string  `yaml:"unit"`
	} `yaml:"fixed_parameters"`
}

func runImport(cmd *cobra.Command, args []string) error {
	csvPath := args[0]
	logger := newLogger()

	opts := importer.Options{
		CSVPath:     csvPath,
		Name:        importName,
		CircuitName: importCircuit,
		Description: importDescription,
		Categories:  importCategories,
		SkipMetrics: importNoMetrics,
	}

	if importMeta != "" {
		if err := applyManifest(importMeta, &opts); err != nil {
			return err
		}
	}

	// Flags win over the manifest.
	for _, raw := range importParams {
		p, err := parseFixedParam(raw)
		if err != nil {
			return err
		}
		opts.Fixed = append(opts.Fixed, p)
	}
	if cmd.Flags().Changed("vdd") {
		opts.Assumptions.VDD = &importVDD
	}
	if cmd.Flags().Changed("vt") {
		opts.Assumptions.VT = &importVT
	}
	if cmd.Flags().Changed("temperature") {
		opts.Assumptions.Temperature = &importTemperature
	}
	if cmd.Flags().Changed("reference") {
		opts.Reference = &importReference
	}

	if opts.Name == "" {
		base := filepath.Base(csvPath)
		opts.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".csv")
	}
	if opts.CircuitName == "" {
		return fmt.Errorf("circuit name is required (--circuit or manifest)")
	}

	db, _ := mustGetDB(logger)
	defer db.Close()

	opts.Progress = func(done, total int) {
		fmt.Fprintf(os.Stderr, "Imported %d/%d series\n", done, total)
	}

	result, err := importer.New(db, logger).Import(opts)
	if err != nil {
		return err
	}

	fmt.Printf("Imported simulation %d (%s): %d series, %d points in %s\n",
		result.SimulationID, opts.Name, result.Series, result.Points,
		result.Elapsed.Round(time.Millisecond))
	return nil
}

// applyManifest fills unset options from a YAML manifest.
func applyManifest(path string, opts *importer.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var m metaManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	if opts.Name == "" {
		opts.Name = m.Name
	}
	if opts.CircuitName == "" {
		opts.CircuitName = m.Circuit
	}
	if opts.Description == "" {
		opts.Description = m.Description
	}
	opts.Categories = append(opts.Categories, m.Categories...)
	opts.Reference = m.Reference
	opts.Assumptions.VDD = m.Assumptions.VDD
	opts.Assumptions.VT = m.Assumptions.VT
	opts.Assumptions.Temperature = m.Assumptions.Temperature
	for _, p := range m.FixedParameters {
		opts.Fixed = append(opts.Fixed, importer.FixedParameter{Name: p.Name, Value: p.Value, Unit: p.Unit})
	}
	return nil
}

// parseFixedParam parses a --param value of the form name=value[:unit].
func parseFixedParam(raw string) (importer.FixedParameter, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return importer.FixedParameter{}, fmt.Errorf("invalid --param %q, want name=value[:unit]", raw)
	}
	valueStr, unit, _ := strings.Cut(rest, ":")
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return importer.FixedParameter{}, fmt.Errorf("invalid --param %q: %w", raw, err)
	}
	return importer.FixedParameter{Name: name, Value: value, Unit: unit}, nil
}
