// Package importer materializes simulator CSV exports into the database.
//
// A source file is wide: columns come in consecutive (X, Y) pairs, one pair
// per sweep configuration. The importer reads the file once, then persists
// the series in fixed-size batches so a large file neither holds one giant
// transaction open nor loses all progress visibility. Atomicity is per
// import: any series failure after the first commit deletes the simulation
// so no partial run survives.
package importer

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"simdb/internal/errors"
	"simdb/internal/header"
	"simdb/internal/logging"
	"simdb/internal/metrics"
	"simdb/internal/storage"
)

// batchSize is the number of series committed per transaction. Large enough
// to amortize transaction overhead, small enough that progress reporting
// stays responsive on wide files.
const batchSize = 10

// FixedParameter is a parameter held constant across the sweep.
type FixedParameter struct {
	Name  string
	Value float64
	Unit  string
}

// Assumptions are the environmental conditions the run was simulated under.
type Assumptions struct {
	VDD         *float64
	VT          *float64
	Temperature *float64
}

// Options describes one import.
type Options struct {
	CSVPath     string
	Name        string
	CircuitName string
	Description string
	Categories  []string
	Fixed       []FixedParameter
	Assumptions Assumptions

	// Reference is the ideal output value used for the error_percentage
	// metric. When nil that metric is not computed.
	Reference *float64

	// SkipMetrics disables metric computation entirely.
	SkipMetrics bool

	// Progress, when set, is called after each committed batch with the
	// number of series completed so far and the total.
	Progress func(done, total int)
}

// Result summarizes a completed import.
type Result struct {
	SimulationID int64
	ImportID     string
	Series       int
	Points       int
	Elapsed      time.Duration
}

// Importer imports CSV exports into a database.
type Importer struct {
	db     *storage.DB
	logger *logging.Logger
}

// New creates an Importer.
func New(db *storage.DB, logger *logging.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// cell is one raw CSV value with the source row it came from, so an abort
// can name the real offending line even after empty cells were skipped.
type cell struct {
	row  int
	text string
}

// rawSeries is one column pair before its headers and cells are parsed.
// Parsing is deferred to persist time so a defect discovered deep in the
// file exercises the same rollback path as a storage failure.
type rawSeries struct {
	position         int
	xHeader, yHeader string
	xCells, yCells   []cell
}

// Import reads the CSV at opts.CSVPath and creates one simulation with its
// full set of descendants. On any failure after the first commit the
// partially created simulation is deleted before the error is returned.
func (imp *Importer) Import(opts Options) (*Result, error) {
	start := time.Now()
	importID := uuid.New().String()

	raw, err := imp.readFile(opts.CSVPath)
	if err != nil {
		return nil, err
	}
	total := len(raw)

	imp.logger.Info("Starting import", map[string]interface{}{
		"import_id": importID,
		"csv":       opts.CSVPath,
		"series":    total,
	})

	// First transaction: the simulation record and everything known before
	// any series is parsed.
	var simID int64
	err = imp.db.WithTx(func(tx *sql.Tx) error {
		var err error
		simID, err = storage.InsertSimulation(tx, &storage.Simulation{
			Name:        opts.Name,
			CircuitName: opts.CircuitName,
			Description: opts.Description,
			VDD:         opts.Assumptions.VDD,
			VT:          opts.Assumptions.VT,
			Temperature: opts.Assumptions.Temperature,
			ImportID:    importID,
			CreatedAt:   start,
		})
		if err != nil {
			return err
		}

		for _, name := range opts.Categories {
			catID, err := storage.EnsureCategory(tx, name)
			if err != nil {
				return err
			}
			if err := storage.LinkCategory(tx, simID, catID); err != nil {
				return err
			}
		}

		for _, p := range opts.Fixed {
			if err := storage.InsertFixedParameter(tx, simID, p.Name, p.Value, p.Unit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation record: %w", err)
	}

	rollback := func(cause error, context string) error {
		if _, delErr := imp.db.DeleteSimulation(simID); delErr != nil {
			imp.logger.Error("Rollback of partial import failed", map[string]interface{}{
				"import_id":     importID,
				"simulation_id": simID,
				"error":         delErr.Error(),
			})
		}
		return errors.New(errors.ImportAborted, context, cause)
	}

	totalPoints := 0
	seriesParams := make([]map[string]float64, 0, total)
	for batchStart := 0; batchStart < total; batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > total {
			batchEnd = total
		}

		err := imp.db.WithTx(func(tx *sql.Tx) error {
			for _, rs := range raw[batchStart:batchEnd] {
				params, n, err := imp.persistSeries(tx, simID, rs, opts)
				if err != nil {
					return err
				}
				seriesParams = append(seriesParams, params)
				totalPoints += n
			}
			return nil
		})
		if err != nil {
			return nil, rollback(err,
				fmt.Sprintf("import aborted in series %d..%d of %d; partial simulation rolled back",
					batchStart+1, batchEnd, total))
		}

		if opts.Progress != nil {
			opts.Progress(batchEnd, total)
		}
	}

	// Final transaction: the sweep axes, derived from the union of parameter
	// names observed across all series.
	err = imp.db.WithTx(func(tx *sql.Tx) error {
		axes, err := deriveAxes(raw, seriesParams)
		if err != nil {
			return err
		}
		for _, a := range axes {
			axisID, err := storage.InsertSweepAxis(tx, simID, a.name)
			if err != nil {
				return err
			}
			for _, v := range a.values {
				if err := storage.InsertSweepAxisValue(tx, axisID, v); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, rollback(err, "import aborted while deriving sweep axes; partial simulation rolled back")
	}

	result := &Result{
		SimulationID: simID,
		ImportID:     importID,
		Series:       total,
		Points:       totalPoints,
		Elapsed:      time.Since(start),
	}

	imp.logger.Info("Import complete", map[string]interface{}{
		"import_id":     importID,
		"simulation_id": simID,
		"series":        result.Series,
		"points":        result.Points,
		"elapsed":       result.Elapsed.String(),
	})

	return result, nil
}

// persistSeries parses and writes one series with its sweep parameter
// values, points and metrics. Returns the parsed parameter map and the
// number of points stored.
func (imp *Importer) persistSeries(tx *sql.Tx, simID int64, rs *rawSeries, opts Options) (map[string]float64, int, error) {
	xCol := rs.position*2 + 1
	yCol := xCol + 1

	x, err := header.Parse(rs.xHeader)
	if err != nil {
		return nil, 0, fmt.Errorf("column %d header %q: %w", xCol, rs.xHeader, err)
	}
	y, err := header.Parse(rs.yHeader)
	if err != nil {
		return nil, 0, fmt.Errorf("column %d header %q: %w", yCol, rs.yHeader, err)
	}
	if !header.PairMatches(x, y) {
		return nil, 0, errors.Newf(errors.MalformedHeader,
			"columns %d and %d are not an X/Y pair over the same configuration: %q vs %q",
			xCol, yCol, rs.xHeader, rs.yHeader)
	}

	xs, err := parseCells(rs.xCells, xCol)
	if err != nil {
		return nil, 0, err
	}
	ys, err := parseCells(rs.yCells, yCol)
	if err != nil {
		return nil, 0, err
	}
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	xs, ys = xs[:n], ys[:n]

	seriesID, err := storage.InsertDataSeries(tx, simID, x.SignalPath, rs.position)
	if err != nil {
		return nil, 0, err
	}
	for name, value := range x.Params {
		if err := storage.InsertSweepParameterValue(tx, seriesID, name, value); err != nil {
			return nil, 0, err
		}
	}
	if err := storage.InsertDataPoints(tx, seriesID, xs, ys); err != nil {
		return nil, 0, err
	}

	if !opts.SkipMetrics && n > 0 {
		if err := imp.storeMetrics(tx, simID, seriesID, x.SignalPath, xs, ys, opts.Reference); err != nil {
			return nil, 0, err
		}
	}

	return x.Params, n, nil
}

// storeMetrics computes and stores the derived metrics for one series. An
// undefined or invalid-reference metric is skipped (absent, not zero);
// anything else is a storage failure.
func (imp *Importer) storeMetrics(tx *sql.Tx, simID, seriesID int64, signalPath string, xs, ys []float64, reference *float64) error {
	if reference != nil {
		v, err := metrics.ErrorPercentage(ys, *reference)
		switch {
		case err == nil:
			if err := storage.InsertMetric(tx, simID, seriesID, metrics.ErrorPercentageName, v, metrics.ErrorPercentageUnit); err != nil {
				return err
			}
		case errors.HasCode(err, errors.InvalidReference):
			imp.logger.Warn("Skipping error_percentage metric", map[string]interface{}{
				"signal_path": signalPath,
				"reason":      err.Error(),
			})
		default:
			return err
		}
	}

	if v, err := metrics.Gain(xs, ys); err == nil {
		if err := storage.InsertMetric(tx, simID, seriesID, metrics.GainName, v, metrics.GainUnit); err != nil {
			return err
		}
	}

	if v, err := metrics.Bandwidth(xs, ys); err == nil {
		if err := storage.InsertMetric(tx, simID, seriesID, metrics.BandwidthName, v, metrics.BandwidthUnit); err != nil {
			return err
		}
	}

	return nil
}

// parseCells converts one raw column to floats. Absent and empty cells are
// skipped (trailing short columns are common in simulator exports); a
// non-empty cell that does not parse as a number is a defect.
func parseCells(cells []cell, col int) ([]float64, error) {
	out := make([]float64, 0, len(cells))
	for _, c := range cells {
		text := strings.TrimSpace(c.text)
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Newf(errors.ImportAborted,
				"row %d column %d: non-numeric value %q", c.row, col, text)
		}
		out = append(out, v)
	}
	return out, nil
}

// axis is one derived sweep axis with its observed distinct values.
type axis struct {
	name   string
	values []float64
}

// deriveAxes computes the sweep-axis set as the union of parameter names
// across all series and checks that every series covers exactly that set.
// Partial coverage indicates a defective export and aborts the import.
func deriveAxes(raw []*rawSeries, seriesParams []map[string]float64) ([]axis, error) {
	valueSets := map[string]map[float64]bool{}
	for _, params := range seriesParams {
		for name, v := range params {
			if valueSets[name] == nil {
				valueSets[name] = map[float64]bool{}
			}
			valueSets[name][v] = true
		}
	}

	for i, params := range seriesParams {
		if len(params) == len(valueSets) {
			continue
		}
		missing := make([]string, 0)
		for name := range valueSets {
			if _, ok := params[name]; !ok {
				missing = append(missing, name)
			}
		}
		sort.Strings(missing)
		return nil, errors.Newf(errors.ImportAborted,
			"series %d (%s) is missing sweep parameters %v declared elsewhere in the file",
			i+1, raw[i].xHeader, missing)
	}

	names := make([]string, 0, len(valueSets))
	for name := range valueSets {
		names = append(names, name)
	}
	sort.Strings(names)

	axes := make([]axis, 0, len(names))
	for _, name := range names {
		values := make([]float64, 0, len(valueSets[name]))
		for v := range valueSets[name] {
			values = append(values, v)
		}
		sort.Float64s(values)
		axes = append(axes, axis{name: name, values: values})
	}
	return axes, nil
}

// readFile reads the whole CSV (transparently decompressing .gz input) and
// slices it into raw column pairs without parsing headers or cells.
func (imp *Importer) readFile(path string) ([]*rawSeries, error) {
	r, closeFn, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // columns may be ragged

	headerRow, err := reader.Read()
	if err == io.EOF {
		return nil, nil // no headers, no series
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if len(headerRow)%2 != 0 {
		return nil, errors.Newf(errors.MalformedHeader,
			"file has %d columns; columns must come in (X, Y) pairs", len(headerRow))
	}

	raw := make([]*rawSeries, 0, len(headerRow)/2)
	for i := 0; i < len(headerRow); i += 2 {
		raw = append(raw, &rawSeries{
			position: i / 2,
			xHeader:  headerRow[i],
			yHeader:  headerRow[i+1],
		})
	}

	rowNum := 1 // header row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data row: %w", err)
		}
		rowNum++
		for _, rs := range raw {
			xCol := rs.position * 2
			if xCol < len(record) {
				rs.xCells = append(rs.xCells, cell{row: rowNum, text: record[xCol]})
			}
			if xCol+1 < len(record) {
				rs.yCells = append(rs.yCells, cell{row: rowNum, text: record[xCol+1]})
			}
		}
	}

	return raw, nil
}

// openCSV opens a CSV file, transparently decompressing gzip input.
func openCSV(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, func() {
			_ = gz.Close()
			_ = f.Close()
		}, nil
	}

	return f, func() { _ = f.Close() }, nil
}
