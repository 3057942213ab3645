package importer

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"simdb/internal/errors"
	"simdb/internal/logging"
	"simdb/internal/metrics"
	"simdb/internal/storage"
)

func setupImporter(t *testing.T) (*Importer, *storage.DB) {
	t.Helper()

	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})

	db, err := storage.Open(filepath.Join(t.TempDir(), "simulations.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})

	return New(db, logger), db
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

// singlePairCSV is one X/Y pair with five rows. The Y values average to
// 1.1e-4 absolute deviation 1.0e-5 against an ideal of 1.0e-4, giving an
// error percentage of exactly 10.
const singlePairCSV = `/I4/Out (P=1.0e-4) X,/I4/Out (P=1.0e-4) Y
0.0,1.1e-4
0.5,1.1e-4
1.0,1.1e-4
1.5,1.1e-4
2.0,1.1e-4
`

func TestImportSinglePair(t *testing.T) {
	imp, db := setupImporter(t)

	ideal := 1.0e-4
	vdd := 1.8
	result, err := imp.Import(Options{
		CSVPath:     writeCSV(t, singlePairCSV),
		Name:        "mirror sweep",
		CircuitName: "Simple Current Mirror NMOS",
		Categories:  []string{"Current Mirror"},
		Fixed:       []FixedParameter{{Name: "L", Value: 1.0e-6, Unit: "m"}},
		Assumptions: Assumptions{VDD: &vdd},
		Reference:   &ideal,
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if result.Series != 1 {
		t.Errorf("Series = %d, want 1", result.Series)
	}
	if result.Points != 5 {
		t.Errorf("Points = %d, want 5", result.Points)
	}
	if result.ImportID == "" {
		t.Error("ImportID is empty")
	}

	assertCount(t, db, "simulations", "", 1)
	assertCount(t, db, "data_series", "", 1)
	assertCount(t, db, "data_points", "", 5)
	assertCount(t, db, "sweep_axes", "name = 'P'", 1)
	assertCount(t, db, "sweep_axis_values", "value = 1.0e-4", 1)
	assertCount(t, db, "sweep_parameter_values", "name = 'P' AND value = 1.0e-4", 1)
	assertCount(t, db, "fixed_parameters", "name = 'L'", 1)
	assertCount(t, db, "categories", "name = 'Current Mirror'", 1)

	var errPct float64
	err = db.QueryRow("SELECT value FROM metrics WHERE name = ?", metrics.ErrorPercentageName).Scan(&errPct)
	if err != nil {
		t.Fatalf("error_percentage metric not stored: %v", err)
	}
	if math.Abs(errPct-10.0) > 1e-9 {
		t.Errorf("error_percentage = %g, want 10", errPct)
	}
}

func TestImportPointSequenceContiguous(t *testing.T) {
	imp, db := setupImporter(t)

	result, err := imp.Import(Options{
		CSVPath:     writeCSV(t, singlePairCSV),
		Name:        "seq check",
		CircuitName: "c",
		SkipMetrics: true,
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	rows, err := db.Query("SELECT seq, x FROM data_points ORDER BY seq")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	want := 0
	for rows.Next() {
		var seq int
		var x float64
		if err := rows.Scan(&seq, &x); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if seq != want {
			t.Fatalf("seq = %d, want %d", seq, want)
		}
		if wantX := 0.5 * float64(want); math.Abs(x-wantX) > 1e-12 {
			t.Errorf("x[%d] = %g, want %g", seq, x, wantX)
		}
		want++
	}
	if want != result.Points {
		t.Errorf("scanned %d points, result reported %d", want, result.Points)
	}
}

func TestImportTwiceCreatesTwoSimulations(t *testing.T) {
	imp, db := setupImporter(t)
	path := writeCSV(t, singlePairCSV)

	first, err := imp.Import(Options{CSVPath: path, Name: "run 1", CircuitName: "c", SkipMetrics: true})
	if err != nil {
		t.Fatalf("First import failed: %v", err)
	}
	second, err := imp.Import(Options{CSVPath: path, Name: "run 2", CircuitName: "c", SkipMetrics: true})
	if err != nil {
		t.Fatalf("Second import failed: %v", err)
	}

	if first.SimulationID == second.SimulationID {
		t.Error("Re-import reused a simulation id")
	}
	if first.ImportID == second.ImportID {
		t.Error("Re-import reused an import id")
	}
	assertCount(t, db, "simulations", "", 2)
	assertCount(t, db, "data_points", "", 10)
}

// wideCSV builds n column pairs, one row, with a one-value sweep per pair.
// corruptPair, when >= 0, replaces that pair's Y header with garbage.
func wideCSV(n, corruptPair int) string {
	var headers []string
	var cells []string
	for i := 0; i < n; i++ {
		x := fmt.Sprintf("/A/Out (W=%d.0e-7) X", i+1)
		y := fmt.Sprintf("/A/Out (W=%d.0e-7) Y", i+1)
		if i == corruptPair {
			y = "/A/Out no parens Y"
		}
		headers = append(headers, x, y)
		cells = append(cells, "1.0", "2.0")
	}
	return strings.Join(headers, ",") + "\n" + strings.Join(cells, ",") + "\n"
}

func TestImportBatchFailureRollsBackEverything(t *testing.T) {
	imp, db := setupImporter(t)

	// 25 pairs = 3 batches; the corrupt header sits in batch 2. Batch 1
	// commits before the failure, so the rollback path must delete it.
	_, err := imp.Import(Options{
		CSVPath:     writeCSV(t, wideCSV(25, 14)),
		Name:        "doomed",
		CircuitName: "c",
		Categories:  []string{"Amplifier"},
		SkipMetrics: true,
	})
	if err == nil {
		t.Fatal("Import succeeded despite malformed header")
	}
	if !errors.HasCode(err, errors.ImportAborted) {
		t.Errorf("error code = %v, want IMPORT_ABORTED", errors.CodeOf(err))
	}
	if !errors.HasCode(err, errors.MalformedHeader) {
		t.Errorf("cause chain does not carry MALFORMED_HEADER: %v", err)
	}

	for _, table := range []string{
		"simulations", "simulation_categories", "fixed_parameters",
		"sweep_axes", "sweep_axis_values", "data_series",
		"sweep_parameter_values", "data_points", "metrics",
	} {
		assertCount(t, db, table, "", 0)
	}
	// Categories are shared across simulations and survive the rollback.
	assertCount(t, db, "categories", "", 1)
}

func TestImportProgressReporting(t *testing.T) {
	imp, _ := setupImporter(t)

	var calls [][2]int
	_, err := imp.Import(Options{
		CSVPath:     writeCSV(t, wideCSV(25, -1)),
		Name:        "progress",
		CircuitName: "c",
		SkipMetrics: true,
		Progress: func(done, total int) {
			calls = append(calls, [2]int{done, total})
		},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	want := [][2]int{{10, 25}, {20, 25}, {25, 25}}
	if len(calls) != len(want) {
		t.Fatalf("Progress called %d times, want %d: %v", len(calls), len(want), calls)
	}
	for i, w := range want {
		if calls[i] != w {
			t.Errorf("Progress call %d = %v, want %v", i, calls[i], w)
		}
	}
}

func TestImportGzipEquivalence(t *testing.T) {
	imp, db := setupImporter(t)

	gzPath := filepath.Join(t.TempDir(), "export.csv.gz")
	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatalf("Failed to create gzip fixture: %v", err)
	}
	gw := gzip.NewWriter(f)
	if _, err := gw.Write([]byte(singlePairCSV)); err != nil {
		t.Fatalf("Failed to write gzip fixture: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close gzip fixture: %v", err)
	}

	plain, err := imp.Import(Options{CSVPath: writeCSV(t, singlePairCSV), Name: "plain", CircuitName: "c", SkipMetrics: true})
	if err != nil {
		t.Fatalf("Plain import failed: %v", err)
	}
	compressed, err := imp.Import(Options{CSVPath: gzPath, Name: "gz", CircuitName: "c", SkipMetrics: true})
	if err != nil {
		t.Fatalf("Gzip import failed: %v", err)
	}

	if plain.Series != compressed.Series || plain.Points != compressed.Points {
		t.Errorf("gzip import (%d series, %d points) differs from plain (%d series, %d points)",
			compressed.Series, compressed.Points, plain.Series, plain.Points)
	}
	assertCount(t, db, "data_points", "", 10)
}

func TestImportMixedSweepCoverageAborts(t *testing.T) {
	imp, db := setupImporter(t)

	csv := `/A (W=1.0) X,/A (W=1.0) Y,/B () X,/B () Y
1.0,2.0,1.0,2.0
`
	_, err := imp.Import(Options{CSVPath: writeCSV(t, csv), Name: "mixed", CircuitName: "c", SkipMetrics: true})
	if err == nil {
		t.Fatal("Import succeeded despite partial sweep coverage")
	}
	if !errors.HasCode(err, errors.ImportAborted) {
		t.Errorf("error code = %v, want IMPORT_ABORTED", errors.CodeOf(err))
	}
	assertCount(t, db, "simulations", "", 0)
	assertCount(t, db, "data_series", "", 0)
}

func TestImportOddColumnCount(t *testing.T) {
	imp, db := setupImporter(t)

	csv := `/A (W=1.0) X,/A (W=1.0) Y,/B (W=2.0) X
1.0,2.0,3.0
`
	_, err := imp.Import(Options{CSVPath: writeCSV(t, csv), Name: "odd", CircuitName: "c"})
	if err == nil {
		t.Fatal("Import succeeded despite unpaired column")
	}
	if !errors.HasCode(err, errors.MalformedHeader) {
		t.Errorf("error code = %v, want MALFORMED_HEADER", errors.CodeOf(err))
	}
	assertCount(t, db, "simulations", "", 0)
}

func TestImportMismatchedPairAborts(t *testing.T) {
	imp, _ := setupImporter(t)

	csv := `/A (W=1.0) X,/A (W=2.0) Y
1.0,2.0
`
	_, err := imp.Import(Options{CSVPath: writeCSV(t, csv), Name: "mismatch", CircuitName: "c"})
	if err == nil {
		t.Fatal("Import succeeded despite mismatched pair fingerprints")
	}
	if !errors.HasCode(err, errors.ImportAborted) {
		t.Errorf("error code = %v, want IMPORT_ABORTED", errors.CodeOf(err))
	}
}

func TestImportNonNumericCellNamesSourceRow(t *testing.T) {
	imp, _ := setupImporter(t)

	// The empty cell on row 3 is skipped; the bad cell on row 4 must still
	// be reported as row 4, not by its position among the surviving cells.
	csv := `/A (W=1.0) X,/A (W=1.0) Y
1.0,2.0
,3.0
bogus,4.0
`
	_, err := imp.Import(Options{CSVPath: writeCSV(t, csv), Name: "bad cell", CircuitName: "c", SkipMetrics: true})
	if err == nil {
		t.Fatal("Import succeeded despite non-numeric cell")
	}
	if !errors.HasCode(err, errors.ImportAborted) {
		t.Errorf("error code = %v, want IMPORT_ABORTED", errors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "row 4 column 1") {
		t.Errorf("error does not name the source row: %v", err)
	}
}

func TestImportZeroReferenceSkipsErrorMetric(t *testing.T) {
	imp, db := setupImporter(t)

	ideal := 0.0
	_, err := imp.Import(Options{
		CSVPath:     writeCSV(t, singlePairCSV),
		Name:        "zero ref",
		CircuitName: "c",
		Reference:   &ideal,
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	// error_percentage is undefined against a zero reference and must be
	// absent rather than stored as zero. Gain and bandwidth still apply.
	assertCount(t, db, "metrics", fmt.Sprintf("name = '%s'", metrics.ErrorPercentageName), 0)
	assertCount(t, db, "metrics", fmt.Sprintf("name = '%s'", metrics.GainName), 1)
}

func TestImportEmptyFile(t *testing.T) {
	imp, db := setupImporter(t)

	result, err := imp.Import(Options{CSVPath: writeCSV(t, ""), Name: "empty", CircuitName: "c"})
	if err != nil {
		t.Fatalf("Import of empty file failed: %v", err)
	}
	if result.Series != 0 || result.Points != 0 {
		t.Errorf("empty file produced %d series, %d points", result.Series, result.Points)
	}
	assertCount(t, db, "simulations", "", 1)
	assertCount(t, db, "data_series", "", 0)
}

func assertCount(t *testing.T, db *storage.DB, table, where string, want int) {
	t.Helper()
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var got int
	if err := db.QueryRow(q).Scan(&got); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	if got != want {
		t.Errorf("%s count = %d, want %d (filter %q)", table, got, want, where)
	}
}
