package storage

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"simdb/internal/logging"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})

	db, err := Open(filepath.Join(t.TempDir(), "simulations.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})

	return db
}

// seedSimulation inserts a simulation with one series, two points, one sweep
// parameter value and one metric, returning the simulation and series ids.
func seedSimulation(t *testing.T, db *DB, name string) (int64, int64) {
	t.Helper()

	var simID, seriesID int64
	err := db.WithTx(func(tx *sql.Tx) error {
		var err error
		vdd := 1.8
		simID, err = InsertSimulation(tx, &Simulation{
			Name:        name,
			CircuitName: "Simple Current Mirror NMOS",
			Description: "test fixture",
			VDD:         &vdd,
			ImportID:    "import-test",
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return err
		}

		catID, err := EnsureCategory(tx, "Current Mirror")
		if err != nil {
			return err
		}
		if err := LinkCategory(tx, simID, catID); err != nil {
			return err
		}
		if err := InsertFixedParameter(tx, simID, "Iref", 100e-6, "A"); err != nil {
			return err
		}

		axisID, err := InsertSweepAxis(tx, simID, "Nm_In_W")
		if err != nil {
			return err
		}
		if err := InsertSweepAxisValue(tx, axisID, 2.4e-7); err != nil {
			return err
		}

		seriesID, err = InsertDataSeries(tx, simID, "/I4/Out", 0)
		if err != nil {
			return err
		}
		if err := InsertSweepParameterValue(tx, seriesID, "Nm_In_W", 2.4e-7); err != nil {
			return err
		}
		if err := InsertDataPoints(tx, seriesID, []float64{1e-6, 2e-6}, []float64{1.1e-6, 2.1e-6}); err != nil {
			return err
		}
		return InsertMetric(tx, simID, seriesID, "error_percentage", 7.5, "%")
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	return simID, seriesID
}

func TestDatabaseInitialization(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}
}

func TestInsertAndCounts(t *testing.T) {
	db := setupTestDB(t)
	simID, seriesID := seedSimulation(t, db, "W sweep")

	series, err := db.CountSeries(simID)
	if err != nil {
		t.Fatalf("CountSeries failed: %v", err)
	}
	if series != 1 {
		t.Errorf("CountSeries = %d, want 1", series)
	}

	points, err := db.CountPoints(seriesID)
	if err != nil {
		t.Fatalf("CountPoints failed: %v", err)
	}
	if points != 2 {
		t.Errorf("CountPoints = %d, want 2", points)
	}
}

func TestEnsureCategoryIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	var first, second int64
	err := db.WithTx(func(tx *sql.Tx) error {
		var err error
		if first, err = EnsureCategory(tx, "NMOS"); err != nil {
			return err
		}
		second, err = EnsureCategory(tx, "NMOS")
		return err
	})
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}
	if first != second {
		t.Errorf("EnsureCategory returned different ids: %d vs %d", first, second)
	}
}

// Deleting a simulation must cascade through every descendant table and
// leave no orphan rows.
func TestDeleteSimulationCascades(t *testing.T) {
	db := setupTestDB(t)
	simID, _ := seedSimulation(t, db, "doomed")

	deleted, err := db.DeleteSimulation(simID)
	if err != nil {
		t.Fatalf("DeleteSimulation failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteSimulation removed %d rows, want 1", deleted)
	}

	tables := []string{
		"fixed_parameters", "sweep_axes", "data_series",
		"simulation_categories", "metrics",
	}
	for _, table := range tables {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s failed: %v", table, err)
		}
		if n != 0 {
			t.Errorf("table %s has %d orphan rows after cascade delete", table, n)
		}
	}

	// Second-level descendants cascade through their parents.
	for _, table := range []string{"sweep_axis_values", "sweep_parameter_values", "data_points"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s failed: %v", table, err)
		}
		if n != 0 {
			t.Errorf("table %s has %d orphan rows after cascade delete", table, n)
		}
	}

	// Categories themselves survive; only the link is removed.
	var cats int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&cats); err != nil {
		t.Fatalf("count categories failed: %v", err)
	}
	if cats != 1 {
		t.Errorf("categories = %d, want 1 (category outlives simulation)", cats)
	}
}

func TestDeleteMissingSimulation(t *testing.T) {
	db := setupTestDB(t)

	deleted, err := db.DeleteSimulation(999)
	if err != nil {
		t.Fatalf("DeleteSimulation failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("DeleteSimulation removed %d rows, want 0", deleted)
	}
}

func TestDuplicateMetricRejected(t *testing.T) {
	db := setupTestDB(t)
	simID, seriesID := seedSimulation(t, db, "dup metric")

	err := db.WithTx(func(tx *sql.Tx) error {
		return InsertMetric(tx, simID, seriesID, "error_percentage", 9.9, "%")
	})
	if err == nil {
		t.Fatal("second metric row for the same (series, name) should be rejected")
	}
}
