package storage

import (
	"database/sql"
	"time"
)

// Simulation is the write-side record for one imported run.
type Simulation struct {
	ID          int64
	Name        string
	CircuitName string
	Description string
	VDD         *float64
	VT          *float64
	Temperature *float64
	ImportID    string
	CreatedAt   time.Time
}

// InsertSimulation inserts a simulation record inside tx and returns its id.
func InsertSimulation(tx *sql.Tx, sim *Simulation) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO simulations (name, circuit_name, description, vdd, vt, temperature, import_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sim.Name, sim.CircuitName, sim.Description, sim.VDD, sim.VT, sim.Temperature,
		sim.ImportID, sim.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EnsureCategory returns the id of the named category, creating it on first
// use. Categories are shared across simulations.
func EnsureCategory(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM categories WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.Exec("INSERT INTO categories (name) VALUES (?)", name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LinkCategory associates a simulation with a category.
func LinkCategory(tx *sql.Tx, simulationID, categoryID int64) error {
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO simulation_categories (simulation_id, category_id)
		VALUES (?, ?)
	`, simulationID, categoryID)
	return err
}

// InsertFixedParameter records a parameter held constant across the sweep.
func InsertFixedParameter(tx *sql.Tx, simulationID int64, name string, value float64, unit string) error {
	_, err := tx.Exec(`
		INSERT INTO fixed_parameters (simulation_id, name, value, unit)
		VALUES (?, ?, ?, ?)
	`, simulationID, name, value, unit)
	return err
}

// InsertSweepAxis records one swept parameter name and returns the axis id.
func InsertSweepAxis(tx *sql.Tx, simulationID int64, name string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO sweep_axes (simulation_id, name) VALUES (?, ?)
	`, simulationID, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertSweepAxisValue records one observed value for a sweep axis.
func InsertSweepAxisValue(tx *sql.Tx, axisID int64, value float64) error {
	_, err := tx.Exec("INSERT INTO sweep_axis_values (axis_id, value) VALUES (?, ?)", axisID, value)
	return err
}

// InsertDataSeries inserts a series record and returns its id. Position is
// the series' ordinal in the source file.
func InsertDataSeries(tx *sql.Tx, simulationID int64, signalPath string, position int) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO data_series (simulation_id, signal_path, position)
		VALUES (?, ?, ?)
	`, simulationID, signalPath, position)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertSweepParameterValue records one element of a series' configuration
// fingerprint.
func InsertSweepParameterValue(tx *sql.Tx, dataSeriesID int64, name string, value float64) error {
	_, err := tx.Exec(`
		INSERT INTO sweep_parameter_values (data_series_id, name, value)
		VALUES (?, ?, ?)
	`, dataSeriesID, name, value)
	return err
}

// InsertDataPoints bulk-inserts the ordered (x, y) samples for one series.
// Sequence indices run 0..len-1 with no gaps.
func InsertDataPoints(tx *sql.Tx, dataSeriesID int64, x, y []float64) error {
	stmt, err := tx.Prepare(`
		INSERT INTO data_points (data_series_id, seq, x, y) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range x {
		if _, err := stmt.Exec(dataSeriesID, i, x[i], y[i]); err != nil {
			return err
		}
	}
	return nil
}

// InsertMetric stores a derived metric value for one series.
func InsertMetric(tx *sql.Tx, simulationID, dataSeriesID int64, name string, value float64, unit string) error {
	_, err := tx.Exec(`
		INSERT INTO metrics (simulation_id, data_series_id, name, value, unit)
		VALUES (?, ?, ?, ?, ?)
	`, simulationID, dataSeriesID, name, value, unit)
	return err
}

// DeleteSimulation removes a simulation and, via foreign-key cascades, every
// descendant row. It is the explicit rollback primitive for failed imports
// and the re-import path. Returns the number of simulation rows removed.
func (db *DB) DeleteSimulation(simulationID int64) (int64, error) {
	var deleted int64
	err := db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM simulations WHERE id = ?", simulationID)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// CountSeries returns the number of data series owned by a simulation.
func (db *DB) CountSeries(simulationID int64) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM data_series WHERE simulation_id = ?", simulationID).Scan(&n)
	return n, err
}

// CountPoints returns the number of data points owned by a series.
func (db *DB) CountPoints(dataSeriesID int64) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM data_points WHERE data_series_id = ?", dataSeriesID).Scan(&n)
	return n, err
}
