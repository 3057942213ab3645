package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createSimulationTables(tx); err != nil {
			return err
		}
		if err := createSeriesTables(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", map[string]interface{}{
			"version": version,
		})
		return nil
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Migrations run sequentially as the schema evolves.
	if version == 0 {
		return db.initializeSchema()
	}

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createSimulationTables creates the simulation-level tables: simulations,
// categories, their join table, fixed parameters and sweep axes.
func createSimulationTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS simulations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			circuit_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			vdd REAL,
			vt REAL,
			temperature REAL,
			import_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create simulations table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)
	`); err != nil {
		return fmt.Errorf("failed to create categories table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS simulation_categories (
			simulation_id INTEGER NOT NULL,
			category_id INTEGER NOT NULL,

			PRIMARY KEY (simulation_id, category_id),
			FOREIGN KEY (simulation_id) REFERENCES simulations(id) ON DELETE CASCADE,
			FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create simulation_categories table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS fixed_parameters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL DEFAULT '',

			FOREIGN KEY (simulation_id) REFERENCES simulations(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create fixed_parameters table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_axes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id INTEGER NOT NULL,
			name TEXT NOT NULL,

			UNIQUE (simulation_id, name),
			FOREIGN KEY (simulation_id) REFERENCES simulations(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create sweep_axes table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_axis_values (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			axis_id INTEGER NOT NULL,
			value REAL NOT NULL,

			FOREIGN KEY (axis_id) REFERENCES sweep_axes(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create sweep_axis_values table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_simulations_name ON simulations(name)",
		"CREATE INDEX IF NOT EXISTS idx_simulations_circuit_name ON simulations(circuit_name)",
		"CREATE INDEX IF NOT EXISTS idx_fixed_parameters_simulation ON fixed_parameters(simulation_id)",
		"CREATE INDEX IF NOT EXISTS idx_sweep_axis_values_axis ON sweep_axis_values(axis_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createSeriesTables creates the per-series tables: data_series, their sweep
// parameter values (the configuration fingerprint), data points and metrics.
func createSeriesTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS data_series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id INTEGER NOT NULL,
			signal_path TEXT NOT NULL,
			position INTEGER NOT NULL,

			FOREIGN KEY (simulation_id) REFERENCES simulations(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create data_series table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_parameter_values (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			data_series_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,

			UNIQUE (data_series_id, name),
			FOREIGN KEY (data_series_id) REFERENCES data_series(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create sweep_parameter_values table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS data_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			data_series_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,

			UNIQUE (data_series_id, seq),
			FOREIGN KEY (data_series_id) REFERENCES data_series(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create data_points table: %w", err)
	}

	// At most one metric row per (series, name): metrics are derived from
	// the series' points, never independently settable.
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id INTEGER NOT NULL,
			data_series_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL DEFAULT '',

			UNIQUE (data_series_id, name),
			FOREIGN KEY (simulation_id) REFERENCES simulations(id) ON DELETE CASCADE,
			FOREIGN KEY (data_series_id) REFERENCES data_series(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create metrics table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_data_series_simulation ON data_series(simulation_id)",
		"CREATE INDEX IF NOT EXISTS idx_sweep_parameter_values_series ON sweep_parameter_values(data_series_id)",
		"CREATE INDEX IF NOT EXISTS idx_data_points_series ON data_points(data_series_id)",
		"CREATE INDEX IF NOT EXISTS idx_metrics_name_value ON metrics(name, value)",
		"CREATE INDEX IF NOT EXISTS idx_metrics_simulation ON metrics(simulation_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
