// Package query provides read-only access to imported simulations. It is the
// single surface the CLI commands and the chat tools go through; every
// operation returns plain structs so callers never touch SQL.
package query

import (
	"database/sql"
	"fmt"
	"time"

	"simdb/internal/errors"
	"simdb/internal/logging"
	"simdb/internal/storage"
)

// Service answers queries against one database.
type Service struct {
	db     *storage.DB
	logger *logging.Logger
}

// NewService creates a Service backed by db.
func NewService(db *storage.DB, logger *logging.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// SimulationSummary is one row of a search result.
type SimulationSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CircuitName string    `json:"circuit_name"`
	Description string    `json:"description,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	SeriesCount int       `json:"series_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Search returns simulations whose name, circuit name, description or any
// category contains keyword (case-insensitive). An empty keyword lists all
// simulations. Results are ordered newest first.
func (s *Service) Search(keyword string) ([]SimulationSummary, error) {
	pattern := "%" + keyword + "%"
	rows, err := s.db.Query(`
		SELECT DISTINCT s.id, s.name, s.circuit_name, s.description, s.created_at,
		       (SELECT COUNT(*) FROM data_series ds WHERE ds.simulation_id = s.id)
		FROM simulations s
		LEFT JOIN simulation_categories sc ON sc.simulation_id = s.id
		LEFT JOIN categories c ON c.id = sc.category_id
		WHERE s.name LIKE ? COLLATE NOCASE
		   OR s.circuit_name LIKE ? COLLATE NOCASE
		   OR s.description LIKE ? COLLATE NOCASE
		   OR c.name LIKE ? COLLATE NOCASE
		ORDER BY s.created_at DESC, s.id DESC`,
		pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []SimulationSummary
	for rows.Next() {
		var sum SimulationSummary
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.CircuitName, &sum.Description, &createdAt, &sum.SeriesCount); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at format: %w", err)
		}
		results = append(results, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		cats, err := s.simulationCategories(results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Categories = cats
	}
	return results, nil
}

// FixedParameter is a constant parameter of a simulation.
type FixedParameter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// SweepAxis is one swept parameter with its distinct values in ascending
// order.
type SweepAxis struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// SeriesSummary describes one data series without its points.
type SeriesSummary struct {
	ID              int64              `json:"id"`
	SignalPath      string             `json:"signal_path"`
	Position        int                `json:"position"`
	PointCount      int                `json:"point_count"`
	SweepParameters map[string]float64 `json:"sweep_parameters,omitempty"`
	Metrics         []MetricValue      `json:"metrics,omitempty"`
}

// MetricValue is one stored metric.
type MetricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// SimulationDetails is the full view of one simulation.
type SimulationDetails struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	CircuitName string           `json:"circuit_name"`
	Description string           `json:"description,omitempty"`
	VDD         *float64         `json:"vdd,omitempty"`
	VT          *float64         `json:"vt,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	ImportID    string           `json:"import_id"`
	CreatedAt   time.Time        `json:"created_at"`
	Categories  []string         `json:"categories,omitempty"`
	Fixed       []FixedParameter `json:"fixed_parameters,omitempty"`
	Axes        []SweepAxis      `json:"sweep_axes,omitempty"`
	Series      []SeriesSummary  `json:"series"`
}

// GetSimulationDetails returns the full view of one simulation, or a
// NOT_FOUND error if the id does not exist.
func (s *Service) GetSimulationDetails(id int64) (*SimulationDetails, error) {
	d := &SimulationDetails{ID: id}
	var createdAt string
	err := s.db.QueryRow(`
		SELECT name, circuit_name, description, vdd, vt, temperature, import_id, created_at
		FROM simulations WHERE id = ?`, id).
		Scan(&d.Name, &d.CircuitName, &d.Description, &d.VDD, &d.VT, &d.Temperature, &d.ImportID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.NotFound, "simulation %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation %d: %w", id, err)
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at format: %w", err)
	}

	if d.Categories, err = s.simulationCategories(id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT name, value, unit FROM fixed_parameters WHERE simulation_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p FixedParameter
		if err := rows.Scan(&p.Name, &p.Value, &p.Unit); err != nil {
			return nil, err
		}
		d.Fixed = append(d.Fixed, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if d.Axes, err = s.sweepAxes(id); err != nil {
		return nil, err
	}
	if d.Series, err = s.seriesSummaries(id); err != nil {
		return nil, err
	}
	return d, nil
}

// SeriesData is one data series with its full point set.
type SeriesData struct {
	ID              int64              `json:"id"`
	SimulationID    int64              `json:"simulation_id"`
	SimulationName  string             `json:"simulation_name"`
	SignalPath      string             `json:"signal_path"`
	Position        int                `json:"position"`
	SweepParameters map[string]float64 `json:"sweep_parameters,omitempty"`
	X               []float64          `json:"x"`
	Y               []float64          `json:"y"`
	Metrics         []MetricValue      `json:"metrics,omitempty"`
}

// GetDataSeries returns one series with its points in sequence order, or a
// NOT_FOUND error if the id does not exist.
func (s *Service) GetDataSeries(id int64) (*SeriesData, error) {
	d := &SeriesData{ID: id}
	err := s.db.QueryRow(`
		SELECT ds.simulation_id, s.name, ds.signal_path, ds.position
		FROM data_series ds
		JOIN simulations s ON s.id = ds.simulation_id
		WHERE ds.id = ?`, id).
		Scan(&d.SimulationID, &d.SimulationName, &d.SignalPath, &d.Position)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.NotFound, "data series %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load data series %d: %w", id, err)
	}

	if d.SweepParameters, err = s.sweepParameters(id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT x, y FROM data_points WHERE data_series_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var x, y float64
		if err := rows.Scan(&x, &y); err != nil {
			return nil, err
		}
		d.X = append(d.X, x)
		d.Y = append(d.Y, y)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if d.Metrics, err = s.seriesMetrics(id); err != nil {
		return nil, err
	}
	return d, nil
}

// CategoryCount is one category with the number of simulations tagged by it.
type CategoryCount struct {
	Name        string `json:"name"`
	Simulations int    `json:"simulations"`
}

// ListCategories returns all categories with usage counts, ordered by name.
func (s *Service) ListCategories() ([]CategoryCount, error) {
	rows, err := s.db.Query(`
		SELECT c.name, COUNT(sc.simulation_id)
		FROM categories c
		LEFT JOIN simulation_categories sc ON sc.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Simulations); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Service) simulationCategories(simID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT c.name FROM categories c
		JOIN simulation_categories sc ON sc.category_id = c.id
		WHERE sc.simulation_id = ?
		ORDER BY c.name`, simID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Service) sweepAxes(simID int64) ([]SweepAxis, error) {
	rows, err := s.db.Query(`
		SELECT sa.name, sav.value
		FROM sweep_axes sa
		JOIN sweep_axis_values sav ON sav.axis_id = sa.id
		WHERE sa.simulation_id = ?
		ORDER BY sa.name, sav.value`, simID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var axes []SweepAxis
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		if len(axes) == 0 || axes[len(axes)-1].Name != name {
			axes = append(axes, SweepAxis{Name: name})
		}
		last := &axes[len(axes)-1]
		last.Values = append(last.Values, value)
	}
	return axes, rows.Err()
}

func (s *Service) seriesSummaries(simID int64) ([]SeriesSummary, error) {
	rows, err := s.db.Query(`
		SELECT ds.id, ds.signal_path, ds.position,
		       (SELECT COUNT(*) FROM data_points dp WHERE dp.data_series_id = ds.id)
		FROM data_series ds
		WHERE ds.simulation_id = ?
		ORDER BY ds.position`, simID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SeriesSummary
	for rows.Next() {
		var sum SeriesSummary
		if err := rows.Scan(&sum.ID, &sum.SignalPath, &sum.Position, &sum.PointCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		var err error
		if summaries[i].SweepParameters, err = s.sweepParameters(summaries[i].ID); err != nil {
			return nil, err
		}
		if summaries[i].Metrics, err = s.seriesMetrics(summaries[i].ID); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *Service) sweepParameters(seriesID int64) (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT name, value FROM sweep_parameter_values WHERE data_series_id = ?`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := map[string]float64{}
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		params[name] = value
	}
	if len(params) == 0 {
		return nil, rows.Err()
	}
	return params, rows.Err()
}

func (s *Service) seriesMetrics(seriesID int64) ([]MetricValue, error) {
	rows, err := s.db.Query(`SELECT name, value, unit FROM metrics WHERE data_series_id = ? ORDER BY name`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ms []MetricValue
	for rows.Next() {
		var m MetricValue
		if err := rows.Scan(&m.Name, &m.Value, &m.Unit); err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}
