package query

import (
	"fmt"
)

// DefaultFilterLimit caps filter results when the caller does not set one.
const DefaultFilterLimit = 50

// MetricFilterOptions selects series by a stored metric value.
type MetricFilterOptions struct {
	// Metric is the metric name. An unknown name yields an empty result,
	// not an error.
	Metric string
	// Min and Max bound the value as a closed interval. Either side may be
	// nil for a one-sided filter.
	Min *float64
	Max *float64
	// SimulationID restricts the filter to one simulation when set.
	SimulationID *int64
	// Limit caps the result count; zero means DefaultFilterLimit.
	Limit int
}

// MetricMatch is one series matching a metric filter.
type MetricMatch struct {
	SimulationID    int64              `json:"simulation_id"`
	SimulationName  string             `json:"simulation_name"`
	DataSeriesID    int64              `json:"data_series_id"`
	SignalPath      string             `json:"signal_path"`
	Value           float64            `json:"value"`
	Unit            string             `json:"unit,omitempty"`
	SweepParameters map[string]float64 `json:"sweep_parameters,omitempty"`
}

// FilterByMetric returns series whose named metric lies within the closed
// interval [Min, Max], ordered by value ascending. Series without the metric
// never match; absent is not zero.
func (s *Service) FilterByMetric(opts MetricFilterOptions) ([]MetricMatch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFilterLimit
	}

	q := `
		SELECT m.simulation_id, s.name, m.data_series_id, ds.signal_path, m.value, m.unit
		FROM metrics m
		JOIN simulations s ON s.id = m.simulation_id
		JOIN data_series ds ON ds.id = m.data_series_id
		WHERE m.name = ?`
	args := []interface{}{opts.Metric}

	if opts.Min != nil {
		q += " AND m.value >= ?"
		args = append(args, *opts.Min)
	}
	if opts.Max != nil {
		q += " AND m.value <= ?"
		args = append(args, *opts.Max)
	}
	if opts.SimulationID != nil {
		q += " AND m.simulation_id = ?"
		args = append(args, *opts.SimulationID)
	}
	q += " ORDER BY m.value ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("metric filter failed: %w", err)
	}
	defer rows.Close()

	var matches []MetricMatch
	for rows.Next() {
		var m MetricMatch
		if err := rows.Scan(&m.SimulationID, &m.SimulationName, &m.DataSeriesID, &m.SignalPath, &m.Value, &m.Unit); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Each match carries its sweep configuration so a caller can tell which
	// parameter combination produced the value.
	for i := range matches {
		params, err := s.sweepParameters(matches[i].DataSeriesID)
		if err != nil {
			return nil, err
		}
		matches[i].SweepParameters = params
	}
	return matches, nil
}
