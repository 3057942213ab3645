package query

import (
	"fmt"
	"math"
	"sort"
)

// MetricStatistics summarizes the distribution of one metric. The aggregate
// fields are nil when no series carries the metric; zero would misreport an
// empty population.
type MetricStatistics struct {
	Metric string   `json:"metric"`
	Count  int      `json:"count"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	StdDev *float64 `json:"std_dev,omitempty"`
	Unit   string   `json:"unit,omitempty"`
}

// GetMetricStatistics computes min, max, mean, median and population
// standard deviation for the named metric, optionally restricted to one
// simulation. The values are loaded and aggregated in Go so the median and
// deviation come from the same pass.
func (s *Service) GetMetricStatistics(metric string, simulationID *int64) (*MetricStatistics, error) {
	q := `SELECT value, unit FROM metrics WHERE name = ?`
	args := []interface{}{metric}
	if simulationID != nil {
		q += ` AND simulation_id = ?`
		args = append(args, *simulationID)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("metric statistics query failed: %w", err)
	}
	defer rows.Close()

	stats := &MetricStatistics{Metric: metric}
	var values []float64
	for rows.Next() {
		var v float64
		var unit string
		if err := rows.Scan(&v, &unit); err != nil {
			return nil, err
		}
		values = append(values, v)
		stats.Unit = unit
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.Count = len(values)
	if stats.Count == 0 {
		return stats, nil
	}

	sort.Float64s(values)

	min, max := values[0], values[len(values)-1]
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var median float64
	mid := len(values) / 2
	if len(values)%2 == 0 {
		median = (values[mid-1] + values[mid]) / 2
	} else {
		median = values[mid]
	}

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(values)))

	stats.Min = &min
	stats.Max = &max
	stats.Mean = &mean
	stats.Median = &median
	stats.StdDev = &stddev
	return stats, nil
}
