package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"simdb/internal/query"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatJSON, FormatHuman:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatSummaries(results []query.SimulationSummary) string {
	if len(results) == 0 {
		return "No simulations found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-28s %-32s %-8s %s\n", "ID", "NAME", "CIRCUIT", "SERIES", "CATEGORIES")
	for _, r := range results {
		fmt.Fprintf(&b, "%-6d %-28s %-32s %-8d %s\n",
			r.ID, truncate(r.Name, 28), truncate(r.CircuitName, 32), r.SeriesCount,
			strings.Join(r.Categories, ", "))
	}
	return b.String()
}

func formatDetails(d *query.SimulationDetails) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Simulation %d: %s\n", d.ID, d.Name)
	fmt.Fprintf(&b, "  Circuit:     %s\n", d.CircuitName)
	if d.Description != "" {
		fmt.Fprintf(&b, "  Description: %s\n", d.Description)
	}
	if len(d.Categories) > 0 {
		fmt.Fprintf(&b, "  Categories:  %s\n", strings.Join(d.Categories, ", "))
	}
	if d.VDD != nil {
		fmt.Fprintf(&b, "  VDD:         %g V\n", *d.VDD)
	}
	if d.VT != nil {
		fmt.Fprintf(&b, "  VT:          %g V\n", *d.VT)
	}
	if d.Temperature != nil {
		fmt.Fprintf(&b, "  Temperature: %g C\n", *d.Temperature)
	}
	fmt.Fprintf(&b, "  Imported:    %s (import %s)\n", d.CreatedAt.Format("2006-01-02 15:04:05"), d.ImportID)

	if len(d.Fixed) > 0 {
		b.WriteString("\nFixed parameters:\n")
		for _, p := range d.Fixed {
			fmt.Fprintf(&b, "  %s = %g %s\n", p.Name, p.Value, p.Unit)
		}
	}
	if len(d.Axes) > 0 {
		b.WriteString("\nSweep axes:\n")
		for _, a := range d.Axes {
			fmt.Fprintf(&b, "  %s: %s\n", a.Name, joinFloats(a.Values))
		}
	}

	fmt.Fprintf(&b, "\nSeries (%d):\n", len(d.Series))
	for _, s := range d.Series {
		fmt.Fprintf(&b, "  [%d] %s (%d points)", s.ID, s.SignalPath, s.PointCount)
		if len(s.SweepParameters) > 0 {
			fmt.Fprintf(&b, " %s", formatParams(s.SweepParameters))
		}
		b.WriteString("\n")
		for _, m := range s.Metrics {
			fmt.Fprintf(&b, "      %s = %g %s\n", m.Name, m.Value, m.Unit)
		}
	}
	return b.String()
}

func formatSeries(d *query.SeriesData, maxPoints int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Series %d: %s (simulation %d: %s)\n", d.ID, d.SignalPath, d.SimulationID, d.SimulationName)
	if len(d.SweepParameters) > 0 {
		fmt.Fprintf(&b, "  Sweep: %s\n", formatParams(d.SweepParameters))
	}
	for _, m := range d.Metrics {
		fmt.Fprintf(&b, "  %s = %g %s\n", m.Name, m.Value, m.Unit)
	}

	n := len(d.X)
	shown := n
	if maxPoints > 0 && shown > maxPoints {
		shown = maxPoints
	}
	fmt.Fprintf(&b, "\nPoints (%d of %d):\n", shown, n)
	for i := 0; i < shown; i++ {
		fmt.Fprintf(&b, "  %-4d %-16g %g\n", i, d.X[i], d.Y[i])
	}
	if shown < n {
		fmt.Fprintf(&b, "  ... %d more\n", n-shown)
	}
	return b.String()
}

func formatCategories(cats []query.CategoryCount) string {
	if len(cats) == 0 {
		return "No categories.\n"
	}
	var b strings.Builder
	for _, c := range cats {
		fmt.Fprintf(&b, "%-32s %d simulation(s)\n", c.Name, c.Simulations)
	}
	return b.String()
}

func formatStatistics(stats *query.MetricStatistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Metric %s: %d value(s)\n", stats.Metric, stats.Count)
	if stats.Count == 0 {
		return b.String()
	}
	unit := stats.Unit
	fmt.Fprintf(&b, "  min:    %g %s\n", *stats.Min, unit)
	fmt.Fprintf(&b, "  max:    %g %s\n", *stats.Max, unit)
	fmt.Fprintf(&b, "  mean:   %g %s\n", *stats.Mean, unit)
	fmt.Fprintf(&b, "  median: %g %s\n", *stats.Median, unit)
	fmt.Fprintf(&b, "  stddev: %g %s\n", *stats.StdDev, unit)
	return b.String()
}

func formatMatches(matches []query.MetricMatch) string {
	if len(matches) == 0 {
		return "No matches.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-14s %-24s %-10s %s\n", "SERIES", "VALUE", "SIGNAL", "SIM", "SWEEP")
	for _, m := range matches {
		fmt.Fprintf(&b, "%-8d %-14g %-24s %-10d %s\n",
			m.DataSeriesID, m.Value, truncate(m.SignalPath, 24), m.SimulationID,
			formatParams(m.SweepParameters))
	}
	return b.String()
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, params[name])
	}
	return strings.Join(parts, ", ")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
