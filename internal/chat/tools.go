package chat

import (
	"encoding/json"
	"fmt"

	"simdb/internal/metrics"
	"simdb/internal/query"
)

// Tool names. The dispatch switch in executeTool is closed over exactly this
// set; a name outside it is rejected, never looked up dynamically.
const (
	ToolSearchSimulations    = "search_simulations"
	ToolFilterByMetric       = "filter_by_metric"
	ToolGetSimulationDetails = "get_simulation_details"
	ToolGetDataSeries        = "get_data_series"
	ToolListCategories       = "list_categories"
	ToolGetMetricStatistics  = "get_metric_statistics"
)

var metricNames = []string{metrics.ErrorPercentageName, metrics.GainName, metrics.BandwidthName}

// ToolDefinitions returns the function definitions advertised to the model.
// Each mirrors one query service operation.
func ToolDefinitions() []Tool {
	fn := func(name, description string, params map[string]interface{}) Tool {
		return Tool{Type: "function", Function: ToolFunction{Name: name, Description: description, Parameters: params}}
	}

	return []Tool{
		fn(ToolSearchSimulations,
			"Search simulations by keyword across name, circuit name, description and categories. An empty keyword lists all simulations.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"keyword": map[string]interface{}{
						"type":        "string",
						"description": "Case-insensitive substring to search for",
					},
				},
			}),
		fn(ToolFilterByMetric,
			"Find data series whose metric value lies within a closed interval, ordered by value ascending. Each result includes the sweep parameter combination that produced it.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"metric": map[string]interface{}{
						"type":        "string",
						"enum":        metricNames,
						"description": "Metric name to filter on",
					},
					"min": map[string]interface{}{
						"type":        "number",
						"description": "Inclusive lower bound; omit for no lower bound",
					},
					"max": map[string]interface{}{
						"type":        "number",
						"description": "Inclusive upper bound; omit for no upper bound",
					},
					"simulation_id": map[string]interface{}{
						"type":        "integer",
						"description": "Restrict to one simulation",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results (default 50)",
					},
				},
				"required": []string{"metric"},
			}),
		fn(ToolGetSimulationDetails,
			"Get the full view of one simulation: assumptions, categories, fixed parameters, sweep axes and every data series with its metrics.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"simulation_id": map[string]interface{}{
						"type":        "integer",
						"description": "Simulation id",
					},
				},
				"required": []string{"simulation_id"},
			}),
		fn(ToolGetDataSeries,
			"Get one data series with its full X/Y point arrays, sweep parameters and metrics.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"series_id": map[string]interface{}{
						"type":        "integer",
						"description": "Data series id",
					},
				},
				"required": []string{"series_id"},
			}),
		fn(ToolListCategories,
			"List all categories with the number of simulations tagged by each.",
			map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}),
		fn(ToolGetMetricStatistics,
			"Compute min, max, mean, median and standard deviation of a metric across all series, optionally restricted to one simulation.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"metric": map[string]interface{}{
						"type":        "string",
						"enum":        metricNames,
						"description": "Metric name to aggregate",
					},
					"simulation_id": map[string]interface{}{
						"type":        "integer",
						"description": "Restrict to one simulation",
					},
				},
				"required": []string{"metric"},
			}),
	}
}

type searchArgs struct {
	Keyword string `json:"keyword"`
}

type filterArgs struct {
	Metric       string   `json:"metric"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	SimulationID *int64   `json:"simulation_id"`
	Limit        int      `json:"limit"`
}

type simulationArgs struct {
	SimulationID int64 `json:"simulation_id"`
}

type seriesArgs struct {
	SeriesID int64 `json:"series_id"`
}

type statisticsArgs struct {
	Metric       string `json:"metric"`
	SimulationID *int64 `json:"simulation_id"`
}

// executeTool runs one tool call against the query service. The switch is
// exhaustive over the advertised tool names.
func executeTool(svc *query.Service, name string, arguments string) (interface{}, error) {
	raw := []byte(arguments)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	switch name {
	case ToolSearchSimulations:
		var args searchArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return svc.Search(args.Keyword)

	case ToolFilterByMetric:
		var args filterArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return svc.FilterByMetric(query.MetricFilterOptions{
			Metric:       args.Metric,
			Min:          args.Min,
			Max:          args.Max,
			SimulationID: args.SimulationID,
			Limit:        args.Limit,
		})

	case ToolGetSimulationDetails:
		var args simulationArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return svc.GetSimulationDetails(args.SimulationID)

	case ToolGetDataSeries:
		var args seriesArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return svc.GetDataSeries(args.SeriesID)

	case ToolListCategories:
		return svc.ListCategories()

	case ToolGetMetricStatistics:
		var args statisticsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return svc.GetMetricStatistics(args.Metric, args.SimulationID)

	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}
