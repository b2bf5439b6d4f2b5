package handlers

import (
	"encoding/json"
	"net/http"

	"covid-waves/internal/models"
)

func queryParam(name, description string, required bool, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func dateSchema() map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date"}
}

func enumSchema(values []string, def string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values, "default": def}
}

func jsonResponse(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + schemaRef},
			},
		},
	}
}

func numberProperties(names ...string) map[string]interface{} {
	props := make(map[string]interface{}, len(names))
	for _, n := range names {
		props[n] = map[string]interface{}{"type": "number", "description": "-1 when no data is available"}
	}
	return props
}

var errorResponses = map[string]interface{}{
	"400": jsonResponse("Invalid query parameter", "Error"),
	"404": jsonResponse("No data for the requested date or region", "Error"),
	"500": jsonResponse("Internal server error", "Error"),
}

func withErrors(ok map[string]interface{}) map[string]interface{} {
	responses := map[string]interface{}{"200": ok}
	for code, r := range errorResponses {
		responses[code] = r
	}
	return responses
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	periods := []string{string(models.PeriodDaily), string(models.PeriodWeekly)}
	dailyMetrics := []string{
		models.MetricCases, models.MetricCasesPop, models.MetricMoving7dPop,
		models.MetricMoving14dPop, models.MetricMoving28dPop, models.MetricCumulatedPop,
	}
	weeklyMetrics := []string{
		models.MetricCasesW, models.MetricCasesPopW, models.MetricMoving4wPop,
		models.MetricMoving8wPop, models.MetricCumulatedPopW,
	}

	dailyRecord := numberProperties(dailyMetrics...)
	dailyRecord["country"] = map[string]string{"type": "string"}
	dailyRecord["nuts_id"] = map[string]string{"type": "string"}
	dailyRecord["nuts_name"] = map[string]string{"type": "string"}
	dailyRecord["date"] = map[string]string{"type": "string", "format": "date"}
	dailyRecord["population"] = map[string]interface{}{"type": "integer", "nullable": true}

	weeklyRecord := numberProperties(weeklyMetrics...)
	weeklyRecord["country"] = map[string]string{"type": "string"}
	weeklyRecord["nuts_id"] = map[string]string{"type": "string"}
	weeklyRecord["nuts_name"] = map[string]string{"type": "string"}
	weeklyRecord["date"] = map[string]interface{}{"type": "string", "format": "date", "description": "Monday starting the week"}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "COVID Waves API",
			"description": "Cleaned, gap-filled and aggregated European regional COVID-19 case metrics per NUTS-3 region",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/regions": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "List regions",
					"responses": withErrors(jsonResponse("Regions ordered by NUTS id", "List")),
				},
			},
			"/api/dates": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List available dates",
					"parameters": []map[string]interface{}{
						queryParam("period", "Daily dates or weekly Mondays", false, enumSchema(periods, "daily")),
					},
					"responses": withErrors(jsonResponse("Dates in ascending order", "List")),
				},
			},
			"/api/daily": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "One daily metric for every region",
					"description": "Returns (nuts_id, date, value) tuples for one choropleth frame plus the full records",
					"parameters": []map[string]interface{}{
						queryParam("date", "Date (YYYY-MM-DD)", true, dateSchema()),
						queryParam("metric", "Daily metric", false, enumSchema(dailyMetrics, models.MetricMoving14dPop)),
					},
					"responses": withErrors(jsonResponse("Metric map", "MetricMap")),
				},
			},
			"/api/weekly": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "One weekly metric for every region",
					"description": "Any date selects the Monday-started week containing it",
					"parameters": []map[string]interface{}{
						queryParam("week", "Any date in the week (YYYY-MM-DD)", true, dateSchema()),
						queryParam("metric", "Weekly metric", false, enumSchema(weeklyMetrics, models.MetricMoving4wPop)),
					},
					"responses": withErrors(jsonResponse("Metric map", "MetricMap")),
				},
			},
			"/api/regions/{nuts_id}/series": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Time series of one region",
					"parameters": []map[string]interface{}{
						{
							"name":     "nuts_id",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string"},
						},
						queryParam("period", "Daily or weekly records", false, enumSchema(periods, "daily")),
						queryParam("start", "First date, inclusive", false, dateSchema()),
						queryParam("end", "Last date, inclusive", false, dateSchema()),
					},
					"responses": withErrors(jsonResponse("Records in date order", "Series")),
				},
			},
			"/api/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Metric names, periods and captions",
					"responses": map[string]interface{}{"200": jsonResponse("Metric catalog", "List")},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Service and database are healthy"},
						"503": map[string]string{"description": "Database unavailable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Metrics in Prometheus text format",
							"content":     map[string]interface{}{"text/plain": map[string]interface{}{}},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"DailyRecord":  map[string]interface{}{"type": "object", "properties": dailyRecord},
				"WeeklyRecord": map[string]interface{}{"type": "object", "properties": weeklyRecord},
				"MetricValue": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"nuts_id": map[string]string{"type": "string"},
						"date":    map[string]string{"type": "string", "format": "date"},
						"value":   map[string]interface{}{"type": "number", "description": "-1 when no data is available"},
					},
				},
				"MetricMap": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"metric":      map[string]string{"type": "string"},
						"description": map[string]string{"type": "string"},
						"period":      map[string]interface{}{"type": "string", "enum": periods},
						"date":        map[string]string{"type": "string", "format": "date"},
						"values":      map[string]interface{}{"type": "array", "items": map[string]string{"$ref": "#/components/schemas/MetricValue"}},
						"records":     map[string]interface{}{"type": "array", "items": map[string]interface{}{}},
					},
				},
				"Series": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"nuts_id": map[string]string{"type": "string"},
						"period":  map[string]interface{}{"type": "string", "enum": periods},
						"count":   map[string]string{"type": "integer"},
						"records": map[string]interface{}{"type": "array", "items": map[string]interface{}{}},
					},
				},
				"List": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data":  map[string]interface{}{"type": "array", "items": map[string]interface{}{}},
						"count": map[string]string{"type": "integer"},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
