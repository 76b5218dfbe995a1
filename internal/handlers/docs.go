package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Lake Balance API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}

func openAPIDocument() map[string]interface{} {
	number := map[string]string{"type": "number"}
	nullableNumber := map[string]interface{}{"type": "number", "nullable": true}
	integer := map[string]string{"type": "integer"}
	str := map[string]string{"type": "string"}
	numberArray := map[string]interface{}{"type": "array", "items": number}

	observation := object(map[string]interface{}{
		"period":          map[string]interface{}{"type": "string", "nullable": true, "description": "YYYYMM"},
		"volume":          nullableNumber,
		"area":            nullableNumber,
		"solar_exposure":  nullableNumber,
		"rainfall":        nullableNumber,
		"max_temperature": nullableNumber,
		"min_temperature": nullableNumber,
		"humidity":        nullableNumber,
		"wind_speed":      nullableNumber,
	})

	imputation := object(map[string]interface{}{
		"records":           integer,
		"temperature_swaps": integer,
		"periods_padded":    integer,
		"periods_replaced":  integer,
		"imputed":           map[string]interface{}{"type": "object", "additionalProperties": integer},
	})

	modelRun := object(map[string]interface{}{
		"id":                  map[string]string{"type": "string", "format": "uuid"},
		"lake_id":             str,
		"model":               map[string]interface{}{"type": "string", "enum": []string{"simple", "complex"}},
		"evaporation_rate":    number,
		"mean_absolute_error": number,
		"predicted_volumes":   numberArray,
		"created_at":          map[string]string{"type": "string", "format": "date-time"},
	})

	modelResult := object(map[string]interface{}{
		"run":              modelRun,
		"observed_volumes": numberArray,
		"simulation": object(map[string]interface{}{
			"volumes":           numberArray,
			"surface_area":      numberArray,
			"rainfall_received": numberArray,
			"evaporated":        numberArray,
		}),
		"imputation": imputation,
	})

	lakeID := map[string]interface{}{
		"name":        "lake_id",
		"in":          "path",
		"description": "Lake identifier (letters, digits, '-' and '_')",
		"required":    true,
		"schema":      str,
	}
	evaporationRate := map[string]interface{}{
		"name":        "evaporation_rate",
		"in":          "query",
		"description": "Constant evaporation rate per unit area (default from configuration)",
		"required":    false,
		"schema":      number,
	}

	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Lake Balance API",
			"description": "Monthly lake water-balance modelling: observation ingestion, cleaning, statistics and model evaluation",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/lakes": map[string]interface{}{
				"get": operation("List lakes", "Lakes with a stored observation series", nil,
					jsonResponse("Stored lakes", object(map[string]interface{}{
						"data": map[string]interface{}{"type": "array", "items": object(map[string]interface{}{
							"lake_id":           str,
							"observation_count": integer,
							"updated_at":        map[string]string{"type": "string", "format": "date-time"},
						})},
						"total": integer,
					}))),
			},
			"/api/lakes/{lake_id}/observations": map[string]interface{}{
				"post": created(withBody(operation("Upload observations",
					"Replace the lake's series with a CSV of date, volume, area, solar_exposure, rainfall, max_temperature, min_temperature, humidity and wind_speed columns",
					[]map[string]interface{}{lakeID},
					jsonResponse("Series stored", object(map[string]interface{}{
						"lake_id":       str,
						"total_records": integer,
						"cell_errors":   integer,
						"warnings":      str,
					}))))),
				"get": operation("Get observations", "The stored series, or a cleaned copy when cleaned=true",
					[]map[string]interface{}{lakeID, {
						"name":        "cleaned",
						"in":          "query",
						"description": "Return the series after validation and imputation",
						"required":    false,
						"schema":      map[string]interface{}{"type": "boolean", "default": false},
					}},
					jsonResponse("Observation series", object(map[string]interface{}{
						"lake_id":      str,
						"cleaned":      map[string]string{"type": "boolean"},
						"observations": map[string]interface{}{"type": "array", "items": observation},
						"imputation":   imputation,
					}))),
			},
			"/api/lakes/{lake_id}/statistics": map[string]interface{}{
				"get": operation("Get statistics", "Aggregates over the cleaned series",
					[]map[string]interface{}{lakeID},
					jsonResponse("Lake summary", object(map[string]interface{}{
						"lake_id":               str,
						"months":                integer,
						"largest_area":          number,
						"average_volume":        number,
						"most_average_rainfall": str,
						"hottest_month":         str,
						"changes": map[string]interface{}{"type": "array", "items": object(map[string]interface{}{
							"period":                   str,
							"area_from_initial_pct":    number,
							"volume_from_initial_pct":  number,
							"area_from_previous_pct":   number,
							"volume_from_previous_pct": number,
						})},
						"imputation": imputation,
					}))),
			},
			"/api/lakes/{lake_id}/models/simple": map[string]interface{}{
				"post": created(operation("Run simple model", "Constant evaporation rate model, evaluated and recorded",
					[]map[string]interface{}{lakeID, evaporationRate},
					jsonResponse("Model run", modelResult))),
			},
			"/api/lakes/{lake_id}/models/complex": map[string]interface{}{
				"post": created(operation("Run complex model", "Weather-driven evaporation model, evaluated and recorded",
					[]map[string]interface{}{lakeID},
					jsonResponse("Model run", modelResult))),
			},
			"/api/lakes/{lake_id}/models/compare": map[string]interface{}{
				"post": created(operation("Compare models", "Run both models over the same cleaned series",
					[]map[string]interface{}{lakeID, evaporationRate},
					jsonResponse("Both runs", object(map[string]interface{}{
						"lake_id": str,
						"simple":  modelResult,
						"complex": modelResult,
						"better":  map[string]interface{}{"type": "string", "enum": []string{"simple", "complex"}},
					})))),
			},
			"/api/lakes/{lake_id}/runs": map[string]interface{}{
				"get": operation("List model runs", "Recorded runs for a lake, newest first",
					[]map[string]interface{}{
						lakeID,
						{
							"name":        "model",
							"in":          "query",
							"description": "Filter by model",
							"required":    false,
							"schema":      map[string]interface{}{"type": "string", "enum": []string{"simple", "complex"}},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100},
						},
					},
					jsonResponse("Paginated runs", object(map[string]interface{}{
						"data":        map[string]interface{}{"type": "array", "items": modelRun},
						"total":       integer,
						"page":        integer,
						"limit":       integer,
						"total_pages": integer,
					}))),
			},
			"/health": map[string]interface{}{
				"get": operation("Health check", "Check the API and its repository", nil,
					jsonResponse("API is healthy", object(map[string]interface{}{
						"status":    str,
						"timestamp": str,
					}))),
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{"schema": str},
							},
						},
					},
				},
			},
		},
	}
}

func object(properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": properties}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

// operation builds a path operation. Every operation may answer with the
// shared error body.
func operation(summary, description string, params []map[string]interface{}, ok map[string]interface{}) map[string]interface{} {
	errorResponse := jsonResponse("Error", object(map[string]interface{}{
		"error":      map[string]string{"type": "string"},
		"message":    map[string]string{"type": "string"},
		"code":       map[string]string{"type": "integer"},
		"request_id": map[string]string{"type": "string"},
	}))

	op := map[string]interface{}{
		"summary":     summary,
		"description": description,
		"responses": map[string]interface{}{
			"200":     ok,
			"default": errorResponse,
		},
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

// withBody marks an operation as taking a CSV body.
func withBody(op map[string]interface{}) map[string]interface{} {
	op["requestBody"] = map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"text/csv": map[string]interface{}{"schema": map[string]string{"type": "string"}},
		},
	}
	return op
}

// created moves an operation's success response to 201.
func created(op map[string]interface{}) map[string]interface{} {
	responses := op["responses"].(map[string]interface{})
	responses["201"] = responses["200"]
	delete(responses, "200")
	return op
}
