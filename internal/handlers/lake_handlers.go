package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"lake-balance/internal/cleaning"
	"lake-balance/internal/models"
	"lake-balance/internal/repository"
	"lake-balance/internal/services"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

// MaxUploadBytes bounds a CSV upload body.
const MaxUploadBytes = 10 << 20

// LakeHandler handles lake API endpoints
type LakeHandler struct {
	repo             repository.LakeRepository
	ingestionService *services.IngestionService
	statsService     *services.StatisticsService
	modelService     *services.ModelService
	logger           *logging.StructuredLogger
	metrics          *metrics.Collector
}

// NewLakeHandler creates a new lake handler
func NewLakeHandler(
	repo repository.LakeRepository,
	ingestionService *services.IngestionService,
	statsService *services.StatisticsService,
	modelService *services.ModelService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *LakeHandler {
	return &LakeHandler{
		repo:             repo,
		ingestionService: ingestionService,
		statsService:     statsService,
		modelService:     modelService,
		logger:           logger,
		metrics:          metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ObservationsResponse is a lake's series as stored, or cleaned on request.
type ObservationsResponse struct {
	LakeID       string                     `json:"lake_id"`
	Cleaned      bool                       `json:"cleaned"`
	Observations []*models.Observation      `json:"observations"`
	Imputation   *cleaning.ImputationReport `json:"imputation,omitempty"`
}

// ListLakes handles GET /api/lakes
func (h *LakeHandler) ListLakes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lakes, err := h.repo.ListLakes(ctx)
	if err != nil {
		h.handleError(w, r, "/api/lakes", "failed to list lakes", err)
		return
	}

	h.sendJSON(w, map[string]interface{}{"data": lakes, "total": len(lakes)}, http.StatusOK)
}

// UploadObservations handles POST /api/lakes/{lake_id}/observations.
// The CSV body replaces the lake's stored series.
func (h *LakeHandler) UploadObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const endpoint = "/api/lakes/{lake_id}/observations"
	lakeID := mux.Vars(r)["lake_id"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		h.handleError(w, r, endpoint, "failed to read request body", err)
		return
	}

	result, err := h.ingestionService.IngestReader(ctx, lakeID, bytes.NewReader(body))
	if err != nil {
		h.handleError(w, r, endpoint, "failed to ingest observations", err)
		return
	}

	h.sendJSON(w, result, http.StatusCreated)
}

// GetObservations handles GET /api/lakes/{lake_id}/observations
func (h *LakeHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const endpoint = "/api/lakes/{lake_id}/observations"
	lakeID := mux.Vars(r)["lake_id"]

	cleaned := false
	if v := r.URL.Query().Get("cleaned"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.sendError(w, r, "invalid cleaned, expected true or false", http.StatusBadRequest)
			return
		}
		cleaned = b
	}

	series, err := h.repo.ListObservations(ctx, lakeID)
	if err != nil {
		h.handleError(w, r, endpoint, "failed to retrieve observations", err)
		return
	}

	response := ObservationsResponse{LakeID: lakeID, Observations: series}
	if cleaned {
		repaired, report := cleaning.ValidateAndImputeReport(models.CloneSeries(series))
		response.Cleaned = true
		response.Observations = repaired
		response.Imputation = &report
	}

	h.sendJSON(w, response, http.StatusOK)
}

// GetStatistics handles GET /api/lakes/{lake_id}/statistics
func (h *LakeHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	lakeID := mux.Vars(r)["lake_id"]

	summary, err := h.statsService.LakeSummary(r.Context(), lakeID)
	if err != nil {
		h.handleError(w, r, "/api/lakes/{lake_id}/statistics", "failed to summarize lake", err)
		return
	}

	h.sendJSON(w, summary, http.StatusOK)
}

// RunSimpleModel handles POST /api/lakes/{lake_id}/models/simple
func (h *LakeHandler) RunSimpleModel(w http.ResponseWriter, r *http.Request) {
	lakeID := mux.Vars(r)["lake_id"]

	rate, ok := h.evaporationRate(w, r)
	if !ok {
		return
	}

	result, err := h.modelService.RunSimple(r.Context(), lakeID, rate)
	if err != nil {
		h.handleError(w, r, "/api/lakes/{lake_id}/models/simple", "failed to run simple model", err)
		return
	}

	h.sendJSON(w, result, http.StatusCreated)
}

// RunComplexModel handles POST /api/lakes/{lake_id}/models/complex
func (h *LakeHandler) RunComplexModel(w http.ResponseWriter, r *http.Request) {
	lakeID := mux.Vars(r)["lake_id"]

	result, err := h.modelService.RunComplex(r.Context(), lakeID)
	if err != nil {
		h.handleError(w, r, "/api/lakes/{lake_id}/models/complex", "failed to run complex model", err)
		return
	}

	h.sendJSON(w, result, http.StatusCreated)
}

// CompareModels handles POST /api/lakes/{lake_id}/models/compare
func (h *LakeHandler) CompareModels(w http.ResponseWriter, r *http.Request) {
	lakeID := mux.Vars(r)["lake_id"]

	rate, ok := h.evaporationRate(w, r)
	if !ok {
		return
	}

	comparison, err := h.modelService.Compare(r.Context(), lakeID, rate)
	if err != nil {
		h.handleError(w, r, "/api/lakes/{lake_id}/models/compare", "failed to compare models", err)
		return
	}

	h.sendJSON(w, comparison, http.StatusCreated)
}

// GetRuns handles GET /api/lakes/{lake_id}/runs
func (h *LakeHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	lakeID := mux.Vars(r)["lake_id"]
	page, limit := pagination(r)

	filter := repository.ModelRunFilter{
		LakeID: &lakeID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if v := r.URL.Query().Get("model"); v != "" {
		kind := models.ModelKind(v)
		if !kind.Valid() {
			h.sendError(w, r, "invalid model, expected simple or complex", http.StatusBadRequest)
			return
		}
		filter.Model = &kind
	}

	runs, total, err := h.modelService.GetRuns(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, "/api/lakes/{lake_id}/runs", "failed to retrieve model runs", err)
		return
	}

	h.sendJSON(w, PaginatedResponse{
		Data:       runs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *LakeHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.repo.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Repository unavailable", logging.Fields{"error": err.Error()})
		status["status"] = "unhealthy"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// evaporationRate reads ?evaporation_rate=, falling back to the configured
// default. It writes a 400 and returns false on a bad value.
func (h *LakeHandler) evaporationRate(w http.ResponseWriter, r *http.Request) (float64, bool) {
	v := r.URL.Query().Get("evaporation_rate")
	if v == "" {
		return h.modelService.DefaultEvaporationRate(), true
	}

	rate, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		h.sendError(w, r, "invalid evaporation_rate, expected a finite number", http.StatusBadRequest)
		return 0, false
	}
	return rate, true
}

func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}

// handleError maps service errors onto status codes. Only unexpected errors
// are logged.
func (h *LakeHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint, message string, err error) {
	var (
		notFound   *repository.NotFoundError
		validation *models.ValidationError
		period     *models.InvalidPeriodError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &tooLarge):
		h.metrics.RecordAPIError("too_large", endpoint)
		h.sendError(w, r, "request body too large", http.StatusRequestEntityTooLarge)
	case errors.As(err, &validation), errors.As(err, &period), errors.Is(err, models.ErrInvalidArgument):
		h.metrics.RecordAPIError("bad_request", endpoint)
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] "+message, logging.Fields{
			"endpoint": endpoint,
			"lake_id":  mux.Vars(r)["lake_id"],
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, message, http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *LakeHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	writeJSON(w, data, statusCode)
}

// sendError sends an error response
func (h *LakeHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	response := errorBody(statusCode, message)
	if id, ok := logging.RequestIDFromContext(r.Context()); ok {
		response.RequestID = id
	}
	writeJSON(w, response, statusCode)
}

func errorBody(statusCode int, message string) ErrorResponse {
	return ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// RegisterRoutes registers all lake API routes, the API docs and the request
// middleware
func (h *LakeHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestID, Instrument(h.logger, h.metrics))

	router.HandleFunc("/api/lakes", h.ListLakes).Methods("GET")
	router.HandleFunc("/api/lakes/{lake_id}/observations", h.UploadObservations).Methods("POST")
	router.HandleFunc("/api/lakes/{lake_id}/observations", h.GetObservations).Methods("GET")
	router.HandleFunc("/api/lakes/{lake_id}/statistics", h.GetStatistics).Methods("GET")
	router.HandleFunc("/api/lakes/{lake_id}/models/simple", h.RunSimpleModel).Methods("POST")
	router.HandleFunc("/api/lakes/{lake_id}/models/complex", h.RunComplexModel).Methods("POST")
	router.HandleFunc("/api/lakes/{lake_id}/models/compare", h.CompareModels).Methods("POST")
	router.HandleFunc("/api/lakes/{lake_id}/runs", h.GetRuns).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}
