package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"covid-waves/internal/models"
	"covid-waves/internal/repository"
	"covid-waves/internal/services"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// CovidHandler serves the derived metric tables
type CovidHandler struct {
	service *services.MetricsService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	nextID  atomic.Uint64
}

// NewCovidHandler creates a new handler
func NewCovidHandler(service *services.MetricsService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CovidHandler {
	return &CovidHandler{
		service: service,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ListResponse wraps a list with its length
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// ListRegions handles GET /api/regions
func (h *CovidHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/regions"
	defer h.observe(endpoint, time.Now())

	regions, err := h.service.Regions(r.Context())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, ListResponse{Data: regions, Count: len(regions)}, http.StatusOK)
}

// ListDates handles GET /api/dates
func (h *CovidHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dates"
	defer h.observe(endpoint, time.Now())

	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	dates, err := h.service.Dates(r.Context(), period)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, ListResponse{Data: dates, Count: len(dates)}, http.StatusOK)
}

// GetDailyMap handles GET /api/daily
func (h *CovidHandler) GetDailyMap(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/daily"
	defer h.observe(endpoint, time.Now())

	q := r.URL.Query()
	m, err := h.service.DailyMap(r.Context(), q.Get("date"), q.Get("metric"))
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, m, http.StatusOK)
}

// GetWeeklyMap handles GET /api/weekly
func (h *CovidHandler) GetWeeklyMap(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weekly"
	defer h.observe(endpoint, time.Now())

	q := r.URL.Query()
	m, err := h.service.WeeklyMap(r.Context(), q.Get("week"), q.Get("metric"))
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, m, http.StatusOK)
}

// GetRegionSeries handles GET /api/regions/{nuts_id}/series
func (h *CovidHandler) GetRegionSeries(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/regions/{nuts_id}/series"
	defer h.observe(endpoint, time.Now())

	q := r.URL.Query()
	period, err := models.ParsePeriod(q.Get("period"))
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	s, err := h.service.Series(r.Context(), mux.Vars(r)["nuts_id"], period, q.Get("start"), q.Get("end"))
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, s, http.StatusOK)
}

// ListMetrics handles GET /api/metrics
func (h *CovidHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Catalog()
	h.metrics.RecordAPIRequest("/api/metrics", r.Method, "200")
	h.sendJSON(w, ListResponse{Data: catalog, Count: len(catalog)}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *CovidHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.service.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Backing store unavailable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// RequestID tags each request context with the X-Request-ID header, or a
// generated id when the header is absent, and echoes it in the response
func (h *CovidHandler) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(h.nextID.Add(1), 36)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (h *CovidHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// handleError maps service errors to status codes
func (h *CovidHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *repository.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, endpoint, notFoundErr.Error(), http.StatusNotFound)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"query":    r.URL.RawQuery,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "failed to retrieve data", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *CovidHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *CovidHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all API routes
func (h *CovidHandler) RegisterRoutes(router *mux.Router) {
	router.Use(h.RequestID)

	router.HandleFunc("/api/regions", h.ListRegions).Methods("GET")
	router.HandleFunc("/api/regions/{nuts_id}/series", h.GetRegionSeries).Methods("GET")
	router.HandleFunc("/api/dates", h.ListDates).Methods("GET")
	router.HandleFunc("/api/daily", h.GetDailyMap).Methods("GET")
	router.HandleFunc("/api/weekly", h.GetWeeklyMap).Methods("GET")
	router.HandleFunc("/api/metrics", h.ListMetrics).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
