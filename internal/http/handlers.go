package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/degraded"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/lifecycle"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/overload"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/provider"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/service"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/validation"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	StartTime            time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service          *service.Service
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(svc *service.Service, healthConfig *HealthConfig, logger *zap.Logger, rateLimiter *rate.Limiter) *Handler {
	return &Handler{
		service:      svc,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
	}
}

// probabilityRequest is the body of POST /weather/probability.
type probabilityRequest struct {
	Latitude   *float64                 `json:"latitude"`
	Longitude  *float64                 `json:"longitude"`
	DayOfYear  string                   `json:"day_of_year"`
	Conditions []models.Condition       `json:"conditions,omitempty"`
	Unit       models.TemperatureUnit   `json:"unit,omitempty"`
	Thresholds *models.CustomThresholds `json:"thresholds,omitempty"`
	YearsRange int                      `json:"years_range,omitempty"`
}

// PostProbability handles POST /weather/probability.
func (h *Handler) PostProbability(w http.ResponseWriter, r *http.Request) {
	var req probabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "latitude and longitude are required")
		return
	}
	for _, c := range req.Conditions {
		if !c.Valid() {
			writeError(w, r, http.StatusBadRequest, "INVALID_CONDITION", "unknown condition: "+string(c))
			return
		}
	}
	if req.Unit != "" && !req.Unit.Valid() {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNIT", "unit must be celsius or fahrenheit")
		return
	}

	result, err := h.service.GetProbabilities(r.Context(), service.ProbabilityQuery{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		DayOfYear:  req.DayOfYear,
		Conditions: req.Conditions,
		Unit:       req.Unit,
		Custom:     req.Thresholds,
		YearsRange: req.YearsRange,
	})
	if err != nil {
		if !isClientError(err) {
			degraded.RecordError()
		}
		writeServiceError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetFuture handles GET /weather/future/{latitude}/{longitude}.
func (h *Handler) GetFuture(w http.ResponseWriter, r *http.Request) {
	latitude, longitude, ok := pathCoordinates(w, r)
	if !ok {
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_HORIZON", "days must be an integer")
			return
		}
		days = parsed
	}
	unit := models.TemperatureUnit(r.URL.Query().Get("unit"))
	if unit != "" && !unit.Valid() {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNIT", "unit must be celsius or fahrenheit")
		return
	}

	result, err := h.service.GetFuturePredictions(r.Context(), latitude, longitude, days, unit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetModelMetrics handles GET /weather/model-metrics/{latitude}/{longitude}.
func (h *Handler) GetModelMetrics(w http.ResponseWriter, r *http.Request) {
	latitude, longitude, ok := pathCoordinates(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetModelMetrics(r.Context(), latitude, longitude)
	if err != nil {
		if errors.Is(err, service.ErrModelNotTrained) {
			writeError(w, r, http.StatusNotFound, "MODEL_NOT_TRAINED", "no trained model for this location")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DeleteCache handles DELETE /weather/cache. With latitude and longitude query
// parameters it clears one location; without them it clears everything.
func (h *Handler) DeleteCache(w http.ResponseWriter, r *http.Request) {
	rawLat := r.URL.Query().Get("latitude")
	rawLon := r.URL.Query().Get("longitude")

	var latitude, longitude *float64
	if rawLat != "" || rawLon != "" {
		if rawLat == "" || rawLon == "" {
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "latitude and longitude must be provided together")
			return
		}
		lat, errLat := strconv.ParseFloat(rawLat, 64)
		lon, errLon := strconv.ParseFloat(rawLon, 64)
		if errLat != nil || errLon != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "latitude and longitude must be numbers")
			return
		}
		latitude, longitude = &lat, &lon
	}

	cleared, err := h.service.ClearCache(r.Context(), latitude, longitude)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": cleared,
	})
}

// GetCacheInfo handles GET /weather/cache.
func (h *Handler) GetCacheInfo(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetCacheInfo(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["provider"] = "unhealthy"
	} else {
		checks["provider"] = "healthy"
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-probability-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates lifecycle conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
	if float64(overload.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errCount, total := degraded.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errCount) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// pathCoordinates parses {latitude}/{longitude} path variables, writing a 400
// on failure.
func pathCoordinates(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	vars := mux.Vars(r)
	latitude, errLat := strconv.ParseFloat(vars["latitude"], 64)
	longitude, errLon := strconv.ParseFloat(vars["longitude"], 64)
	if errLat != nil || errLon != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "latitude and longitude must be numbers")
		return 0, 0, false
	}
	return latitude, longitude, true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// isClientError reports whether err is a request-validation failure rather
// than a service-side fault.
func isClientError(err error) bool {
	return errors.Is(err, validation.ErrLatitudeOutOfRange) ||
		errors.Is(err, validation.ErrLongitudeOutOfRange) ||
		errors.Is(err, validation.ErrInvalidDateSpec) ||
		errors.Is(err, validation.ErrHorizonOutOfRange)
}

// writeServiceError maps service-layer errors onto the error envelope.
// Validation sentinels become 400s, an unavailable provider becomes 503,
// everything else 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrLatitudeOutOfRange), errors.Is(err, validation.ErrLongitudeOutOfRange):
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
	case errors.Is(err, validation.ErrInvalidDateSpec):
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", err.Error())
	case errors.Is(err, validation.ErrHorizonOutOfRange):
		writeError(w, r, http.StatusBadRequest, "INVALID_HORIZON", err.Error())
	case errors.Is(err, provider.ErrProviderUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch historical weather data")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("request failed", zap.Error(err))
	}
}
