// Package api exposes the location and weather state over HTTP. Handlers
// are thin: parsing and validation here, all semantics in the location,
// weather and places packages.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/publicfarley/simple-weather/internal/location"
	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/places"
	"github.com/publicfarley/simple-weather/internal/validation"
	"github.com/publicfarley/simple-weather/internal/weather"
)

// maxPlaceNameLen bounds user-supplied place names.
const maxPlaceNameLen = 64

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	reconciler *location.Reconciler
	weather    *weather.FetchCache
	places     *places.Manager
	logger     *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(reconciler *location.Reconciler, fetchCache *weather.FetchCache, placesMgr *places.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		weather:    fetchCache,
		places:     placesMgr,
		logger:     logger,
	}
}

// GetState handles GET /v1/state. It returns the combined location and
// interactive weather state in one response.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"location": locationStateBody(h.reconciler.State()),
		"weather":  weatherStateBody(h.weather.State()),
	})
}

// GetWeather handles GET /v1/weather/{lat},{lon}. It serves a cached
// snapshot when fresh and fetches otherwise.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lat, latErr := strconv.ParseFloat(vars["lat"], 64)
	lon, lonErr := strconv.ParseFloat(vars["lon"], 64)
	if latErr != nil || lonErr != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATE", "coordinates must be decimal degrees")
		return
	}
	if err := validation.ValidateCoordinate(lat, lon); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATE", err.Error())
		return
	}

	snap, err := h.weather.Fetch(r.Context(), models.Coordinate{Latitude: lat, Longitude: lon})
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RefreshLocation handles POST /v1/location/refresh. It requests a live fix
// and returns the resulting location state.
func (h *Handler) RefreshLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciler.RequestFix(r.Context()); err != nil {
		writeLocationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locationStateBody(h.reconciler.State()))
}

// RefreshWeather handles POST /v1/weather/refresh. It drives the
// interactive fetch for the currently resolved location.
func (h *Handler) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	coord, ok := h.reconciler.Current()
	if !ok {
		writeError(w, r, http.StatusConflict, "NO_LOCATION", "no resolved location to refresh weather for")
		return
	}
	if err := h.weather.Refresh(r.Context(), coord); err != nil {
		writeWeatherError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weatherStateBody(h.weather.State()))
}

// ListPlaces handles GET /v1/places.
func (h *Handler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"places": h.places.List(),
	})
}

// CreatePlace handles POST /v1/places.
func (h *Handler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}

	name, err := validation.ValidatePlaceName(body.Name, maxPlaceNameLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_NAME", err.Error())
		return
	}
	if err := validation.ValidateCoordinate(body.Latitude, body.Longitude); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATE", err.Error())
		return
	}

	place := h.places.Add(r.Context(), name, models.Coordinate{Latitude: body.Latitude, Longitude: body.Longitude})
	writeJSON(w, http.StatusCreated, place)
}

// DeletePlace handles DELETE /v1/places/{id}.
func (h *Handler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.places.Remove(r.Context(), id) {
		writeError(w, r, http.StatusNotFound, "PLACE_NOT_FOUND", "no place with id "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPlaces handles POST /v1/places/refresh. It refreshes snapshots for
// every saved place plus the current-location placeholder, tolerating
// per-place failures.
func (h *Handler) RefreshPlaces(w http.ResponseWriter, r *http.Request) {
	coords := h.places.Coordinates()
	results := h.weather.FetchBatch(r.Context(), coords)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requested": len(coords),
		"refreshed": len(results),
		"snapshots": results,
	})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	locState := h.reconciler.State()

	locCheck := "healthy"
	if locState.Phase == location.PhaseFailed {
		locCheck = "unavailable"
		if errors.Is(locState.Err, location.ErrPermissionDenied) ||
			errors.Is(locState.Err, location.ErrPermissionRestricted) {
			locCheck = "unauthorized"
		}
	}
	checks := map[string]string{"locationProvider": locCheck}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "simple-weather",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// locationStateBody flattens the reconciler state into a JSON-friendly map.
func locationStateBody(s location.State) map[string]interface{} {
	body := map[string]interface{}{
		"phase":                s.Phase,
		"isLoading":            s.IsLoading,
		"didUseCachedLocation": s.DidUseCachedLocation,
	}
	if s.Location != nil {
		body["location"] = s.Location
	}
	if s.Err != nil {
		body["error"] = s.Err.Error()
	}
	return body
}

// weatherStateBody flattens the interactive weather state into a
// JSON-friendly map.
func weatherStateBody(s weather.State) map[string]interface{} {
	body := map[string]interface{}{
		"phase": s.Phase,
	}
	if s.Current != nil {
		body["current"] = s.Current
	}
	if len(s.Daily) > 0 {
		body["daily"] = s.Daily
	}
	if len(s.Hourly) > 0 {
		body["hourly"] = s.Hourly
	}
	if s.Err != nil {
		body["error"] = s.Err.Error()
	}
	return body
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available in request
// context.
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

// writeLocationError maps location errors onto HTTP statuses.
func writeLocationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "PERMISSION_DENIED", "location permission denied")
	case errors.Is(err, location.ErrPermissionRestricted):
		writeError(w, r, http.StatusForbidden, "PERMISSION_RESTRICTED", "location access restricted")
	case errors.Is(err, location.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "LOCATION_UNAVAILABLE", "unable to acquire a location fix")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "LOCATION_UNAVAILABLE", "unable to acquire a location fix")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("location error", zap.Error(err))
	}
}

// writeWeatherError maps weather provider errors onto HTTP statuses.
func writeWeatherError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, weather.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED", "weather provider rate limit hit")
	case errors.Is(err, weather.ErrBadResponse):
		writeError(w, r, http.StatusBadGateway, "BAD_UPSTREAM_RESPONSE", "weather provider returned an unusable response")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch weather data")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("weather error", zap.Error(err))
	}
}
