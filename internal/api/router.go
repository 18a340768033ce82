package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/publicfarley/simple-weather/internal/observability"
)

// NewRouter wires the routes and middleware. Health and metrics bypass the
// rate limiter and request timeout; the /v1 surface gets both.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(RateLimitMiddleware(limiter))
	v1.Use(TimeoutMiddleware(requestTimeout))

	v1.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	v1.HandleFunc("/weather/refresh", h.RefreshWeather).Methods(http.MethodPost)
	v1.HandleFunc("/weather/{lat},{lon}", h.GetWeather).Methods(http.MethodGet)
	v1.HandleFunc("/location/refresh", h.RefreshLocation).Methods(http.MethodPost)
	v1.HandleFunc("/places", h.ListPlaces).Methods(http.MethodGet)
	v1.HandleFunc("/places", h.CreatePlace).Methods(http.MethodPost)
	v1.HandleFunc("/places/refresh", h.RefreshPlaces).Methods(http.MethodPost)
	v1.HandleFunc("/places/{id}", h.DeletePlace).Methods(http.MethodDelete)

	return r
}
