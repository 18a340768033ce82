package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the UI-facing surface. Watch for: sudden drops or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Weather provider call rate by call type (current/daily/hourly) and status.
	WeatherProviderCallsTotal *prometheus.CounterVec

	// Weather provider latency. Watch for: p95 > 2s (upstream degradation).
	WeatherProviderDuration *prometheus.HistogramVec

	// Retry attempts against the weather provider. High retries = unstable upstream.
	WeatherProviderRetriesTotal prometheus.Counter

	// Snapshot cache hits vs misses. Hit rate = hits/(hits+misses).
	SnapshotCacheReadsTotal *prometheus.CounterVec

	// Location fix outcomes by result (success/failure/timeout/suppressed).
	LocationFixesTotal *prometheus.CounterVec

	// Cached-location slot operations by op (store/retrieve_hit/retrieve_stale/clear).
	LocationSlotOpsTotal *prometheus.CounterVec

	// Batch refresh outcomes: places attempted vs failed per run.
	BatchRefreshPlacesTotal *prometheus.CounterVec

	// Saved-place list mutations by op (add/remove).
	SavedPlaceOpsTotal *prometheus.CounterVec

	// Durable store errors, swallowed at the cache boundary but counted here.
	PersistenceErrorsTotal *prometheus.CounterVec

	// Rate limit denials on the HTTP surface.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherProviderCallsTotal",
			Help: "Total number of weather provider calls",
		},
		[]string{"call", "status"},
	)
	WeatherProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherProviderDurationSeconds",
			Help:    "Weather provider latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"call", "status"},
	)
	WeatherProviderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherProviderRetriesTotal",
			Help: "Total number of retry attempts for weather provider calls",
		},
	)
	SnapshotCacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotCacheReadsTotal",
			Help: "Weather snapshot cache reads by result (hit/miss/expired)",
		},
		[]string{"result"},
	)
	LocationFixesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationFixesTotal",
			Help: "Live location fix outcomes (success/failure/timeout/suppressed)",
		},
		[]string{"result"},
	)
	LocationSlotOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationSlotOpsTotal",
			Help: "Cached-location slot operations",
		},
		[]string{"op"},
	)
	BatchRefreshPlacesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchRefreshPlacesTotal",
			Help: "Saved places refreshed by the batch path, by result (ok/failed)",
		},
		[]string{"result"},
	)
	SavedPlaceOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savedPlaceOpsTotal",
			Help: "Saved-place list mutations",
		},
		[]string{"op"},
	)
	PersistenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistenceErrorsTotal",
			Help: "Durable store errors swallowed at the cache boundary, by op",
		},
		[]string{"op"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherProviderCallsTotal, WeatherProviderDuration, WeatherProviderRetriesTotal,
		SnapshotCacheReadsTotal,
		LocationFixesTotal, LocationSlotOpsTotal,
		BatchRefreshPlacesTotal, SavedPlaceOpsTotal, PersistenceErrorsTotal,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
