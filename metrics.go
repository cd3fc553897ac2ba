package axion

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// every orchestration layer. All Record methods are safe on a nil receiver so
// callers never have to guard for disabled metrics.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	queuePending    *prometheus.GaugeVec
	queueRunning    *prometheus.GaugeVec
	queueRejections *prometheus.CounterVec

	singleflightHits  *prometheus.CounterVec
	debounceCoalesced *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec
	rateLimiterTokens   *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, letting tests isolate their metric state.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_requests_total",
				Help: "Total number of orchestrated requests",
			},
			[]string{"method", "status", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axion_request_duration_seconds",
				Help:    "Duration of orchestrated requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axion_requests_in_flight",
				Help: "Number of requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axion_cache_size",
				Help: "Current number of entries in the cache",
			},
			[]string{"name"},
		),
		queuePending: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axion_queue_pending",
				Help: "Number of requests waiting for admission",
			},
			[]string{"name"},
		),
		queueRunning: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axion_queue_running",
				Help: "Number of requests currently admitted",
			},
			[]string{"name"},
		),
		queueRejections: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_queue_rejections_total",
				Help: "Total number of submissions rejected by a full backlog",
			},
			[]string{"name"},
		),
		singleflightHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_singleflight_hits_total",
				Help: "Total number of requests coalesced into an in-flight call",
			},
			[]string{"method", "endpoint"},
		),
		debounceCoalesced: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_debounce_coalesced_total",
				Help: "Total number of requests coalesced by debouncing",
			},
			[]string{"method", "endpoint"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axion_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axion_rate_limiter_tokens",
				Help: "Approximate number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "axion_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind", "method", "endpoint"},
		),
		registry: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, status int, duration time.Duration) {
	if mc == nil {
		return
	}
	s := strconv.Itoa(status)
	mc.requestsTotal.WithLabelValues(method, s, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, s, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordQueueDepth sets the pending and running gauges.
func (mc *MetricsCollector) RecordQueueDepth(name string, pending, running int) {
	if mc == nil {
		return
	}
	mc.queuePending.WithLabelValues(name).Set(float64(pending))
	mc.queueRunning.WithLabelValues(name).Set(float64(running))
}

// RecordQueueRejection increments the backlog rejection counter.
func (mc *MetricsCollector) RecordQueueRejection(name string) {
	if mc == nil {
		return
	}
	mc.queueRejections.WithLabelValues(name).Inc()
}

// RecordSingleflightHit increments the coalesced in-flight counter.
func (mc *MetricsCollector) RecordSingleflightHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.singleflightHits.WithLabelValues(method, endpoint).Inc()
}

// RecordDebounceCoalesced increments the debounce coalescing counter.
func (mc *MetricsCollector) RecordDebounceCoalesced(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.debounceCoalesced.WithLabelValues(method, endpoint).Inc()
}

// RecordCircuitBreakerState sets the breaker state gauge.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimiterTokens sets the available token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens float64) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.WithLabelValues(name).Set(tokens)
}

// RecordError increments the error counter by kind.
func (mc *MetricsCollector) RecordError(kind, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(kind, method, endpoint).Inc()
}

// Registry exposes the registerer the collector was built on.
func (mc *MetricsCollector) Registry() prometheus.Registerer {
	return mc.registry
}
