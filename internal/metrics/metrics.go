// Package metrics exposes Prometheus collectors for the reconciliation layer.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/roombooking/internal/domain"
)

const namespace = "roombooking"

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	staleDiscards   *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	mirrorWrites    *prometheus.CounterVec
	mirrorFallbacks prometheus.Counter
	cacheEntities   *prometheus.GaugeVec
	backendRequests *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Collection fetches by kind and final state.",
		}, []string{"kind", "state"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching and normalizing a collection.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		staleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_fetches_discarded_total",
			Help:      "Fetch responses dropped because a newer fetch was initiated.",
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Submitted mutations by kind, operation and final state.",
		}, []string{"kind", "operation", "state"}),
		mirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_mirror_writes_total",
			Help:      "Room mirror writes by result.",
		}, []string{"result"}),
		mirrorFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_mirror_fallbacks_total",
			Help:      "Room fetch failures answered from the persisted mirror.",
		}),
		cacheEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entities",
			Help:      "Entities currently held in the cache by kind.",
		}, []string{"kind"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests sent to the booking backend by method and outcome.",
		}, []string{"method", "outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_breaker_open",
			Help:      "1 while the backend circuit breaker is open, 0.5 while half-open.",
		}, []string{"breaker"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetches,
		m.fetchDuration,
		m.staleDiscards,
		m.mutations,
		m.mirrorWrites,
		m.mirrorFallbacks,
		m.cacheEntities,
		m.backendRequests,
		m.breakerState,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFetch records a finished fetch.
func (m *Metrics) ObserveFetch(kind domain.Kind, state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(string(kind), state).Inc()
	m.fetchDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// StaleDiscard records a fetch response that was not applied.
func (m *Metrics) StaleDiscard(kind domain.Kind) {
	if m == nil {
		return
	}
	m.staleDiscards.WithLabelValues(string(kind)).Inc()
}

// ObserveMutation records a finished mutation.
func (m *Metrics) ObserveMutation(kind domain.Kind, operation, state string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(kind), operation, state).Inc()
}

// MirrorWrite records the result of a Room mirror write.
func (m *Metrics) MirrorWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mirrorWrites.WithLabelValues(result).Inc()
}

// MirrorFallback records a Room fetch served from the mirror.
func (m *Metrics) MirrorFallback() {
	if m == nil {
		return
	}
	m.mirrorFallbacks.Inc()
}

// SetCacheSize records how many entities of kind are cached.
func (m *Metrics) SetCacheSize(kind domain.Kind, n int) {
	if m == nil {
		return
	}
	m.cacheEntities.WithLabelValues(string(kind)).Set(float64(n))
}

// BackendRequest records one backend round trip. outcome is a status class
// such as "2xx" or a failure label such as "network".
func (m *Metrics) BackendRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(method, outcome).Inc()
}

// BreakerState records the state of a named circuit breaker.
func (m *Metrics) BreakerState(name, state string) {
	if m == nil {
		return
	}
	value := 0.0
	switch state {
	case "open":
		value = 1
	case "half-open":
		value = 0.5
	}
	m.breakerState.WithLabelValues(name).Set(value)
}
