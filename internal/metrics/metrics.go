// Package metrics exposes the service's Prometheus collectors. All recording
// methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Circuit breaker states as exported by the circuit_state gauge.
const (
	CircuitClosed   = 0
	CircuitOpen     = 1
	CircuitHalfOpen = 2
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	calculations *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	circuitState *prometheus.GaugeVec
	syncRuns     *prometheus.CounterVec
	syncedBanks  prometheus.Gauge
}

// New creates the collectors under namespace and registers them, together
// with the Go runtime and process collectors, on a private registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route template",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		calculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calculations_total",
				Help:      "Total number of fee calculations by kind",
			},
			[]string{"kind"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses per layer",
			},
			[]string{"layer"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetch_errors_total",
				Help:      "Total number of failed fetches per backend",
			},
			[]string{"backend"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of mirror sync runs by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		syncedBanks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "synced_banks",
				Help:      "Number of banks written by the last successful sync",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.calculations,
		m.cacheHits,
		m.cacheMisses,
		m.fetchErrors,
		m.circuitState,
		m.syncRuns,
		m.syncedBanks,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry, ErrorHandling: promhttp.ContinueOnError})
}

func (m *Metrics) RecordCalculation(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.calculations.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) RecordCache(layer string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.WithLabelValues(layer).Inc()
	} else {
		m.cacheMisses.WithLabelValues(layer).Inc()
	}
}

func (m *Metrics) RecordFetchError(backend string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(backend).Inc()
}

func (m *Metrics) RecordCircuitState(breaker string, state int) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(breaker).Set(float64(state))
}

func (m *Metrics) RecordSync(trigger string, banks int, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	} else {
		m.syncedBanks.Set(float64(banks))
	}
	m.syncRuns.WithLabelValues(trigger, result).Inc()
}

// Middleware records request count and latency labelled by the matched mux
// route template, so /api/banks/{id} is one series regardless of the ID.
func (m *Metrics) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(srw, r)

			route := routeTemplate(r)
			m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(srw.statusCode)).Inc()
			m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tpl
}
