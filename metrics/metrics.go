// Package metrics exposes HTTP and domain counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	requests          *prometheus.CounterVec
	latency           *prometheus.HistogramVec
	searches          *prometheus.CounterVec
	degradedResponses *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so several instances (tests) do
// not collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sei",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sei",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sei",
			Name:      "search_queries_total",
			Help:      "Search queries by type filter.",
		}, []string{"type"}),
		degradedResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sei",
			Name:      "degraded_responses_total",
			Help:      "Aggregation and search responses served empty because the store failed.",
		}, []string{"endpoint"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.searches, m.degradedResponses,
	)
	return m
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSearch counts one search of the given type filter.
func (m *Metrics) ObserveSearch(typ string) {
	m.searches.WithLabelValues(typ).Inc()
}

// ObserveDegraded counts a response served empty after a store failure.
func (m *Metrics) ObserveDegraded(endpoint string) {
	m.degradedResponses.WithLabelValues(endpoint).Inc()
}

// Middleware records count and latency per chi route pattern. Unmatched requests are
// labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
