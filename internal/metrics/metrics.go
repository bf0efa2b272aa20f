// Package metrics exposes Prometheus collectors for the catalog and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple instances do not collide.
type Metrics struct {
	registry *prometheus.Registry

	stories      prometheus.Gauge
	mutations    *prometheus.CounterVec
	authRequests *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	watchReloads prometheus.Counter
	sseClients   prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stories: f.NewGauge(prometheus.GaugeOpts{
			Name: "gazette_stories",
			Help: "Number of stories in the catalog",
		}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gazette_story_mutations_total",
			Help: "Story mutations by kind",
		}, []string{"kind"}),
		authRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gazette_auth_requests_total",
			Help: "Login and token checks by result",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gazette_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gazette_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		watchReloads: f.NewCounter(prometheus.CounterOpts{
			Name: "gazette_store_reloads_total",
			Help: "Reloads triggered by external edits of the story file",
		}),
		sseClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "gazette_sse_clients",
			Help: "Connected event stream clients",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetStories records the catalog size.
func (m *Metrics) SetStories(n int) { m.stories.Set(float64(n)) }

// StoryMutated counts one mutation of the given kind. Creations and
// deletions also move the catalog gauge.
func (m *Metrics) StoryMutated(kind string) {
	m.mutations.WithLabelValues(kind).Inc()
	switch kind {
	case "created":
		m.stories.Inc()
	case "deleted":
		m.stories.Dec()
	}
}

// AuthResult counts one login or token check outcome.
func (m *Metrics) AuthResult(result string) { m.authRequests.WithLabelValues(result).Inc() }

// StoreReloaded counts one watcher-driven reload.
func (m *Metrics) StoreReloaded() { m.watchReloads.Inc() }

// SSEClients records the number of connected stream clients.
func (m *Metrics) SSEClients(n int) { m.sseClients.Set(float64(n)) }

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency. The chi route pattern is
// used as the label so that positional ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
