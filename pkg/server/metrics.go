package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type outcome string

const (
	outcomeSuccess      outcome = "success"
	outcomeInvalid      outcome = "invalid"
	outcomeBackendError outcome = "backend_error"
	outcomeFailure      outcome = "failure"
)

// Metrics holds the collectors exposed on /metrics. Each Metrics has its own
// registry so several servers can live in one process.
type Metrics struct {
	registry       *prometheus.Registry
	searches       *prometheus.CounterVec
	backendLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qtda",
			Name:      "search_requests_total",
			Help:      "Search requests handled by the proxy, by outcome.",
		}, []string{"outcome"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qtda",
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of calls to the QA backend.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	m.registry.MustRegister(
		m.searches,
		m.backendLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) countSearch(o outcome) {
	m.searches.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observeBackend(d time.Duration) {
	m.backendLatency.Observe(d.Seconds())
}
