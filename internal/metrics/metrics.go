// Package metrics exposes Prometheus counters for the post store.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 持有一个独立的 registry，测试中可以各自创建互不干扰。
type Metrics struct {
	registry *prometheus.Registry

	operations   *prometheus.CounterVec
	interactions *prometheus.CounterVec
	skipped      prometheus.Counter
	swept        *prometheus.CounterVec
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genteblog",
			Name:      "repository_operations_total",
			Help:      "Repository operations by name and result.",
		}, []string{"operation", "result"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genteblog",
			Name:      "interaction_toggles_total",
			Help:      "Interaction toggles by type and resulting state.",
		}, []string{"type", "state"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genteblog",
			Name:      "list_skipped_records_total",
			Help:      "Undecodable records skipped while listing posts.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genteblog",
			Name:      "retention_deleted_total",
			Help:      "Records deleted by the retention sweep.",
		}, []string{"collection"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genteblog",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genteblog",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.operations, m.interactions, m.skipped, m.swept, m.requests, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Operation counts one repository call; err == nil is recorded as "ok".
func (m *Metrics) Operation(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Interaction(kind string, active bool) {
	if m == nil {
		return
	}
	state := "off"
	if active {
		state = "on"
	}
	m.interactions.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) SkippedRecord() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) Swept(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) Request(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
