// Package metrics holds the Prometheus collectors for the ask pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "askgate"

type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	providerTurns   *prometheus.CounterVec
	toolCallsTotal  *prometheus.CounterVec
	droppedCalls    prometheus.Counter
	shortcutsTotal  *prometheus.CounterVec
	iterationsTotal prometheus.Histogram
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := func(c prometheus.Collector) { reg.MustRegister(c) }

	m := &Metrics{
		registry: reg,
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Ask queries answered, by provider and status.",
		}, []string{"provider", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end duration of ask queries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		providerTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_turns_total",
			Help:      "Provider turns received, by provider and response shape.",
		}, []string{"provider", "shape"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched, by family and outcome.",
		}, []string{"family", "outcome"}),
		droppedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_dropped_total",
			Help:      "Tool calls dropped because no usable family matched.",
		}),
		shortcutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortcuts_total",
			Help:      "Queries answered with a success confirmation instead of another provider turn.",
		}, []string{"kind"}),
		iterationsTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_iterations",
			Help:      "Tool dispatch rounds per query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
	}

	f(m.queriesTotal)
	f(m.queryDuration)
	f(m.providerTurns)
	f(m.toolCallsTotal)
	f(m.droppedCalls)
	f(m.shortcutsTotal)
	f(m.iterationsTotal)
	f(collectors.NewGoCollector())
	f(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveQuery(provider string, success bool, iterations int, d time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.queryDuration.WithLabelValues(provider).Observe(d.Seconds())
	m.iterationsTotal.Observe(float64(iterations))
}

func (m *Metrics) ProviderTurn(provider, shape string) {
	if m == nil {
		return
	}
	m.providerTurns.WithLabelValues(provider, shape).Inc()
}

func (m *Metrics) ToolCall(family string, isError bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	m.toolCallsTotal.WithLabelValues(family, outcome).Inc()
}

func (m *Metrics) DroppedToolCalls(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedCalls.Add(float64(n))
}

func (m *Metrics) Shortcut(kind string) {
	if m == nil {
		return
	}
	m.shortcutsTotal.WithLabelValues(kind).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
