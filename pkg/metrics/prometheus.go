// Package metrics exposes Prometheus metrics for the prediction service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	predictions        *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "fundamental_analyzer",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(m.registry)
	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "predictions_total",
		Help:      "Prediction requests by sector and outcome.",
	}, []string{"sector", "outcome"})
	m.predictionDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Time spent computing and storing a prediction.",
		Buckets:   m.buckets,
	}, []string{"sector"})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   m.buckets,
	}, []string{"method", "route"})
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "store_breaker_state",
		Help:      "Circuit breaker state of the prediction store (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
	return m
}

// ObservePrediction records one prediction attempt.
func (m *Manager) ObservePrediction(sector, outcome string, elapsed time.Duration) {
	m.predictions.WithLabelValues(sector, outcome).Inc()
	m.predictionDuration.WithLabelValues(sector).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served HTTP request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Manager) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// BreakerStateChanged matches gobreaker.Settings.OnStateChange.
func (m *Manager) BreakerStateChanged(name string, from, to gobreaker.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
