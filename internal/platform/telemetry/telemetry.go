// Package telemetry exposes Prometheus instrumentation for the allocation
// engine and the HTTP layer.
package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments recorded by the engine and handlers.
type Metrics struct {
	registry *prometheus.Registry

	OpsTotal      *prometheus.CounterVec
	OpDuration    *prometheus.HistogramVec
	LockWait      prometheus.Histogram
	BedsAvailable prometheus.Gauge
}

// New creates a Metrics with its own registry, including the standard Go and
// process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Allocation engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Allocation engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for per-entity locks.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5},
		}),
		BedsAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "beds_available",
			Help:      "Beds currently in the available state.",
		}),
	}
	reg.MustRegister(m.OpsTotal, m.OpDuration, m.LockWait, m.BedsAvailable)
	return m
}

// Handler returns an echo handler serving the Prometheus text exposition.
func (m *Metrics) Handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// RecordOp increments the operation counter and observes its duration.
func (m *Metrics) RecordOp(op, outcome string, seconds float64) {
	m.OpsTotal.WithLabelValues(op, outcome).Inc()
	m.OpDuration.WithLabelValues(op).Observe(seconds)
}
