// Package metrics holds the Prometheus collectors of the scan pipeline and API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "wcag"

// Scan outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Batch outcomes.
const (
	BatchRun     = "run"
	BatchSkipped = "skipped"
)

type Metrics struct {
	ScansTotal    *prometheus.CounterVec
	ScanDuration  prometheus.Histogram
	ScansInFlight prometheus.Gauge
	BatchesTotal  *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
}

// NewMetrics creates and registers every collector on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scans_total",
			Help:      "Total number of task scans by outcome",
		}, []string{"status"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of task scans in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
		}),
		ScansInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "scans_in_flight",
			Help:      "Number of scans currently running",
		}),
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_total",
			Help:      "Scheduled batch ticks by outcome",
		}, []string{"outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}
}

// ScanStarted marks a scan as in flight and returns the func that records its outcome.
func (m *Metrics) ScanStarted() func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.ScansInFlight.Inc()
	return func(err error) {
		m.ScansInFlight.Dec()
		m.ScanDuration.Observe(time.Since(start).Seconds())
		status := StatusSuccess
		if err != nil {
			status = StatusFailure
		}
		m.ScansTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Batch(outcome string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
}
