// Package metrics exposes Prometheus instrumentation for image extraction runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "image_scraper"

// Page outcome label values.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the extraction metrics
type Metrics struct {
	PagesTotal      *prometheus.CounterVec
	PageDuration    prometheus.Histogram
	BatchesTotal    *prometheus.CounterVec
	BatchSize       prometheus.Histogram
	BatchesInFlight prometheus.Gauge
}

// NewMetrics creates and registers the metrics on reg (default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Product pages processed, by outcome.",
		}, []string{"outcome"}),
		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "Time spent rendering and scanning one product page.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 30},
		}),
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Extraction batches, by status.",
		}, []string{"status"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_urls",
			Help:      "Number of URLs per extraction batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		BatchesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_in_flight",
			Help:      "Extraction batches currently running.",
		}),
	}
}

// ObservePage records one processed page. Safe on a nil receiver.
func (m *Metrics) ObservePage(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
	m.PageDuration.Observe(took.Seconds())
}

// BatchStarted records the start of a batch of n URLs. Safe on a nil receiver.
func (m *Metrics) BatchStarted(n int) {
	if m == nil {
		return
	}
	m.BatchesInFlight.Inc()
	m.BatchSize.Observe(float64(n))
}

// BatchFinished records the end of a batch. Safe on a nil receiver.
func (m *Metrics) BatchFinished(status string) {
	if m == nil {
		return
	}
	m.BatchesInFlight.Dec()
	m.BatchesTotal.WithLabelValues(status).Inc()
}
