// Package metrics exposes sync outcomes as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"inventory-sync/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos_sync"

// SyncMetrics implements core.SyncMetrics on its own registry.
type SyncMetrics struct {
	registry      *prometheus.Registry
	submissions   *prometheus.CounterVec
	unresolved    prometheus.Counter
	negativeStock prometheus.Counter
	retries       prometheus.Counter
	batchDuration prometheus.Histogram
	batchSize     prometheus.Histogram
}

var _ core.SyncMetrics = (*SyncMetrics)(nil)

func New() *SyncMetrics {
	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Sale submissions processed, by terminal status.",
		}, []string{"status"}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_items_total",
			Help:      "Sale lines whose product could not be resolved.",
		}),
		negativeStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_stock_total",
			Help:      "Stock decrements that left a product below zero.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Units of work replayed after a deadlock or serialization failure.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Submissions per batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}

	m.registry.MustRegister(
		m.submissions, m.unresolved, m.negativeStock, m.retries, m.batchDuration, m.batchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create status series so dashboards see zeros instead of gaps.
	for _, s := range []core.SyncStatus{core.StatusSuccess, core.StatusSkipped, core.StatusError} {
		m.submissions.WithLabelValues(string(s))
	}
	return m
}

func (m *SyncMetrics) SubmissionDone(status core.SyncStatus) {
	m.submissions.WithLabelValues(string(status)).Inc()
}

func (m *SyncMetrics) UnresolvedItem() { m.unresolved.Inc() }
func (m *SyncMetrics) NegativeStock()  { m.negativeStock.Inc() }
func (m *SyncMetrics) Retry()          { m.retries.Inc() }

func (m *SyncMetrics) BatchDone(size int, elapsed time.Duration) {
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
