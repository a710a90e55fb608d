// Package metrics exposes the sync metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/syncrun"
)

const namespace = "ushauri"

// SyncMetrics implements rostersync.Metrics.
type SyncMetrics struct {
	registry *prometheus.Registry

	pageFetches     *prometheus.CounterVec
	pageFetchTime   *prometheus.HistogramVec
	records         *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastRunFinished prometheus.Gauge
}

var _ rostersync.Metrics = (*SyncMetrics)(nil)

// New registers the sync metrics on a dedicated registry, along with the Go & process collectors.
func New() *SyncMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &SyncMetrics{
		registry: reg,
		pageFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_page_fetches_total",
			Help:      "Roster API page fetches, by entity kind & error class.",
		}, []string{"kind", "result"}),
		pageFetchTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "roster_page_fetch_duration_seconds",
			Help:      "Roster API page fetch latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Roster records written, by entity kind & outcome.",
		}, []string{"kind", "outcome"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Finished sync runs, by status.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Sync run duration.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		lastRunFinished: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_run_timestamp_seconds",
			Help:      "Unix time of the last finished sync run.",
		}),
	}
}

func (m *SyncMetrics) PageFetched(kind roster.Kind, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = string(roster.ClassOf(err))
		if result == "" {
			result = "error"
		}
	}
	m.pageFetches.WithLabelValues(string(kind), result).Inc()
	m.pageFetchTime.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *SyncMetrics) RecordsWritten(kind roster.Kind, res rostersync.BatchResult) {
	k := string(kind)
	m.records.WithLabelValues(k, "created").Add(float64(res.Created))
	m.records.WithLabelValues(k, "updated").Add(float64(res.Updated))
	m.records.WithLabelValues(k, "unchanged").Add(float64(res.Unchanged))
	m.records.WithLabelValues(k, "failed").Add(float64(len(res.Failed)))
}

func (m *SyncMetrics) RunFinished(status syncrun.Status, elapsed time.Duration) {
	m.runs.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.lastRunFinished.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
