// Package metrics keeps sync counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fanpage_dashboard"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	syncRuns     *prometheus.CounterVec
	syncDuration prometheus.Histogram
	lastSync     prometheus.Gauge
	pagesSynced  prometheus.Gauge
	postsSynced  *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	pageErrors   *prometheus.CounterVec
	postsCleaned prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_runs_total",
			Help: "Sync runs by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sync_duration_seconds",
			Help:    "Wall time of a sync run.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_sync_timestamp_seconds",
			Help: "Unix time of the last finished sync.",
		}),
		pagesSynced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pages_synced",
			Help: "Pages handled by the last sync.",
		}),
		postsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "posts_synced_total",
			Help: "Normalized posts stored, by source and status.",
		}, []string{"source", "status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entries_dropped_total",
			Help: "Raw entries skipped by the normalizers.",
		}, []string{"kind"}),
		pageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "page_errors_total",
			Help: "Per-page fetch failures.",
		}, []string{"source"}),
		postsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "posts_cleaned_total",
			Help: "Outdated posts deleted.",
		}),
	}
	m.registry.MustRegister(m.syncRuns, m.syncDuration, m.lastSync, m.pagesSynced,
		m.postsSynced, m.dropped, m.pageErrors, m.postsCleaned)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSync records one finished run.
func (m *Metrics) ObserveSync(start time.Time, pages int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(time.Since(start).Seconds())
	m.lastSync.SetToCurrentTime()
	if err == nil {
		m.pagesSynced.Set(float64(pages))
	}
}

func (m *Metrics) PostSynced(source, status string) {
	if m == nil {
		return
	}
	m.postsSynced.WithLabelValues(source, status).Inc()
}

// Dropped counts skipped raw entries; kind is "page" or "post".
func (m *Metrics) Dropped(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) PageError(source string) {
	if m == nil {
		return
	}
	m.pageErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) PostsCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.postsCleaned.Add(float64(n))
}
