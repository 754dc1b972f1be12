package poller

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the poller's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PollsTotal         *prometheus.CounterVec
	PollDuration       prometheus.Histogram
	RecordsTotal       prometheus.Gauge
	NewRecordsTotal    prometheus.Counter
	BackoffState       prometheus.Gauge
	LastSuccessSeconds prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers the poller collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.PollsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnwatch_polls_total",
			Help: "Total number of polls by result",
		},
		[]string{"result"},
	)
	m.PollDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vulnwatch_poll_duration_seconds",
			Help:    "Time spent on one count and recent-records query pair",
			Buckets: prometheus.DefBuckets,
		},
	)
	m.RecordsTotal = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "vulnwatch_records",
			Help: "Record count reported by the last successful poll",
		},
	)
	m.NewRecordsTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "vulnwatch_new_records_total",
			Help: "Records detected as new since the watcher started",
		},
	)
	m.BackoffState = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "vulnwatch_error_backoff",
			Help: "1 while the poller waits after a failed poll, 0 otherwise",
		},
	)
	m.LastSuccessSeconds = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "vulnwatch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll",
		},
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(start, end time.Time, err error) {
	if m == nil {
		return
	}
	m.PollDuration.Observe(end.Sub(start).Seconds())
	if err != nil {
		m.PollsTotal.WithLabelValues("error").Inc()
		return
	}
	m.PollsTotal.WithLabelValues("ok").Inc()
	m.LastSuccessSeconds.Set(float64(end.Unix()))
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	if s == StateErrorBackoff {
		m.BackoffState.Set(1)
		return
	}
	m.BackoffState.Set(0)
}

func (m *Metrics) addNew(n int) {
	if m == nil {
		return
	}
	m.NewRecordsTotal.Add(float64(n))
}

func (m *Metrics) setTotal(n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.Set(float64(n))
}
