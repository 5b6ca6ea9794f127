package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the run counters of the ETL job. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	LastSuccessSeconds prometheus.Gauge
	RecordsTotal       *prometheus.CounterVec
	RowsWrittenTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bgzfiltra_runs_total",
				Help: "Completed runs by result",
			},
			[]string{"result"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bgzfiltra_run_duration_seconds",
				Help:    "Wall time of a full run over all products",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		LastSuccessSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bgzfiltra_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
		),
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bgzfiltra_records_total",
				Help: "Records classified, by product and source (live or cache)",
			},
			[]string{"product", "source"},
		),
		RowsWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bgzfiltra_rows_written_total",
				Help: "Aggregate rows committed to QuestDB, by dimension",
			},
			[]string{"dimension"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastSuccessSeconds,
		m.RecordsTotal,
		m.RowsWrittenTotal,
	)
	return m
}

// ObserveRecords counts the records obtained for a product.
func (m *Metrics) ObserveRecords(product string, cached bool, n int) {
	if m == nil {
		return
	}
	source := "live"
	if cached {
		source = "cache"
	}
	m.RecordsTotal.WithLabelValues(product, source).Add(float64(n))
}

// ObserveRow counts one committed row.
func (m *Metrics) ObserveRow(dimension string) {
	if m == nil {
		return
	}
	m.RowsWrittenTotal.WithLabelValues(dimension).Inc()
}

// ObserveRun records the outcome of a run.
func (m *Metrics) ObserveRun(err error, took time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(took.Seconds())
	if err != nil {
		m.RunsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("success").Inc()
	m.LastSuccessSeconds.Set(float64(finished.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
