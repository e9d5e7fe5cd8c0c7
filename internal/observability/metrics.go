// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	BarsIngested    prometheus.Counter
	IngestionErrors *prometheus.CounterVec

	// Backtest metrics
	RunsCompleted   *prometheus.CounterVec
	BarsReplayed    prometheus.Counter
	FillsRecorded   prometheus.Counter
	ObserverPanics  prometheus.Counter
	RunDuration     prometheus.Histogram
	ReportsRendered prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Event stream metrics
	StreamClients   prometheus.Gauge
	EventsBroadcast prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "equity_backtest_lab"
	}

	return &Metrics{
		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_ingested_total",
			Help:      "Total number of bars loaded into storage",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by type",
		}, []string{"error_type"}),

		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_completed_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BarsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bars_replayed_total",
			Help:      "Total number of bars stepped through",
		}),
		FillsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "fills_recorded_total",
			Help:      "Total number of fills produced",
		}),
		ObserverPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "observer_panics_total",
			Help:      "Total number of panics recovered from observer callbacks",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		ReportsRendered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_rendered_total",
			Help:      "Total number of reports rendered",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected event stream clients",
		}),
		EventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_broadcast_total",
			Help:      "Total number of events broadcast to stream clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBarsIngested adds to the bars ingested counter.
func RecordBarsIngested(n int) {
	DefaultMetrics.BarsIngested.Add(float64(n))
}

// RecordIngestionError records an ingestion error.
func RecordIngestionError(errorType string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(errorType).Inc()
}

// RecordRunCompleted records a finished backtest run.
func RecordRunCompleted(status string, durationSeconds float64, barCount, fillCount int64) {
	DefaultMetrics.RunsCompleted.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	DefaultMetrics.BarsReplayed.Add(float64(barCount))
	DefaultMetrics.FillsRecorded.Add(float64(fillCount))
}

// RecordObserverPanics adds to the recovered observer panic counter.
func RecordObserverPanics(n int) {
	DefaultMetrics.ObserverPanics.Add(float64(n))
}

// RecordReportRendered increments the reports rendered counter.
func RecordReportRendered() {
	DefaultMetrics.ReportsRendered.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
