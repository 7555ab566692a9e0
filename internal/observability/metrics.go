// Package observability provides Prometheus metrics and process monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Collector metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	TaskDuration  *prometheus.HistogramVec
	RunsSkipped   *prometheus.CounterVec
	LastRunStatus *prometheus.GaugeVec

	// Ingestion metrics
	RowsIngested   *prometheus.CounterVec
	SourcesSkipped *prometheus.CounterVec
	SchemaDrift    *prometheus.CounterVec

	// History metrics
	RowsHistorized *prometheus.CounterVec
	RowsIgnored    *prometheus.CounterVec
	FieldChanges   *prometheus.CounterVec

	// Data quality metrics
	MergeAnomalies   *prometheus.CounterVec
	ExtrinsicFlagged prometheus.Counter

	// Derived metrics
	DerivedRows *prometheus.CounterVec

	// Process metrics
	MemoryRSS     prometheus.Gauge
	MemoryPeakRSS prometheus.Gauge

	// Server metrics
	HTTPRequests      *prometheus.CounterVec
	WebsocketClients  prometheus.Gauge
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "options_data_lab"
	}

	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "runs_total",
			Help:      "Total number of collector runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "run_duration_seconds",
			Help:      "Collector run duration in seconds",
			Buckets:   []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"mode"}),
		TaskDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "task_duration_seconds",
			Help:      "Duration of one collector task in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"task"}),
		RunsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "runs_skipped_total",
			Help:      "Runs skipped because another run of the mode held the lock",
		}, []string{"mode"}),
		LastRunStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "last_run_exit_code",
			Help:      "Exit code of the last run by mode",
		}, []string{"mode"}),

		RowsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_total",
			Help:      "Raw rows written by source and table",
		}, []string{"source", "table"}),
		SourcesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "sources_skipped_total",
			Help:      "Sources skipped because they were unavailable",
		}, []string{"source"}),
		SchemaDrift: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "schema_drift_total",
			Help:      "Tables rejected for schema drift or invalid rows",
		}, []string{"source", "table"}),

		RowsHistorized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "rows_inserted_total",
			Help:      "History rows inserted by table",
		}, []string{"table"}),
		RowsIgnored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "rows_ignored_total",
			Help:      "History rows ignored because the day was already written",
		}, []string{"table"}),
		FieldChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "field_changes_total",
			Help:      "Changes of fields classified slower than Daily",
		}, []string{"table"}),

		MergeAnomalies: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "merge_anomalies_total",
			Help:      "Join keys with more than one row by source",
		}, []string{"source"}),
		ExtrinsicFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "negative_extrinsic_total",
			Help:      "Merged rows whose premium is below intrinsic value",
		}),

		DerivedRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "rows_total",
			Help:      "Derived rows written by metric",
		}, []string{"metric"}),

		MemoryRSS: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "memory_rss_bytes",
			Help:      "Resident set size sampled by the memory monitor",
		}),
		MemoryPeakRSS: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "memory_peak_rss_bytes",
			Help:      "Peak resident set size of the current run",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),
		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful collector run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a finished collector run.
func RecordRun(mode, outcome string, exitCode int, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(mode, outcome).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(mode).Observe(durationSeconds)
	DefaultMetrics.LastRunStatus.WithLabelValues(mode).Set(float64(exitCode))
	if exitCode == 0 {
		DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordRunSkipped records a run skipped because the mode was locked.
func RecordRunSkipped(mode string) {
	DefaultMetrics.RunsSkipped.WithLabelValues(mode).Inc()
}

// RecordTask records the duration of one collector task.
func RecordTask(task string, seconds float64) {
	DefaultMetrics.TaskDuration.WithLabelValues(task).Observe(seconds)
}

// RecordIngested records raw rows written.
func RecordIngested(source, table string, rows int) {
	DefaultMetrics.RowsIngested.WithLabelValues(source, table).Add(float64(rows))
}

// RecordSourceSkipped records an unavailable source.
func RecordSourceSkipped(source string) {
	DefaultMetrics.SourcesSkipped.WithLabelValues(source).Inc()
}

// RecordSchemaDrift records a rejected table.
func RecordSchemaDrift(source, table string) {
	DefaultMetrics.SchemaDrift.WithLabelValues(source, table).Inc()
}

// RecordHistorized records history inserts and ignored reruns.
func RecordHistorized(table string, inserted, ignored int64, fieldChanges int) {
	DefaultMetrics.RowsHistorized.WithLabelValues(table).Add(float64(inserted))
	DefaultMetrics.RowsIgnored.WithLabelValues(table).Add(float64(ignored))
	DefaultMetrics.FieldChanges.WithLabelValues(table).Add(float64(fieldChanges))
}

// RecordMergeAnomaly records duplicate join keys of a source.
func RecordMergeAnomaly(source string, n int) {
	DefaultMetrics.MergeAnomalies.WithLabelValues(source).Add(float64(n))
}

// RecordExtrinsicFlagged records rows with negative extrinsic value.
func RecordExtrinsicFlagged(n int) {
	DefaultMetrics.ExtrinsicFlagged.Add(float64(n))
}

// RecordDerived records derived rows written.
func RecordDerived(metric string, rows int) {
	DefaultMetrics.DerivedRows.WithLabelValues(metric).Add(float64(rows))
}

// RecordMemory updates the memory gauges.
func RecordMemory(rss, peak uint64) {
	DefaultMetrics.MemoryRSS.Set(float64(rss))
	DefaultMetrics.MemoryPeakRSS.Set(float64(peak))
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(route string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, httpCode(code)).Inc()
}

// SetWebsocketClients updates the connected dashboard client gauge.
func SetWebsocketClients(n int) {
	DefaultMetrics.WebsocketClients.Set(float64(n))
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
