// Package telemetry provides application-level observability for the Bandroom gateway.
//
// All metrics are registered against the default Prometheus registry and served on a
// side-channel HTTP port started by main.go (default 9090, path GET /metrics). The
// endpoint is not part of the Gin router, so the scrape path stays off the frontend
// API surface.
//
// Metric groups:
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Workspace workflow counters (loads, creates, joins, deletes, icon uploads) and
//     workflow error counters
//   - Member-count fan-out duration histogram
//   - Database connection pool gauge (polled every 30 s)
//
// HTTP metrics use the Gin route template (e.g. /api/v1/workspaces/:id) rather than
// the raw request URL to prevent unbounded label cardinality from workspace ids.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Workspace workflow metrics — recorded by the workspace membership manager.
//
// WorkflowRunsTotal counts completed workflow invocations by workflow name
// (load, create, update, delete, join, icon_upload) and outcome (ok, error).
// WorkflowErrorsTotal is the error subset kept as its own counter so alerting
// rules stay a single-metric expression:
//
//	increase(workspace_workflow_errors_total[30m]) > 3
var (
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_workflow_runs_total",
			Help: "Total number of workspace workflow invocations, by workflow and outcome.",
		},
		[]string{"workflow", "outcome"},
	)

	WorkflowErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_workflow_errors_total",
			Help: "Total number of failed workspace workflow invocations, by workflow.",
		},
		[]string{"workflow"},
	)

	// MemberCountFanoutDuration observes the wall time of the concurrent
	// per-workspace member-count aggregation inside a load. The fan-out is
	// bounded by the slowest single count query, so p95 here approximates the
	// store's count-query tail latency.
	MemberCountFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workspace_member_count_fanout_duration_seconds",
			Help:    "Duration of the per-workspace member-count fan-out during a load.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordWorkflow increments the workflow counters for one completed invocation
func RecordWorkflow(workflow string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		WorkflowErrorsTotal.WithLabelValues(workflow).Inc()
	}
	WorkflowRunsTotal.WithLabelValues(workflow, outcome).Inc()
}

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
