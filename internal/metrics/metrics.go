// Package metrics holds the Prometheus instruments for backfill runs and the
// dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

var (
	// FilesTotal counts backfill objects by outcome (loaded, skipped, failed).
	FilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "backfill_files_total",
		Help:      "Objects processed by the backfill, by outcome",
	}, []string{"outcome"})

	// RowsUpserted counts rows written per fact table.
	RowsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "rows_upserted_total",
		Help:      "Rows upserted into each fact table",
	}, []string{"table"})

	// BackfillDuration measures whole backfill runs.
	BackfillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "engagement",
		Name:      "backfill_duration_seconds",
		Help:      "Duration of complete backfill runs",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
	})

	// LastBackfillSuccess is the unix time of the last run that completed.
	LastBackfillSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagement",
		Name:      "backfill_last_success_timestamp_seconds",
		Help:      "Unix time of the last completed backfill run",
	})

	// CacheRequests counts dashboard dataset cache lookups by result (hit, miss).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "dashboard_cache_requests_total",
		Help:      "Dashboard dataset cache lookups",
	}, []string{"result"})

	// StoreCircuitState is the dashboard store breaker state (0 closed, 1 open, 2 half-open).
	StoreCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagement",
		Name:      "dashboard_store_circuit_state",
		Help:      "State of the circuit breaker guarding dashboard loads",
	})

	// SnapshotDuration measures building one dashboard view.
	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "engagement",
		Name:      "dashboard_snapshot_duration_seconds",
		Help:      "Time to filter and aggregate one dashboard view",
		Buckets:   prometheus.DefBuckets,
	})
)

// Push sends the default registry's metrics to a Pushgateway under job.
// Batch commands call it once before exiting.
func Push(url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
	return eris.Wrapf(err, "metrics: push to %s", url)
}
