// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_sync_runs_total",
			Help: "Sync passes by final status (ok, partial, aborted, locked)",
		},
		[]string{"status"},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inspection_sync_run_duration_seconds",
			Help:    "Wall time of a sync pass",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// SyncStageItems counts items leaving each stage: fetched, extracted, new, built, rejected.
	SyncStageItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_sync_stage_items_total",
			Help: "Items produced by each sync stage",
		},
		[]string{"stage"},
	)

	SyncRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_sync_rejections_total",
			Help: "Reports rejected before dispatch, by error code",
		},
		[]string{"error_code"},
	)

	SyncDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_sync_dispatch_total",
			Help: "Create calls by record variant and outcome",
		},
		[]string{"variant", "outcome"},
	)

	SyncWatermark = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inspection_sync_watermark_timestamp_seconds",
			Help: "Watermark used by the most recent pass",
		},
	)
)
