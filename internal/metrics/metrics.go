package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_optimizer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_optimizer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_db_queries_total",
			Help: "Total number of variant store queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_optimizer_db_query_duration_seconds",
			Help:    "Variant store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_optimizer_db_connections_open",
			Help: "Number of open variant store connections",
		},
	)
)

// Capability probe metrics
var (
	ProbeRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_optimizer_probe_runs_total",
			Help: "Total number of encoder capability probes",
		},
	)

	EncoderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_optimizer_encoder_available",
			Help: "Whether an encoder was available at the last probe (1 = available)",
		},
		[]string{"encoder"},
	)
)

// Conversion metrics
var (
	ConversionPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_conversion_passes_total",
			Help: "Total number of conversion passes",
		},
		[]string{"kind", "status"}, // status: "success", "skipped", "failed"
	)

	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_conversions_total",
			Help: "Total number of per-variant encode attempts",
		},
		[]string{"format", "status"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_optimizer_conversion_duration_seconds",
			Help:    "Per-variant encode duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"format"},
	)

	ConversionSavedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_conversion_saved_bytes_total",
			Help: "Total bytes saved by conversion (original minus converted)",
		},
		[]string{"format"},
	)

	ConversionLastPassTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_optimizer_conversion_last_pass_timestamp",
			Help: "Unix timestamp of the last completed conversion pass",
		},
	)

	VariantsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_variants_deleted_total",
			Help: "Total number of variants deleted during cleanup",
		},
		[]string{"format"},
	)
)

// Dispatch metrics
var (
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_optimizer_queue_depth",
			Help: "Number of conversion jobs waiting in the queue",
		},
	)

	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_queue_jobs_total",
			Help: "Total number of conversion jobs by terminal status",
		},
		[]string{"status"}, // "completed", "failed", "deduplicated"
	)

	BatchFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_optimizer_batch_flushes_total",
			Help: "Total number of end-of-request batch flushes",
		},
	)

	BatchAssetsFlushed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_optimizer_batch_assets_flushed",
			Help:    "Number of assets flushed per batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)
)

// Selection metrics
var (
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_selections_total",
			Help: "Total number of variant selections by served format",
		},
		[]string{"format"}, // includes "original" when falling back
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_optimizer_memory_usage_ratio",
			Help: "Current heap usage as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_optimizer_memory_paused",
			Help: "Whether conversion work is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_optimizer_memory_gc_pauses_total",
			Help: "Total number of forced garbage collections due to memory pressure",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_optimizer_filesystem_stale_errors_total",
			Help: "Total number of NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)
