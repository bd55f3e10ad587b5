package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_porter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_porter_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_porter_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_porter_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Download metrics
var (
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_downloads_total",
			Help: "Total number of download requests by outcome",
		},
		[]string{"platform", "format", "status"},
	)

	DownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_porter_download_duration_seconds",
			Help:    "End-to-end download duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"platform", "format"},
	)

	DownloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_porter_download_bytes",
			Help:    "Size of delivered media in bytes",
			Buckets: prometheus.ExponentialBuckets(256*1024, 4, 8), // 256KB .. 4GB
		},
		[]string{"format"},
	)

	DownloadsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_downloads_in_progress",
			Help: "Number of downloads currently being processed",
		},
	)

	DownloadsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_downloads_waiting",
			Help: "Number of downloads waiting for a free slot or for memory to recover",
		},
	)

	DownloadSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_download_slots",
			Help: "Configured maximum number of concurrent downloads",
		},
	)

	LedgerWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_porter_ledger_write_errors_total",
			Help: "Total number of ledger appends that failed after a successful download",
		},
	)
)

// Extractor metrics
var (
	ExtractorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_extractor_runs_total",
			Help: "Total number of extraction backend invocations",
		},
		[]string{"operation", "status"}, // operation: "inspect", "materialize"
	)

	ExtractorRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_porter_extractor_run_duration_seconds",
			Help:    "Extraction backend run duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	ExtractorJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_extractor_jobs_in_progress",
			Help: "Number of extraction backend processes currently running",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_porter_filesystem_operation_duration_seconds",
			Help:    "Duration of scratch filesystem operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_filesystem_operation_errors_total",
			Help: "Total number of failed scratch filesystem operations",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_filesystem_retry_attempts_total",
			Help: "Total number of retries after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_filesystem_retry_success_total",
			Help: "Total number of operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_filesystem_retry_failures_total",
			Help: "Total number of operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_porter_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation"},
	)

	ScratchDirsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_scratch_dirs_active",
			Help: "Number of scratch directories currently held by downloads",
		},
	)
)

// Ledger metrics, refreshed by the Collector
var (
	LedgerDownloads = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_porter_ledger_downloads",
			Help: "Number of recorded downloads by platform and format",
		},
		[]string{"platform", "format"},
	)

	LedgerBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_ledger_bytes",
			Help: "Total bytes delivered according to the ledger",
		},
	)

	LedgerLastDownloadTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_ledger_last_download_timestamp",
			Help: "Unix timestamp of the most recent recorded download",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_porter_memory_paused",
			Help: "Whether new downloads are held back by memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_porter_memory_gc_pauses_total",
			Help: "Total number of times memory pressure paused new downloads",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_porter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
