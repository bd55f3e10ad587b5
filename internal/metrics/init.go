package metrics

// Label values shared by InitializeMetrics and the packages that record them.
var (
	platformLabels = []string{"youtube", "tiktok", "instagram"}
	formatLabels   = []string{"mp3", "mp4"}
	downloadStatus = []string{"success", "invalid_url", "video_not_found", "file_too_large", "extraction_error", "transcode_error", "error"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Database storage files ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "migrate", "append_download",
		"list_downloads", "get_stats", "ping"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// --- Downloads per platform × format ---
	for _, p := range platformLabels {
		for _, f := range formatLabels {
			for _, s := range downloadStatus {
				DownloadsTotal.WithLabelValues(p, f, s)
			}
			DownloadDuration.WithLabelValues(p, f)
			LedgerDownloads.WithLabelValues(p, f)
		}
	}

	for _, f := range formatLabels {
		DownloadBytes.WithLabelValues(f)
	}

	// --- Extraction backend ---
	for _, op := range []string{"inspect", "materialize"} {
		ExtractorRunsTotal.WithLabelValues(op, "success")
		ExtractorRunsTotal.WithLabelValues(op, "error")
		ExtractorRunsTotal.WithLabelValues(op, "canceled")
		ExtractorRunDuration.WithLabelValues(op)
	}

	// --- Filesystem operations ---
	for _, op := range []string{"mkdir", "stat", "readdir", "open", "read", "remove"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
