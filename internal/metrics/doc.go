// Package metrics provides Prometheus instrumentation for media-porter.
//
// All metrics are registered with the default registry through promauto and
// prefixed with "media_porter_". They are grouped by concern:
//
//   - HTTP: request counts, durations, in-flight requests, rate-limit rejections
//   - Database: ledger query counts and durations, open connections, file sizes
//   - Downloads: outcomes by platform/format/status, duration, delivered bytes
//   - Extractor: backend runs by operation and status, run duration
//   - Filesystem: scratch directory operations and stale-handle retries
//   - Ledger: totals refreshed periodically by the [Collector]
//
// Expose them by mounting promhttp.Handler():
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Record from other packages through the exported variables:
//
//	metrics.DownloadsTotal.WithLabelValues("youtube", "mp3", "success").Inc()
//
// # Collector
//
// [Collector] polls a [StatsProvider] (the ledger) on an interval and updates
// the ledger gauges and the SQLite file sizes:
//
//	collector := metrics.NewCollector(provider, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Download failure ratio by platform:
//
//	sum(rate(media_porter_downloads_total{status!="success"}[5m])) by (platform) /
//	sum(rate(media_porter_downloads_total[5m])) by (platform)
//
// P95 download time:
//
//	histogram_quantile(0.95, sum(rate(media_porter_download_duration_seconds_bucket[5m])) by (le, format))
package metrics
