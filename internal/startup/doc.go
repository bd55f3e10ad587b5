// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. Before
// reading, the environment is seeded from the file named by ENV_FILE, or from
// ./.env when it exists; variables already set take precedence.
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - DB_DSN: Path of the SQLite download ledger (default: ./data/downloads.db)
//   - SCRATCH_DIR: Parent of per-request scratch directories (default: OS temp dir)
//   - YTDLP_PATH: yt-dlp binary (default: PATH lookup)
//   - FFMPEG_PATH: FFmpeg binary or directory handed to yt-dlp (default: PATH lookup)
//   - MAX_MP3_SIZE_MB: Size ceiling for audio downloads (default: 100)
//   - MAX_MP4_SIZE_MB: Size ceiling for video downloads (default: 500)
//   - EXTRACTOR_RETRIES: yt-dlp retries and fragment retries (default: 10)
//   - RATE_LIMIT_RPS: Per-client requests per second, 0 disables (default: 0)
//   - RATE_LIMIT_BURST: Per-client burst size (default: 10)
//   - TRUSTED_PROXIES: Comma-separated proxy addresses or CIDRs whose
//     X-Forwarded-For is believed by the rate limiter (default: none)
//   - MAX_CONCURRENT_DOWNLOADS: Downloads run at once (default: 1.5 per CPU, at most 8)
//   - MEMORY_LIMIT: Container memory limit in bytes, used to set GOMEMLIMIT
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap (default: 0.75)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Both the database directory and the scratch directory must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X media-porter/internal/startup.Version=1.2.0 -X media-porter/internal/startup.Commit=$(git rev-parse --short HEAD)"
package startup
