// Package main provides the entry point for the media porter service.
//
// Media porter downloads a single YouTube, TikTok or Instagram video as MP3
// audio or MP4 video and returns the file in the HTTP response:
//
//	GET /{platform}/{format}/download?url=<video URL>
//
// The URL is sanitized and reduced to a canonical form, the expected size is
// checked against a per-format ceiling, and yt-dlp (with FFmpeg) downloads
// the media into a private scratch directory. The file is read into memory,
// the scratch directory is removed, and the bytes are returned with
// Content-Type, Content-Length and an attachment Content-Disposition. Each
// successful download is appended to a SQLite ledger.
//
// # Application Lifecycle
//
//  1. Configuration Loading: .env seeding, environment variables, directory checks
//  2. Metrics Registration: label pre-population and filesystem observer wiring
//  3. Database Initialization: SQLite ledger in WAL mode with schema migrations
//  4. Extractor Initialization: yt-dlp and FFmpeg availability checks
//  5. HTTP Server Setup: routes, request IDs, rate limiting, metrics, access log
//  6. Graceful Shutdown: on SIGINT/SIGTERM in-flight yt-dlp processes are
//     cancelled, servers drain, the collector stops and the database closes
//
// # Endpoints
//
//   - GET /{platform}/{format}/download: media download
//   - GET /health, /healthz: health summary including ledger reachability
//   - GET /livez: liveness check
//   - GET /readyz: readiness check (ledger ping)
//   - GET /version: build information
//   - GET :METRICS_PORT/metrics: Prometheus metrics
//
// See package startup for the configuration reference.
package main
