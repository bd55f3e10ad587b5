package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvMaxDownloads overrides the computed number of download slots.
const EnvMaxDownloads = "MAX_CONCURRENT_DOWNLOADS"

// DefaultMaxDownloads caps the computed slot count on large hosts. Every slot
// can hold a whole file in memory.
const DefaultMaxDownloads = 8

// Count returns the number of concurrent workers for a task type.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit caps the result; use 0 for no limit. A positive integer in
// MAX_CONCURRENT_DOWNLOADS replaces the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvMaxDownloads); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForDownloads returns the slot count for downloads. A download is network
// bound while yt-dlp fetches and CPU bound while ffmpeg converts, so it is
// sized as a mixed task.
func ForDownloads(limit int) int {
	return Count(1.5, limit)
}
