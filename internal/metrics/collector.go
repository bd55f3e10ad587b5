package metrics

import (
	"context"
	"os"
	"time"

	"media-porter/internal/logging"
)

// StatsProvider interface for collecting ledger stats
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current ledger statistics
type Stats struct {
	TotalDownloads int
	TotalBytes     int64
	Counts         []DownloadCount
	LastDownload   time.Time
}

// DownloadCount is the number of recorded downloads for one platform and format.
type DownloadCount struct {
	Platform  string
	Format    string
	Downloads int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	timeout       time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty, in which
// case database file sizes are not reported.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		timeout:       10 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	for _, count := range stats.Counts {
		LedgerDownloads.WithLabelValues(count.Platform, count.Format).Set(float64(count.Downloads))
	}
	LedgerBytes.Set(float64(stats.TotalBytes))
	if !stats.LastDownload.IsZero() {
		LedgerLastDownloadTimestamp.Set(float64(stats.LastDownload.Unix()))
	}

	logging.Debug("Metrics collected: downloads=%d, bytes=%d", stats.TotalDownloads, stats.TotalBytes)
}

// collectDBSize reports the size of the SQLite main, WAL and SHM files.
// Missing files are reported as zero.
func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(size))
	}
}
