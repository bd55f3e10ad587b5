package database

import "time"

// LedgerEntry is one completed download. Entries are never updated.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"requestId,omitempty"`
	Platform    string    `json:"platform"`
	SourceURL   string    `json:"url"`
	Format      string    `json:"format"`
	SizeBytes   int64     `json:"sizeBytes"`
	CompletedAt time.Time `json:"downloadedAt"`
}

// ListOptions filters ListDownloads. Zero values mean no filter.
type ListOptions struct {
	Platform string
	Format   string
	Since    time.Time
	Limit    int
}

// Stats summarizes the ledger.
type Stats struct {
	TotalDownloads int                   `json:"totalDownloads"`
	TotalBytes     int64                 `json:"totalBytes"`
	Counts         []PlatformFormatCount `json:"counts"`
	FirstDownload  time.Time             `json:"firstDownload,omitempty"`
	LastDownload   time.Time             `json:"lastDownload,omitempty"`
}

// PlatformFormatCount is the number of downloads for one platform/format pair.
type PlatformFormatCount struct {
	Platform  string `json:"platform"`
	Format    string `json:"format"`
	Downloads int    `json:"downloads"`
	Bytes     int64  `json:"bytes"`
}
