package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultListLimit caps ListDownloads when no limit is given.
const DefaultListLimit = 100

// timestampLayouts are accepted when reading downloaded_at. Rows written by
// this package use the first; the others cover older ledgers.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// AppendDownload records one completed download. A zero CompletedAt is set to
// the current time. Timestamps are stored as RFC 3339 in UTC.
func (d *Database) AppendDownload(ctx context.Context, entry LedgerEntry) (err error) {
	start := time.Now()
	defer func() { recordQuery("append_download", start, err) }()

	if entry.Platform == "" || entry.SourceURL == "" || entry.Format == "" {
		return fmt.Errorf("%w: platform, url and format are required", ErrStorage)
	}

	completed := entry.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO downloads (request_id, platform, url, format, size_bytes, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.RequestID, entry.Platform, entry.SourceURL, entry.Format, entry.SizeBytes,
		completed.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: insert download: %w", ErrStorage, err)
	}
	return nil
}

// ListDownloads returns ledger entries, newest first.
func (d *Database) ListDownloads(ctx context.Context, opts ListOptions) (entries []LedgerEntry, err error) {
	start := time.Now()
	defer func() { recordQuery("list_downloads", start, err) }()

	var (
		where []string
		args  []any
	)
	if opts.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, opts.Platform)
	}
	if opts.Format != "" {
		where = append(where, "format = ?")
		args = append(args, opts.Format)
	}
	if !opts.Since.IsZero() {
		// julianday compares instants; RFC 3339 strings with differing
		// fractional digits do not sort lexically.
		where = append(where, "julianday(downloaded_at) >= julianday(?)")
		args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, request_id, platform, url, format, size_bytes, downloaded_at FROM downloads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query downloads: %w", ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e  LedgerEntry
			ts string
		)
		if err = rows.Scan(&e.ID, &e.RequestID, &e.Platform, &e.SourceURL, &e.Format, &e.SizeBytes, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan download: %w", ErrStorage, err)
		}
		e.CompletedAt = parseTimestamp(ts)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate downloads: %w", ErrStorage, err)
	}

	return entries, nil
}

// GetStats summarizes the ledger by platform and format.
func (d *Database) GetStats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT platform, format, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM downloads
		GROUP BY platform, format
		ORDER BY platform, format
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: query stats: %w", ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c PlatformFormatCount
		if err = rows.Scan(&c.Platform, &c.Format, &c.Downloads, &c.Bytes); err != nil {
			return Stats{}, fmt.Errorf("%w: scan stats: %w", ErrStorage, err)
		}
		stats.Counts = append(stats.Counts, c)
		stats.TotalDownloads += c.Downloads
		stats.TotalBytes += c.Bytes
	}
	if err = rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("%w: iterate stats: %w", ErrStorage, err)
	}

	if stats.TotalDownloads == 0 {
		return stats, nil
	}

	var first, last string
	err = d.db.QueryRowContext(ctx, `SELECT MIN(downloaded_at), MAX(downloaded_at) FROM downloads`).Scan(&first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: query range: %w", ErrStorage, err)
	}
	stats.FirstDownload = parseTimestamp(first)
	stats.LastDownload = parseTimestamp(last)

	return stats, nil
}

// parseTimestamp reads a stored downloaded_at value. Unparseable values
// yield the zero time.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
