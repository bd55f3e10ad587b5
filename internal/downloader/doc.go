// Package downloader orchestrates a single media download.
//
// [Downloader.Fetch] validates and normalizes the URL, asks the backend for
// metadata to enforce the per-format size ceiling, materializes the media in
// a private scratch directory, reads the finished file into memory and
// records the download in the ledger. The scratch directory is removed on
// every path. The orchestrator is the only place a ledger entry is written.
package downloader
