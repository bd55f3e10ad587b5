// Package database stores the download ledger in SQLite.
//
// The ledger is a single append-only table, downloads, with one row per
// completed download: platform, normalized URL, format, delivered size,
// request id and the completion time as an RFC 3339 UTC string. The
// database runs in WAL mode with a busy timeout. Writes are serialized with
// a mutex; reads go through the connection pool.
//
// Every error returned by this package wraps ErrStorage.
package database
