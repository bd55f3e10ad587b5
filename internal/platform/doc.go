// Package platform validates user-supplied video URLs and rewrites them into
// the minimal canonical form for each supported host.
//
// Validation happens in two layers:
//
//   - [Sanitize] checks the generic shape: http or https scheme and a host.
//   - [Normalize] applies the per-platform rule selected by a [Platform] tag.
//
// Per-platform rules:
//
//   - YouTube: youtu.be/<id> and youtube.com/watch?v=<id> both become
//     https://www.youtube.com/watch?v=<id>. Playlist, timestamp and tracking
//     parameters are dropped.
//   - TikTok and Instagram: scheme, host and path are kept, the query is dropped.
//
// Normalization is idempotent. Errors wrap [ErrInvalidURL] or [ErrVideoNotFound]
// and are safe to show to the caller.
package platform
