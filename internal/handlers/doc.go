// Package handlers provides the HTTP handlers for the media porter API.
//
// It includes handlers for:
//   - Media downloads: GET /{platform}/{format}/download?url=...
//   - Health, liveness and readiness checks
//   - Build and version information
//
// Client mistakes (bad URLs, missing video IDs, oversized media) are answered
// with 400 and a JSON {"error": ...} body carrying the message. Every other
// failure is answered with 500 and a fixed message; its detail goes to the
// log tagged with the request ID.
package handlers
