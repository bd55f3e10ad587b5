// Package middleware provides HTTP middleware for the media porter service.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics keyed by route template
//   - Request ID assignment and propagation
//   - Per-client rate limiting
package middleware
