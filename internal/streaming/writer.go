package streaming

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"media-porter/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured timeout.
	// This typically occurs when a client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the body was sent.
	// This is detected via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the writer was closed or its context expired.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig configures the timeout writer behavior
type TimeoutWriterConfig struct {
	// WriteTimeout bounds each chunk write. It is applied as a connection
	// write deadline when the ResponseWriter supports one.
	WriteTimeout time.Duration
	// MaxDuration is the absolute maximum streaming duration (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received)
	ChunkSize int
	// OnProgress is called after every mebibyte written
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultTimeoutWriterConfig returns sensible defaults
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		MaxDuration:  0,          // Unlimited by default
		ChunkSize:    256 * 1024, // 256KB chunks for media
	}
}

// TimeoutWriter wraps an http.ResponseWriter with per-chunk write deadlines.
type TimeoutWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	ctx       context.Context
	config    TimeoutWriterConfig
	startTime time.Time

	mu           sync.Mutex
	bytesWritten int64
	closed       bool
	// deadlines is false once the ResponseWriter has reported it cannot set them.
	deadlines bool
}

// NewTimeoutWriter creates a new timeout-protected writer
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	return &TimeoutWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       ctx,
		config:    config,
		startTime: time.Now(),
		deadlines: config.WriteTimeout > 0,
	}
}

// Write implements io.Writer with timeout protection
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return 0, ErrStreamCanceled
	}

	total := 0
	for len(p) > 0 {
		if err := tw.ctx.Err(); err != nil {
			return total, tw.contextError()
		}
		if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
			return total, ErrWriteTimeout
		}

		chunk := p
		if tw.config.ChunkSize > 0 && len(chunk) > tw.config.ChunkSize {
			chunk = chunk[:tw.config.ChunkSize]
		}

		n, err := tw.writeChunk(chunk)
		total += n
		if err != nil {
			return total, err
		}
		p = p[n:]
	}

	return total, nil
}

// writeChunk writes one chunk under a fresh write deadline and flushes it.
// Callers hold tw.mu.
func (tw *TimeoutWriter) writeChunk(p []byte) (int, error) {
	if tw.deadlines {
		if err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout)); err != nil {
			if !errors.Is(err, http.ErrNotSupported) {
				return 0, err
			}
			tw.deadlines = false
		}
	}

	n, err := tw.w.Write(p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, ErrWriteTimeout
		}
		if tw.ctx.Err() != nil {
			return n, tw.contextError()
		}
		return n, err
	}

	if ferr := tw.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		logging.Debug("Flush failed: %v", ferr)
	}

	before := tw.bytesWritten
	tw.bytesWritten += int64(n)
	if tw.config.OnProgress != nil && tw.bytesWritten/(1024*1024) > before/(1024*1024) {
		tw.config.OnProgress(tw.bytesWritten, time.Since(tw.startTime))
	}

	return n, nil
}

// contextError returns an appropriate error based on context state
func (tw *TimeoutWriter) contextError() error {
	if errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed and clears any write deadline it set.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true

	if tw.deadlines {
		if err := tw.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	return nil
}

// Stats returns streaming statistics
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// WriteWithTimeout sends a fully buffered body with an exact Content-Length.
// Content-Type and any other headers must be set by the caller beforehand.
func WriteWithTimeout(ctx context.Context, w http.ResponseWriter, data []byte, config TimeoutWriterConfig) error {
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err := tw.Write(data)

	bytesWritten, duration := tw.Stats()
	logging.Debug("Body written: %d/%d bytes in %v", bytesWritten, len(data), duration)

	return err
}
