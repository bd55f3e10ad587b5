/*
Package streaming writes response bodies with timeout protection.

A slow or vanished client must not pin a goroutine and a multi-hundred
megabyte buffer forever. [TimeoutWriter] splits writes into chunks and sets a
connection write deadline before each one through http.ResponseController,
so a stalled client fails the write with [ErrWriteTimeout]. A cancelled
request context stops the write with [ErrClientGone].

Fully buffered bodies go through [WriteWithTimeout], which also sets an exact
Content-Length:

	w.Header().Set("Content-Type", "audio/mpeg")
	err := streaming.WriteWithTimeout(r.Context(), w, data, streaming.DefaultTimeoutWriterConfig())
	if errors.Is(err, streaming.ErrClientGone) {
	    return // client left, nothing to report
	}

ResponseWriters that cannot set deadlines, such as httptest.ResponseRecorder,
are written without them.
*/
package streaming
