package handlers

import (
	"errors"
	"mime"
	"net/http"

	"media-porter/internal/downloader"
	"media-porter/internal/logging"
	"media-porter/internal/mediatypes"
	"media-porter/internal/middleware"
	"media-porter/internal/platform"
	"media-porter/internal/streaming"

	"github.com/gorilla/mux"
)

const internalErrorMessage = "Internal server error"

// Download handles GET /{platform}/{format}/download?url=...
//
// The media is fully buffered by the downloader before the first byte is
// written, so every failure can still be reported as a JSON error.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := middleware.RequestIDFromContext(r.Context())

	p, err := platform.Parse(vars["platform"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	format, err := mediatypes.ParseFormat(vars["format"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSONError(w, "missing url query parameter", http.StatusBadRequest)
		return
	}

	res, err := h.fetcher.Fetch(r.Context(), downloader.Request{
		Platform:  p,
		URL:       rawURL,
		Format:    format,
		RequestID: requestID,
	})
	if err != nil {
		h.writeFetchError(w, r, requestID, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(res.Filename))
	w.Header().Set("Cache-Control", "no-store")

	if err := streaming.WriteWithTimeout(r.Context(), w, res.Data, h.streamConfig); err != nil {
		if errors.Is(err, streaming.ErrClientGone) {
			logging.WithRequestID(requestID).Debugf("Client disconnected during download of %s", res.SourceURL)
			return
		}
		logging.WithRequestID(requestID).Warnf("Failed to write %d bytes for %s: %v", len(res.Data), res.SourceURL, err)
	}
}

func (h *Handlers) writeFetchError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	if isClientError(err) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.Context().Err() != nil {
		logging.WithRequestID(requestID).Debugf("Download abandoned by client: %v", err)
	} else {
		logging.WithRequestID(requestID).Errorf("Download failed: %v", err)
	}
	writeJSONError(w, internalErrorMessage, http.StatusInternalServerError)
}

// isClientError reports errors caused by the request itself.
func isClientError(err error) bool {
	return errors.Is(err, platform.ErrInvalidURL) ||
		errors.Is(err, platform.ErrVideoNotFound) ||
		errors.Is(err, downloader.ErrFileSize) ||
		errors.Is(err, mediatypes.ErrUnknownFormat)
}

// contentDisposition builds an attachment header. mime.FormatMediaType emits
// the RFC 2231 filename* form for names that are not plain ASCII tokens.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
