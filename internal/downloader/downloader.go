package downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"media-porter/internal/database"
	"media-porter/internal/extractor"
	"media-porter/internal/filesystem"
	"media-porter/internal/logging"
	"media-porter/internal/mediatypes"
	"media-porter/internal/metrics"
	"media-porter/internal/platform"
)

// Fetch failure classes beyond the platform validation errors.
var (
	// ErrFileSize indicates the precheck found the media larger than the format's ceiling.
	ErrFileSize = errors.New("file too large")

	ErrExtraction = extractor.ErrExtraction
	ErrTranscode  = extractor.ErrTranscode
)

// Backend is the external extraction and transcoding engine.
type Backend interface {
	Inspect(ctx context.Context, url string, f mediatypes.Format) (*extractor.Metadata, error)
	Materialize(ctx context.Context, url string, f mediatypes.Format, dir string) error
}

// Ledger records completed downloads.
type Ledger interface {
	AppendDownload(ctx context.Context, entry database.LedgerEntry) error
}

// Slots bounds how many fetches run at once.
type Slots interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Pauser holds new fetches back while the process is short of memory.
type Pauser interface {
	Wait(ctx context.Context) error
}

// Options configures a Downloader.
type Options struct {
	// ScratchRoot is the parent of per-fetch scratch directories. Empty uses the OS temp dir.
	ScratchRoot string
	// MaxAudioBytes and MaxVideoBytes are the precheck ceilings. Zero uses the defaults.
	MaxAudioBytes int64
	MaxVideoBytes int64
	// LedgerTimeout bounds the ledger append after a successful fetch.
	LedgerTimeout time.Duration
	// Slots and Memory gate the start of a fetch. Either may be nil.
	Slots  Slots
	Memory Pauser
}

// Request is one download request as received from the HTTP surface.
type Request struct {
	Platform  platform.Platform
	URL       string
	Format    mediatypes.Format
	RequestID string
}

// Result is the fetched media. The caller owns Data.
type Result struct {
	Data        []byte
	ContentType string
	Filename    string
	SourceURL   string
}

// Downloader runs the fetch pipeline: validate, precheck, materialize,
// read back, record.
type Downloader struct {
	backend Backend
	ledger  Ledger
	opts    Options
	now     func() time.Time
	seq     atomic.Uint64
}

// New creates a Downloader. ledger may be nil, in which case nothing is recorded.
func New(backend Backend, ledger Ledger, opts Options) *Downloader {
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = mediatypes.DefaultMaxAudioBytes
	}
	if opts.MaxVideoBytes <= 0 {
		opts.MaxVideoBytes = mediatypes.DefaultMaxVideoBytes
	}
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = 5 * time.Second
	}

	return &Downloader{
		backend: backend,
		ledger:  ledger,
		opts:    opts,
		now:     time.Now,
	}
}

// Limit returns the size ceiling for a media kind.
func (d *Downloader) Limit(kind mediatypes.Kind) int64 {
	if kind == mediatypes.KindAudio {
		return d.opts.MaxAudioBytes
	}
	return d.opts.MaxVideoBytes
}

// Fetch downloads the media behind req and returns it in memory. Validation
// errors are returned before any backend call. On success exactly one ledger
// entry is appended; a ledger failure is logged and does not fail the fetch.
func (d *Downloader) Fetch(ctx context.Context, req Request) (res *Result, err error) {
	spec, ok := mediatypes.Lookup(req.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", mediatypes.ErrUnknownFormat, req.Format)
	}

	normalized, err := platform.Normalize(req.Platform, req.URL)
	if err != nil {
		d.record(req, 0, err)
		return nil, err
	}

	log := logging.WithRequestID(req.RequestID)

	release, err := d.admit(ctx)
	if err != nil {
		err = fmt.Errorf("waiting to start download: %w", err)
		d.record(req, 0, err)
		return nil, err
	}
	defer release()

	log.Debugf("Fetching %s as %s", normalized, req.Format)

	start := d.now()
	metrics.DownloadsInProgress.Inc()
	defer func() {
		metrics.DownloadsInProgress.Dec()
		metrics.DownloadDuration.WithLabelValues(string(req.Platform), string(req.Format)).
			Observe(d.now().Sub(start).Seconds())
		var size int
		if res != nil {
			size = len(res.Data)
		}
		d.record(req, size, err)
	}()

	if err := d.precheck(ctx, normalized, spec); err != nil {
		return nil, err
	}

	name, data, err := d.materialize(ctx, normalized, spec)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Data:        data,
		ContentType: spec.ContentType,
		Filename:    suggestedFilename(name, spec),
		SourceURL:   normalized,
	}

	d.appendLedger(ctx, req, normalized, int64(len(data)))

	log.Infof("Fetched %s (%s, %s)", normalized, req.Format, mediatypes.FormatBytes(int64(len(data))))
	return res, nil
}

// admit blocks until memory allows a new fetch and a slot is free.
func (d *Downloader) admit(ctx context.Context) (func(), error) {
	if d.opts.Memory == nil && d.opts.Slots == nil {
		return func() {}, nil
	}

	metrics.DownloadsWaiting.Inc()
	defer metrics.DownloadsWaiting.Dec()

	if d.opts.Memory != nil {
		if err := d.opts.Memory.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if d.opts.Slots == nil {
		return func() {}, nil
	}
	return d.opts.Slots.Acquire(ctx)
}

// precheck rejects media whose reported size exceeds the ceiling. Unknown
// sizes pass.
func (d *Downloader) precheck(ctx context.Context, url string, spec mediatypes.Spec) error {
	meta, err := d.backend.Inspect(ctx, url, spec.Format)
	if err != nil {
		return backendError(err)
	}

	limit := d.Limit(spec.Kind)
	if meta.SizeKnown() && meta.SizeBytes > limit {
		return fmt.Errorf("%w: file size (~%s) exceeds limit (%s)",
			ErrFileSize, mediatypes.FormatBytes(meta.SizeBytes), mediatypes.FormatBytes(limit))
	}
	return nil
}

// materialize runs the backend in a fresh scratch directory and reads the
// result back. The directory is removed before returning.
func (d *Downloader) materialize(ctx context.Context, url string, spec mediatypes.Spec) (string, []byte, error) {
	scratch, err := filesystem.NewScratch(d.opts.ScratchRoot, fmt.Sprintf("media-porter-%d", d.seq.Add(1)))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer func() {
		_ = scratch.Release()
	}()

	if err := d.backend.Materialize(ctx, url, spec.Format, scratch.Path()); err != nil {
		return "", nil, backendError(err)
	}

	name, data, err := scratch.ReadOutput(spec.Extension)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return name, data, nil
}

func (d *Downloader) appendLedger(ctx context.Context, req Request, url string, size int64) {
	if d.ledger == nil {
		return
	}

	// The response is already committed to succeed; a client that goes away
	// now must not lose the ledger row.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.LedgerTimeout)
	defer cancel()

	err := d.ledger.AppendDownload(ctx, database.LedgerEntry{
		RequestID:   req.RequestID,
		Platform:    string(req.Platform),
		SourceURL:   url,
		Format:      string(req.Format),
		SizeBytes:   size,
		CompletedAt: d.now().UTC(),
	})
	if err != nil {
		metrics.LedgerWriteErrors.Inc()
		logging.WithRequestID(req.RequestID).Warnf("Failed to record download of %s: %v", url, err)
	}
}

func (d *Downloader) record(req Request, size int, err error) {
	metrics.DownloadsTotal.WithLabelValues(string(req.Platform), string(req.Format), Status(err)).Inc()
	if err == nil {
		metrics.DownloadBytes.WithLabelValues(string(req.Format)).Observe(float64(size))
	}
}

// Status maps a Fetch error to a short label for metrics and logs.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, platform.ErrInvalidURL), errors.Is(err, mediatypes.ErrUnknownFormat):
		return "invalid_url"
	case errors.Is(err, platform.ErrVideoNotFound):
		return "video_not_found"
	case errors.Is(err, ErrFileSize):
		return "file_too_large"
	case errors.Is(err, ErrTranscode):
		return "transcode_error"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	default:
		return "error"
	}
}

// backendError makes sure a backend failure carries one of the backend classes.
func backendError(err error) error {
	if errors.Is(err, ErrExtraction) || errors.Is(err, ErrTranscode) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExtraction, err)
}

// suggestedFilename keeps the backend's title-based name with the format's
// extension, falling back to "download.<ext>".
func suggestedFilename(name string, spec mediatypes.Spec) string {
	stem := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	if stem == "" || stem == "NA" || strings.HasPrefix(stem, ".") {
		return spec.Format.DefaultFilename()
	}
	return stem + spec.Extension
}
