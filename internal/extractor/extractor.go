package extractor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"media-porter/internal/logging"
	"media-porter/internal/mediatypes"
	"media-porter/internal/metrics"
)

// Backend failure classes. Callers match them with errors.Is.
var (
	// ErrExtraction covers every backend failure other than post-processing:
	// unsupported or private media, network failures, a missing binary.
	ErrExtraction = errors.New("extraction failed")

	// ErrTranscode indicates the media was fetched but ffmpeg post-processing failed.
	ErrTranscode = errors.New("transcoding failed")

	// ErrClosed is returned for jobs submitted after Cleanup.
	ErrClosed = errors.New("extractor is shut down")
)

// Default option values handed to yt-dlp.
const (
	DefaultRetries = 10
	audioQuality   = "192K"
	outputTemplate = "%(title)s.%(ext)s"
)

// Options configures the yt-dlp adapter.
type Options struct {
	// Executable is the yt-dlp binary. Empty means PATH lookup.
	Executable string
	// FFmpegPath is passed through as --ffmpeg-location when set.
	FFmpegPath string
	// Retries bounds both --retries and --fragment-retries.
	Retries int
}

// Extractor runs yt-dlp for metadata lookups and downloads. It tracks every
// running job so they can be cancelled together on shutdown.
type Extractor struct {
	opts Options

	jobsMu sync.Mutex
	jobs   map[uint64]job
	nextID uint64
	closed bool
}

type job struct {
	url    string
	op     string
	cancel context.CancelFunc
}

// New creates an Extractor. A non-positive Retries falls back to DefaultRetries.
func New(opts Options) *Extractor {
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	return &Extractor{
		opts: opts,
		jobs: make(map[uint64]job),
	}
}

// Inspect fetches metadata for url without downloading media. The format
// selector for f is applied so reported sizes match what Materialize fetches.
func (e *Extractor) Inspect(ctx context.Context, url string, f mediatypes.Format) (*Metadata, error) {
	p, err := planFor(f, "")
	if err != nil {
		return nil, err
	}

	cmd := e.base().
		Format(p.selector).
		SkipDownload().
		PrintJSON()

	result, err := e.run(ctx, "inspect", url, cmd)
	if err != nil {
		return nil, err
	}

	meta, err := parseMetadata(result.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return meta, nil
}

// Materialize downloads url into dir and post-processes it into format f.
// The produced file is named after the media title.
func (e *Extractor) Materialize(ctx context.Context, url string, f mediatypes.Format, dir string) error {
	p, err := planFor(f, dir)
	if err != nil {
		return err
	}

	_, err = e.run(ctx, "materialize", url, p.apply(e.base()))
	return err
}

// Cleanup cancels every running job and refuses new ones.
func (e *Extractor) Cleanup() {
	e.jobsMu.Lock()
	defer e.jobsMu.Unlock()

	e.closed = true
	for id, j := range e.jobs {
		logging.Info("Cancelling %s job for: %s", j.op, j.url)
		j.cancel()
		delete(e.jobs, id)
	}
}

// InFlight returns the number of running jobs.
func (e *Extractor) InFlight() int {
	e.jobsMu.Lock()
	defer e.jobsMu.Unlock()
	return len(e.jobs)
}

// base returns a command carrying the options shared by every invocation.
func (e *Extractor) base() *ytdlp.Command {
	retries := strconv.Itoa(e.opts.Retries)

	cmd := ytdlp.New().
		NoPlaylist().
		NoProgress().
		Retries(retries).
		FragmentRetries(retries)

	if e.opts.Executable != "" {
		cmd = cmd.SetExecutable(e.opts.Executable)
	}
	if e.opts.FFmpegPath != "" {
		cmd = cmd.FFmpegLocation(e.opts.FFmpegPath)
	}
	return cmd
}

func (e *Extractor) run(ctx context.Context, op, url string, cmd *ytdlp.Command) (*ytdlp.Result, error) {
	ctx, id, err := e.track(ctx, op, url)
	if err != nil {
		return nil, err
	}
	defer e.untrack(id)

	metrics.ExtractorJobsInProgress.Inc()
	defer metrics.ExtractorJobsInProgress.Dec()

	start := time.Now()
	result, err := cmd.Run(ctx, url)
	metrics.ExtractorRunDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			metrics.ExtractorRunsTotal.WithLabelValues(op, "canceled").Inc()
			return nil, fmt.Errorf("%w: %w", ErrExtraction, ctx.Err())
		}

		metrics.ExtractorRunsTotal.WithLabelValues(op, "error").Inc()

		var stderr string
		if result != nil {
			stderr = result.Stderr
		}
		classified := classify(stderr, err)
		logging.Debug("yt-dlp %s failed for %s: %v\n%s", op, url, err, stderr)
		return nil, classified
	}

	metrics.ExtractorRunsTotal.WithLabelValues(op, "success").Inc()
	logging.Debug("yt-dlp %s finished for %s in %v", op, url, time.Since(start))
	return result, nil
}

func (e *Extractor) track(ctx context.Context, op, url string) (context.Context, uint64, error) {
	e.jobsMu.Lock()
	defer e.jobsMu.Unlock()

	if e.closed {
		return nil, 0, fmt.Errorf("%w: %w", ErrExtraction, ErrClosed)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.nextID++
	e.jobs[e.nextID] = job{url: url, op: op, cancel: cancel}
	return ctx, e.nextID, nil
}

func (e *Extractor) untrack(id uint64) {
	e.jobsMu.Lock()
	j, ok := e.jobs[id]
	delete(e.jobs, id)
	e.jobsMu.Unlock()

	if ok {
		j.cancel()
	}
}

// classify maps a failed run to ErrTranscode or ErrExtraction by inspecting
// the final error line, which is kept as the error detail.
func classify(stderr string, runErr error) error {
	detail := lastErrorLine(stderr)
	if detail == "" {
		detail = runErr.Error()
	}

	lower := strings.ToLower(detail)
	if strings.Contains(lower, "postprocessing") || strings.Contains(lower, "ffmpeg") || strings.Contains(lower, "ffprobe") {
		return fmt.Errorf("%w: %s", ErrTranscode, detail)
	}
	return fmt.Errorf("%w: %s", ErrExtraction, detail)
}

// lastErrorLine returns the last "ERROR:" line yt-dlp printed, if any.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	return ""
}
