package extractor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"media-porter/internal/mediatypes"
)

func TestNew(t *testing.T) {
	t.Parallel()

	e := New(Options{})
	if e == nil {
		t.Fatal("New() returned nil")
	}
	if e.opts.Retries != DefaultRetries {
		t.Errorf("Retries = %d, want %d", e.opts.Retries, DefaultRetries)
	}
	if e.jobs == nil {
		t.Error("Expected jobs map to be initialized")
	}

	e = New(Options{Retries: 3, FFmpegPath: "/opt/ffmpeg/bin"})
	if e.opts.Retries != 3 {
		t.Errorf("Retries = %d, want 3", e.opts.Retries)
	}
	if e.opts.FFmpegPath != "/opt/ffmpeg/bin" {
		t.Errorf("FFmpegPath = %q, want /opt/ffmpeg/bin", e.opts.FFmpegPath)
	}
}

func TestPlanFor(t *testing.T) {
	t.Parallel()

	dir := filepath.Join("/tmp", "scratch-123")

	tests := []struct {
		name   string
		format mediatypes.Format
		dir    string
		want   plan
	}{
		{
			name:   "mp3",
			format: mediatypes.FormatMP3,
			dir:    dir,
			want: plan{
				selector:     "bestaudio/best",
				extractAudio: true,
				audioFormat:  "mp3",
				audioQuality: "192K",
				output:       filepath.Join(dir, "%(title)s.%(ext)s"),
			},
		},
		{
			name:   "mp4",
			format: mediatypes.FormatMP4,
			dir:    dir,
			want: plan{
				selector:    "bestvideo+bestaudio/best",
				mergeFormat: "mp4",
				output:      filepath.Join(dir, "%(title)s.%(ext)s"),
			},
		},
		{
			name:   "metadata run has no output template",
			format: mediatypes.FormatMP4,
			want: plan{
				selector:    "bestvideo+bestaudio/best",
				mergeFormat: "mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := planFor(tt.format, tt.dir)
			if err != nil {
				t.Fatalf("planFor() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("planFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanForUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := planFor(mediatypes.Format("flac"), "/tmp")
	if !errors.Is(err, mediatypes.ErrUnknownFormat) {
		t.Errorf("planFor(flac) error = %v, want ErrUnknownFormat", err)
	}
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("planFor(flac) error = %v, want ErrExtraction", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	runErr := errors.New("exit status 1")

	tests := []struct {
		name       string
		stderr     string
		want       error
		wantDetail string
	}{
		{
			name:       "unavailable video",
			stderr:     "[youtube] abc: Downloading webpage\nERROR: [youtube] abc: Video unavailable\n",
			want:       ErrExtraction,
			wantDetail: "extraction failed: [youtube] abc: Video unavailable",
		},
		{
			name:       "postprocessing failure",
			stderr:     "[ExtractAudio] Destination: x.mp3\nERROR: Postprocessing: audio conversion failed: Error opening output files\n",
			want:       ErrTranscode,
			wantDetail: "transcoding failed: Postprocessing: audio conversion failed: Error opening output files",
		},
		{
			name:   "ffmpeg missing",
			stderr: "ERROR: You have requested merging of multiple formats but ffmpeg is not installed. Aborting due to --abort-on-error",
			want:   ErrTranscode,
		},
		{
			name:   "ffmpeg warning does not make it a transcode error",
			stderr: "WARNING: ffmpeg not found. The downloaded format may not be the best available.\nERROR: Unsupported URL: https://example.com\n",
			want:   ErrExtraction,
		},
		{
			name:       "no stderr falls back to run error",
			stderr:     "",
			want:       ErrExtraction,
			wantDetail: "extraction failed: exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := classify(tt.stderr, runErr)
			if !errors.Is(err, tt.want) {
				t.Fatalf("classify() = %v, want %v", err, tt.want)
			}
			if tt.wantDetail != "" && err.Error() != tt.wantDetail {
				t.Errorf("classify() message = %q, want %q", err.Error(), tt.wantDetail)
			}
		})
	}
}

func TestLastErrorLine(t *testing.T) {
	t.Parallel()

	stderr := "ERROR: first\nsome noise\nERROR: second  \nWARNING: trailing\n"
	if got := lastErrorLine(stderr); got != "second" {
		t.Errorf("lastErrorLine() = %q, want %q", got, "second")
	}
	if got := lastErrorLine("WARNING: only warnings"); got != "" {
		t.Errorf("lastErrorLine() = %q, want empty", got)
	}
}

func TestTrackAndCleanup(t *testing.T) {
	t.Parallel()

	e := New(Options{})

	ctx1, id1, err := e.track(context.Background(), "inspect", "https://youtu.be/a")
	if err != nil {
		t.Fatalf("track() error = %v", err)
	}
	ctx2, _, err := e.track(context.Background(), "materialize", "https://youtu.be/b")
	if err != nil {
		t.Fatalf("track() error = %v", err)
	}

	if got := e.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}

	e.untrack(id1)
	if ctx1.Err() == nil {
		t.Error("untrack() should cancel the job context")
	}
	if got := e.InFlight(); got != 1 {
		t.Errorf("InFlight() = %d, want 1", got)
	}

	e.Cleanup()
	if ctx2.Err() == nil {
		t.Error("Cleanup() should cancel running jobs")
	}
	if got := e.InFlight(); got != 0 {
		t.Errorf("InFlight() after Cleanup = %d, want 0", got)
	}

	if _, _, err := e.track(context.Background(), "inspect", "https://youtu.be/c"); !errors.Is(err, ErrClosed) {
		t.Errorf("track() after Cleanup error = %v, want ErrClosed", err)
	}
}

func TestInspectAfterCleanup(t *testing.T) {
	t.Parallel()

	e := New(Options{Executable: "/nonexistent/yt-dlp"})
	e.Cleanup()

	_, err := e.Inspect(context.Background(), "https://www.youtube.com/watch?v=abc", mediatypes.FormatMP3)
	if !errors.Is(err, ErrExtraction) || !errors.Is(err, ErrClosed) {
		t.Errorf("Inspect() error = %v, want ErrExtraction wrapping ErrClosed", err)
	}

	err = e.Materialize(context.Background(), "https://www.youtube.com/watch?v=abc", mediatypes.FormatMP3, t.TempDir())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Materialize() error = %v, want ErrClosed", err)
	}
}
