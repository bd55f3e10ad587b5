package extractor

import (
	"fmt"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"

	"media-porter/internal/mediatypes"
)

// plan is the per-format option bundle for a yt-dlp run.
type plan struct {
	selector     string
	extractAudio bool
	audioFormat  string
	audioQuality string
	mergeFormat  string
	output       string
}

// planFor builds the option bundle for f. dir is the scratch directory the
// output template is rooted in; it is empty for metadata runs.
func planFor(f mediatypes.Format, dir string) (plan, error) {
	var p plan

	switch f {
	case mediatypes.FormatMP3:
		p.selector = "bestaudio/best"
		p.extractAudio = true
		p.audioFormat = string(mediatypes.FormatMP3)
		p.audioQuality = audioQuality
	case mediatypes.FormatMP4:
		p.selector = "bestvideo+bestaudio/best"
		p.mergeFormat = string(mediatypes.FormatMP4)
	default:
		return plan{}, fmt.Errorf("%w: %w: %q", ErrExtraction, mediatypes.ErrUnknownFormat, f)
	}

	if dir != "" {
		p.output = filepath.Join(dir, outputTemplate)
	}
	return p, nil
}

// apply adds the bundle's flags to cmd.
func (p plan) apply(cmd *ytdlp.Command) *ytdlp.Command {
	cmd = cmd.Format(p.selector)

	if p.extractAudio {
		cmd = cmd.ExtractAudio().
			AudioFormat(p.audioFormat).
			AudioQuality(p.audioQuality)
	}
	if p.mergeFormat != "" {
		cmd = cmd.MergeOutputFormat(p.mergeFormat)
	}
	if p.output != "" {
		cmd = cmd.Output(p.output)
	}
	return cmd
}
