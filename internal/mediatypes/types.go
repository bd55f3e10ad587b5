package mediatypes

import (
	"errors"
	"fmt"
	"strings"
)

// Format is the output container requested by a caller.
type Format string

const (
	// FormatMP3 is an audio-only download transcoded to MP3.
	FormatMP3 Format = "mp3"
	// FormatMP4 is a merged video+audio download in an MP4 container.
	FormatMP4 Format = "mp4"
)

// Kind distinguishes audio from video outputs.
type Kind string

const (
	// KindAudio marks audio-only formats.
	KindAudio Kind = "audio"
	// KindVideo marks formats carrying a video stream.
	KindVideo Kind = "video"
)

const megabyte = 1024 * 1024

// Default size ceilings applied before any download starts.
const (
	DefaultMaxAudioBytes int64 = 100 * megabyte
	DefaultMaxVideoBytes int64 = 500 * megabyte
)

// Spec describes how a format is delivered to the client.
type Spec struct {
	Format      Format
	Kind        Kind
	Extension   string
	ContentType string
}

var specs = map[Format]Spec{
	FormatMP3: {
		Format:      FormatMP3,
		Kind:        KindAudio,
		Extension:   ".mp3",
		ContentType: "audio/mpeg",
	},
	FormatMP4: {
		Format:      FormatMP4,
		Kind:        KindVideo,
		Extension:   ".mp4",
		ContentType: "video/mp4",
	},
}

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unsupported format")

// ParseFormat maps a route segment such as "mp3" to a Format.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := specs[f]; !ok {
		return "", fmt.Errorf("%w: %q (valid: mp3, mp4)", ErrUnknownFormat, name)
	}
	return f, nil
}

// Lookup returns the delivery spec for a format.
func Lookup(f Format) (Spec, bool) {
	s, ok := specs[f]
	return s, ok
}

// Formats returns every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatMP3, FormatMP4}
}

// DefaultFilename is used when the extractor gives no usable title.
func (f Format) DefaultFilename() string {
	return "download." + string(f)
}

func (f Format) String() string {
	return string(f)
}

// FormatBytes renders a byte count as megabytes with one decimal, e.g. "600.0 MB".
func FormatBytes(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/megabyte)
}
