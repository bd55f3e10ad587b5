package extractor

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Metadata is the subset of yt-dlp's info JSON the service needs.
type Metadata struct {
	ID        string
	Title     string
	Extractor string
	Duration  float64
	// SizeBytes is the expected download size, or 0 when the backend does not know it.
	SizeBytes int64
}

// SizeKnown reports whether the backend reported a size.
func (m *Metadata) SizeKnown() bool {
	return m != nil && m.SizeBytes > 0
}

var errNoInfo = errors.New("no info JSON in backend output")

// infoJSON mirrors the fields of yt-dlp's --print-json output used for size
// estimation. Sizes are floats because yt-dlp emits approximations as floats.
type infoJSON struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	ExtractorKey     string       `json:"extractor_key"`
	Duration         float64      `json:"duration"`
	Filesize         *float64     `json:"filesize"`
	FilesizeApprox   *float64     `json:"filesize_approx"`
	RequestedFormats []formatJSON `json:"requested_formats"`
}

type formatJSON struct {
	FormatID       string   `json:"format_id"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
}

// parseMetadata reads the last info JSON object from yt-dlp's stdout.
func parseMetadata(stdout string) (*Metadata, error) {
	var line string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); strings.HasPrefix(text, "{") {
			line = text
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read backend output: %w", err)
	}
	if line == "" {
		return nil, errNoInfo
	}

	var info infoJSON
	if err := json.Unmarshal([]byte(line), &info); err != nil {
		return nil, fmt.Errorf("decode info JSON: %w", err)
	}

	return &Metadata{
		ID:        info.ID,
		Title:     info.Title,
		Extractor: info.ExtractorKey,
		Duration:  info.Duration,
		SizeBytes: info.size(),
	}, nil
}

// size prefers the exact filesize, then the approximation, then the sum over
// the separately fetched video and audio formats.
func (i infoJSON) size() int64 {
	if n := firstPositive(i.Filesize, i.FilesizeApprox); n > 0 {
		return n
	}

	var total int64
	for _, f := range i.RequestedFormats {
		total += firstPositive(f.Filesize, f.FilesizeApprox)
	}
	return total
}

func firstPositive(values ...*float64) int64 {
	for _, v := range values {
		if v != nil && *v > 0 {
			return int64(*v)
		}
	}
	return 0
}
