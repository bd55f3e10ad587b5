package platform

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors for URL validation. Both map to 400 responses.
var (
	// ErrInvalidURL indicates a malformed URL, an unsupported scheme, or a host
	// that does not belong to the requested platform.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrVideoNotFound indicates the URL is well-formed but carries no video identifier.
	ErrVideoNotFound = errors.New("video not found")
)

// Platform identifies a supported video host.
type Platform string

const (
	YouTube   Platform = "youtube"
	TikTok    Platform = "tiktok"
	Instagram Platform = "instagram"
	Unknown   Platform = "unknown"
)

// Host fragments used for detection and validation.
const (
	youtubeDomain   = "youtube.com"
	youtubeShort    = "youtu.be"
	tiktokDomain    = "tiktok.com"
	instagramDomain = "instagram.com"
)

// YouTubeWatchURL is the canonical form every YouTube link is rebuilt into.
const YouTubeWatchURL = "https://www.youtube.com/watch"

type normalizer func(u *url.URL) (string, error)

var normalizers = map[Platform]normalizer{
	YouTube:   normalizeYouTube,
	TikTok:    normalizeTikTok,
	Instagram: normalizeInstagram,
}

func (p Platform) String() string {
	return string(p)
}

// Parse maps a route segment such as "youtube" to a Platform.
func Parse(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := normalizers[p]; !ok {
		return Unknown, fmt.Errorf("%w: unsupported platform %q", ErrInvalidURL, name)
	}
	return p, nil
}

// detect derives the platform from a host name.
func detect(host string) Platform {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, youtubeDomain), strings.Contains(host, youtubeShort):
		return YouTube
	case strings.Contains(host, tiktokDomain):
		return TikTok
	case strings.Contains(host, instagramDomain):
		return Instagram
	default:
		return Unknown
	}
}

// Sanitize trims the input and checks that it is an absolute http(s) URL with a host.
func Sanitize(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed URL", ErrInvalidURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: only HTTP/HTTPS URLs are allowed", ErrInvalidURL)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing domain", ErrInvalidURL)
	}

	return u, nil
}

// Normalize sanitizes raw and rewrites it into the canonical form for p.
// Applying Normalize to its own output returns the same string.
func Normalize(p Platform, raw string) (string, error) {
	fn, ok := normalizers[p]
	if !ok {
		return "", fmt.Errorf("%w: unsupported platform %q", ErrInvalidURL, p)
	}

	u, err := Sanitize(raw)
	if err != nil {
		return "", err
	}

	return fn(u)
}

func normalizeYouTube(u *url.URL) (string, error) {
	if detect(u.Host) != YouTube {
		return "", fmt.Errorf("%w: only YouTube URLs are allowed", ErrInvalidURL)
	}

	var id string
	if strings.Contains(strings.ToLower(u.Host), youtubeShort) {
		id, _, _ = strings.Cut(strings.Trim(u.Path, "/"), "/")
	} else {
		id = u.Query().Get("v")
	}

	if id == "" {
		return "", fmt.Errorf("%w: YouTube video ID not found in URL", ErrVideoNotFound)
	}

	return YouTubeWatchURL + "?" + url.Values{"v": {id}}.Encode(), nil
}

func normalizeTikTok(u *url.URL) (string, error) {
	if detect(u.Host) != TikTok {
		return "", fmt.Errorf("%w: only TikTok URLs are allowed", ErrInvalidURL)
	}
	return stripQuery(u), nil
}

func normalizeInstagram(u *url.URL) (string, error) {
	if detect(u.Host) != Instagram {
		return "", fmt.Errorf("%w: only Instagram URLs are allowed", ErrInvalidURL)
	}
	return stripQuery(u), nil
}

// stripQuery keeps scheme, host and path only.
func stripQuery(u *url.URL) string {
	clean := url.URL{
		Scheme:  strings.ToLower(u.Scheme),
		Host:    u.Host,
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	return clean.String()
}
