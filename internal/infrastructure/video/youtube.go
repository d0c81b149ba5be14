package video

import (
	"regexp"
	"strings"

	"github.com/syncstream/syncstream/internal/domain"
)

// Accepted YouTube URL shapes, tried in order. A bare 11-char id is also
// accepted as already-normalized input.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([^&]+)`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be/([^?]+)`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([^?]+)`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/v/([^?]+)`),
}

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// Resolve normalizes a user-supplied URL or id to a videoRef, or fails with
// ErrInvalidVideoRef. The core accepts only the normalized form.
func Resolve(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidVideoRef
	}

	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	for _, re := range urlPatterns {
		match := re.FindStringSubmatch(raw)
		if match == nil {
			continue
		}
		if videoIDPattern.MatchString(match[1]) {
			return match[1], nil
		}
	}

	return "", domain.ErrInvalidVideoRef
}

// EmbedURL returns the playback URL for a normalized videoRef.
func EmbedURL(videoRef string) string {
	return "https://www.youtube.com/embed/" + videoRef + "?autoplay=1&controls=1&modestbranding=1&rel=0"
}
