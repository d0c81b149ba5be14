package video_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/video"
)

func TestResolve_AcceptedForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s"},
		{"watch url without scheme", "youtube.com/watch?v=dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ"},
		{"short url with params", "https://youtu.be/dQw4w9WgXcQ?si=share"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"legacy v url", "https://www.youtube.com/v/dQw4w9WgXcQ"},
		{"bare video id", "dQw4w9WgXcQ"},
		{"surrounding whitespace", "  dQw4w9WgXcQ  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := video.Resolve(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, "dQw4w9WgXcQ", ref)
		})
	}
}

func TestResolve_RejectedForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"unrelated url", "https://vimeo.com/123456"},
		{"id too short", "dQw4w9WgXc"},
		{"id too long", "dQw4w9WgXcQQ"},
		{"id with invalid chars", "dQw4w9Wg!cQ"},
		{"watch url with bad id", "https://www.youtube.com/watch?v=nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := video.Resolve(tc.raw)
			assert.ErrorIs(t, err, domain.ErrInvalidVideoRef)
		})
	}
}

func TestEmbedURL(t *testing.T) {
	assert.Equal(t,
		"https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1&controls=1&modestbranding=1&rel=0",
		video.EmbedURL("dQw4w9WgXcQ"),
	)
}
