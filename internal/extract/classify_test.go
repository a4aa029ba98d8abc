package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testClassifier(generic bool, internalPaths ...string) *Classifier {
	return NewClassifier(ClassifierOptions{
		Origin:                       "https://www.animes.test",
		DirectHosts:                  []string{"Blogger.com/video", "mp4upload.com", "youtube.com/embed/ok", ""},
		Placeholders:                 []string{"dQw4w9WgXcQ", ""},
		GenericEmbedHosts:            []string{"youtube.com", "youtu.be"},
		GenericEmbedsArePlaceholders: generic,
		InternalPaths:                internalPaths,
	})
}

func TestIsDirect(t *testing.T) {
	c := testClassifier(true)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.blogger.com/video.g?token=abc", true},
		{"https://WWW.BLOGGER.COM/video.g", true},
		{"https://www.mp4upload.com/embed-xyz.html", true},
		{"https://blogger.com/profile/1", false},
		{"https://mirror.test/?next=blogger.com/video", false},
		{"https://mirror.test/e/1", false},
		{"::not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsDirect(tt.url))
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		generic bool
		url     string
		want    bool
	}{
		{"deny listed id", false, "https://mirror.test/e/dQw4w9WgXcQ", true},
		{"deny list is case sensitive", false, "https://mirror.test/e/DQW4W9WGXCQ", false},
		{"generic host with policy", true, "https://www.youtube.com/embed/trailer", true},
		{"generic short host with policy", true, "https://youtu.be/abc", true},
		{"generic host without policy", false, "https://www.youtube.com/embed/trailer", false},
		{"allow listed generic embed", true, "https://www.youtube.com/embed/ok123", false},
		{"lookalike host", true, "https://notyoutube.com/embed/x", false},
		{"deny beats allow", true, "https://www.blogger.com/video.g?id=dQw4w9WgXcQ", true},
		{"ordinary mirror", true, "https://mirror.test/e/1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testClassifier(tt.generic).IsPlaceholder(tt.url))
		})
	}
}

func TestIsInternal(t *testing.T) {
	t.Run("any same-site path", func(t *testing.T) {
		c := testClassifier(true)
		assert.True(t, c.IsInternal("https://animes.test/player/1"))
		assert.True(t, c.IsInternal("https://www.animes.test/player/1"))
		assert.True(t, c.IsInternal("http://ANIMES.test/x"))
		assert.False(t, c.IsInternal("https://cdn.animes.test/player/1"))
		assert.False(t, c.IsInternal("https://other.test/player/1"))
	})

	t.Run("restricted paths", func(t *testing.T) {
		c := testClassifier(true, "/player/", "/embed/")
		assert.True(t, c.IsInternal("https://animes.test/embed/3"))
		assert.False(t, c.IsInternal("https://animes.test/anime/naruto"))
	})

	t.Run("no origin", func(t *testing.T) {
		c := NewClassifier(ClassifierOptions{})
		assert.False(t, c.IsInternal("https://animes.test/player/1"))
	})
}
