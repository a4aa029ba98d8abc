package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animport/internal/media"
)

const testOrigin = "https://animes.test"

// pageFetcher serves canned pages and records every URL requested.
type pageFetcher struct {
	pages map[string]string
	calls []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("status 404 for %s", url)
	}
	return page, nil
}

func newTestResolver(t *testing.T, pages map[string]string) (*Resolver, *pageFetcher) {
	t.Helper()
	f := &pageFetcher{pages: pages}
	ext, err := NewExtractor(ExtractorOptions{
		Origin:            testOrigin,
		EncodedAttributes: []string{"data-video"},
		RedirectEndpoint:  "/aviso/",
		RedirectParam:     "url",
	})
	require.NoError(t, err)
	cls := NewClassifier(ClassifierOptions{
		Origin:                       testOrigin,
		DirectHosts:                  []string{"blogger.com/video", "cdn.direct.test"},
		Placeholders:                 []string{"tutorial123"},
		GenericEmbedHosts:            []string{"youtube.com"},
		GenericEmbedsArePlaceholders: true,
	})
	return NewResolver(f, ext, cls), f
}

func iframes(srcs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, s := range srcs {
		fmt.Fprintf(&b, `<iframe src="%s"></iframe>`, s)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const (
	episodeURL  = testOrigin + "/episodio/ep-1"
	placeholder = "https://www.youtube.com/embed/tutorial123"
	genericA    = "https://mirror-a.test/e/1"
	genericB    = "https://mirror-b.test/e/2"
	directB     = "https://www.blogger.com/video.g?token=BBB"
)

func TestResolveNoCandidatesIsAbsent(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		episodeURL: "<html><body><p>nothing here</p></body></html>",
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Absent, res.Kind)
	assert.False(t, res.Found())
}

func TestResolveReturnsDirectVerbatim(t *testing.T) {
	odd := "https://cdn.direct.test/a/./b/../video.mp4?sig=AbC-_d%2F&t=1"
	r, _ := newTestResolver(t, map[string]string{
		episodeURL: iframes(genericA, odd, genericB),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Direct, res.Kind)
	assert.Equal(t, odd, res.URL)
}

func TestResolveNeverReturnsPlaceholder(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		episodeURL: iframes(placeholder, "https://www.youtube.com/embed/trailer", "https://mirror.test/tutorial123"),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Absent, res.Kind)
}

func TestResolveFirstFallbackWins(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		episodeURL: iframes(genericA, genericB),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Fallback, res.Kind)
	assert.Equal(t, genericA, res.URL)
}

func TestResolveNestedDirectBeatsEarlierFallback(t *testing.T) {
	r, f := newTestResolver(t, map[string]string{
		episodeURL:                 iframes(placeholder, genericA, "/player/ep-1"),
		testOrigin + "/player/ep-1": iframes(placeholder, directB),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Direct, res.Kind)
	assert.Equal(t, directB, res.URL)
	assert.Equal(t, []string{episodeURL, testOrigin + "/player/ep-1"}, f.calls)
}

func TestResolveNestedDirectShortCircuits(t *testing.T) {
	r, f := newTestResolver(t, map[string]string{
		episodeURL:                 iframes("/player/one", "/player/two"),
		testOrigin + "/player/one": iframes(directB),
		testOrigin + "/player/two": iframes("https://cdn.direct.test/other.mp4"),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, directB, res.URL)
	assert.NotContains(t, f.calls, testOrigin+"/player/two")
}

func TestResolveDepthIsOne(t *testing.T) {
	pages := map[string]string{
		episodeURL:                  iframes("/player/hop-1"),
		testOrigin + "/player/hop-1": iframes("/player/hop-2"),
		testOrigin + "/player/hop-2": iframes(directB),
	}

	t.Run("absent", func(t *testing.T) {
		r, f := newTestResolver(t, pages)
		res, err := r.Resolve(context.Background(), episodeURL)
		require.NoError(t, err)
		assert.Equal(t, media.Absent, res.Kind)
		assert.NotContains(t, f.calls, testOrigin+"/player/hop-2")
	})

	t.Run("earlier fallback", func(t *testing.T) {
		withFallback := map[string]string{}
		for k, v := range pages {
			withFallback[k] = v
		}
		withFallback[episodeURL] = iframes(genericA, "/player/hop-1")

		r, _ := newTestResolver(t, withFallback)
		res, err := r.Resolve(context.Background(), episodeURL)
		require.NoError(t, err)
		assert.Equal(t, media.Fallback, res.Kind)
		assert.Equal(t, genericA, res.URL)
	})
}

func TestResolveNestedFallbackOrder(t *testing.T) {
	nested := testOrigin + "/player/ep-1"

	t.Run("internal first", func(t *testing.T) {
		r, _ := newTestResolver(t, map[string]string{
			episodeURL: iframes("/player/ep-1", genericA),
			nested:     iframes(placeholder, genericB),
		})
		res, err := r.Resolve(context.Background(), episodeURL)
		require.NoError(t, err)
		assert.Equal(t, media.Fallback, res.Kind)
		assert.Equal(t, genericB, res.URL)
	})

	t.Run("fallback first", func(t *testing.T) {
		r, _ := newTestResolver(t, map[string]string{
			episodeURL: iframes(genericA, "/player/ep-1"),
			nested:     iframes(genericB),
		})
		res, err := r.Resolve(context.Background(), episodeURL)
		require.NoError(t, err)
		assert.Equal(t, genericA, res.URL)
	})
}

func TestResolveOuterFetchFailure(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Equal(t, media.Absent, res.Kind)
}

func TestResolveNestedFetchFailureIsNotFatal(t *testing.T) {
	r, f := newTestResolver(t, map[string]string{
		episodeURL: iframes("/player/gone", genericA),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Fallback, res.Kind)
	assert.Equal(t, genericA, res.URL)
	assert.Contains(t, f.calls, testOrigin+"/player/gone")
}

func TestResolveExclusionWins(t *testing.T) {
	both := "https://cdn.direct.test/tutorial123.mp4"
	r, _ := newTestResolver(t, map[string]string{
		episodeURL: iframes(both, genericA),
	})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, media.Fallback, res.Kind)
	assert.Equal(t, genericA, res.URL)
}

func TestResolvePrefersEncodedAttribute(t *testing.T) {
	encoded := b64("https://cdn.direct.test/encoded.mp4")
	page := `<html><body>
		<iframe src="https://cdn.direct.test/iframe.mp4"></iframe>
		<div class="player" data-video="` + encoded + `"></div>
	</body></html>`
	r, _ := newTestResolver(t, map[string]string{episodeURL: page})

	res, err := r.Resolve(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.direct.test/encoded.mp4", res.URL)
	assert.Equal(t, media.EncodedAttribute, res.Method)
}

func TestResolveContentWithoutFetch(t *testing.T) {
	r, f := newTestResolver(t, nil)

	res := r.ResolveContent(context.Background(), iframes(genericA))
	assert.Equal(t, genericA, res.URL)
	assert.Empty(t, f.calls)
}

func TestResolveEncodedDirectKeepsQuery(t *testing.T) {
	for _, target := range []string{
		"https://cdn.direct.test/v.mp4?title=Ep<1>&sig=abc",
		"https://cdn.direct.test/v.mp4?name=it's&sig=abc",
	} {
		r, _ := newTestResolver(t, nil)
		res := r.ResolveContent(context.Background(), `<div data-video="`+b64(target)+`"></div>`)
		assert.Equal(t, media.Direct, res.Kind, target)
		assert.Equal(t, target, res.URL)
	}
}
