package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animport/internal/config"
	"animport/internal/httputil"
	"animport/internal/media"
)

func TestNewExpandsEpisodeIdentifiers(t *testing.T) {
	cfg := config.Default()
	cfg.Base = "https://animes.test/some/path"
	cfg.EpisodePath = "episodio"

	r, err := New(cfg, &pageFetcher{})
	require.NoError(t, err)

	got, err := r.PageURL("one-piece-episodio-12")
	require.NoError(t, err)
	assert.Equal(t, "https://animes.test/episodio/one-piece-episodio-12", got)

	got, err = r.PageURL("https://elsewhere.test/ep/1")
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.test/ep/1", got)

	_, err = r.PageURL("../../etc/passwd")
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestResolveRejectsBareIDWithoutEpisodeBase(t *testing.T) {
	r, f := newTestResolver(t, nil)

	res, err := r.Resolve(context.Background(), "ep-1")
	assert.True(t, errors.Is(err, ErrInvalidTarget))
	assert.False(t, res.Found())
	assert.Empty(t, f.calls)
}

// TestResolveOverHTTP runs the whole chain against a live server through the
// retrying fetcher.
func TestResolveOverHTTP(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/episodio/naruto-1":
			_, _ = w.Write([]byte(`<html><body>
				<iframe src="https://www.youtube.com/embed/intro"></iframe>
				<a href="/aviso/?url=` + b64(srv.URL+"/player/naruto-1") + `">Opção 1</a>
			</body></html>`))
		case "/player/naruto-1":
			_, _ = w.Write([]byte(`<iframe src="https://www.blogger.com/video.g?token=N1"></iframe>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Base = srv.URL
	fetcher := httputil.NewFetcher(httputil.FetcherOptions{
		Retry: httputil.RetryPolicy{Retries: 1, BaseDelay: time.Millisecond},
	})

	r, err := New(cfg, fetcher)
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), "naruto-1")
	require.NoError(t, err)
	assert.Equal(t, media.Direct, res.Kind)
	assert.Equal(t, "https://www.blogger.com/video.g?token=N1", res.URL)

	res, err = r.Resolve(context.Background(), "missing-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.True(t, errors.Is(err, httputil.ErrFetch))
	assert.Equal(t, media.Absent, res.Kind)
}
