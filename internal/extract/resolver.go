package extract

import (
	"context"
	"fmt"
	"strings"

	"animport/internal/httputil"
	"animport/internal/logging"
	"animport/internal/media"
)

// maxIndirectionDepth is how many internal indirection pages are followed
// below the episode page. Links found at the limit are not followed.
const maxIndirectionDepth = 1

// Resolver walks an episode page's candidates and picks a playable link.
type Resolver struct {
	fetcher    Fetcher
	extractor  *Extractor
	classifier *Classifier
	maxDepth   int

	// episodeBase expands bare episode identifiers; empty disables expansion.
	episodeBase string
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(f Fetcher, e *Extractor, c *Classifier) *Resolver {
	return &Resolver{
		fetcher:    f,
		extractor:  e,
		classifier: c,
		maxDepth:   maxIndirectionDepth,
	}
}

// Resolve fetches target and returns the first direct link, else the first
// acceptable fallback, else an absent Resolution. target is an episode page
// URL or a bare episode identifier. If the page itself cannot be fetched the
// Resolution is absent and the error wraps ErrFetch.
func (r *Resolver) Resolve(ctx context.Context, target string) (media.Resolution, error) {
	pageURL, err := r.PageURL(target)
	if err != nil {
		return media.Resolution{}, err
	}

	content, err := r.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return media.Resolution{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return r.ResolveContent(ctx, content), nil
}

// PageURL returns target unchanged when it is an http(s) URL, otherwise it
// expands it as an episode identifier.
func (r *Resolver) PageURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if r.episodeBase == "" {
		return "", fmt.Errorf("%w: %q is not a URL", ErrInvalidTarget, target)
	}
	id := strings.Trim(target, "/")
	if err := httputil.ValidateID(id); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return r.episodeBase + id, nil
}

// ResolveContent runs the chain over content that was already fetched.
func (r *Resolver) ResolveContent(ctx context.Context, content string) media.Resolution {
	return r.walk(ctx, content, 0)
}

func (r *Resolver) walk(ctx context.Context, content string, depth int) media.Resolution {
	var fallback media.Resolution

	for _, c := range r.extractor.Extract(content) {
		switch {
		case r.classifier.IsPlaceholder(c.URL):
			logging.Debug("skipping placeholder", "url", c.URL, "depth", depth)

		case r.classifier.IsDirect(c.URL):
			logging.Debug("direct link", "url", c.URL, "method", c.Method, "depth", depth)
			return media.Resolution{Kind: media.Direct, URL: c.URL, Method: c.Method}

		case r.classifier.IsInternal(c.URL):
			if depth >= r.maxDepth {
				logging.Debug("indirection depth reached", "url", c.URL, "depth", depth)
				continue
			}
			nested := r.follow(ctx, c.URL, depth+1)
			if nested.Kind == media.Direct {
				return nested
			}
			if nested.Found() && !fallback.Found() {
				fallback = nested
			}

		default:
			if !fallback.Found() {
				fallback = media.Resolution{Kind: media.Fallback, URL: c.URL, Method: c.Method}
			}
		}
	}

	return fallback
}

// follow fetches an internal indirection page. A failed fetch counts as a page
// with no candidates.
func (r *Resolver) follow(ctx context.Context, pageURL string, depth int) media.Resolution {
	content, err := r.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		logging.Debug("indirection page unavailable", "url", pageURL, "err", err)
		return media.Resolution{}
	}
	return r.walk(ctx, content, depth)
}
