// Package provider scrapes anime metadata and episode listings from the
// configured site.
package provider

import (
	"context"
	"errors"

	"animport/internal/media"
)

// ErrNotFound is returned when a page parses but carries none of the
// expected content.
var ErrNotFound = errors.New("not found")

// Fetcher retrieves raw page content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Provider is the interface that content providers must implement.
type Provider interface {
	// Search returns matching anime for a query.
	Search(ctx context.Context, query string) ([]media.SearchResult, error)

	// GetAnime returns the metadata on an anime page.
	GetAnime(ctx context.Context, pageURL string) (*media.Anime, error)

	// GetEpisodes returns the episodes listed on an anime page, in ascending
	// number order.
	GetEpisodes(ctx context.Context, pageURL string) ([]media.Episode, error)

	// Category returns the anime listed under a genre or category slug,
	// crawling up to pages listing pages.
	Category(ctx context.Context, slug string, pages int) ([]media.SearchResult, error)
}
