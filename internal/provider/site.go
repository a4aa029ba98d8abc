package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"animport/internal/httputil"
	"animport/internal/logging"
	"animport/internal/media"
)

// Site implements the Provider interface for a WordPress-style anime site.
type Site struct {
	base    *url.URL // e.g., "https://animesonline.example"
	fetcher Fetcher
}

var _ Provider = (*Site)(nil)

// NewSite creates a provider for the site at origin.
func NewSite(origin string, f Fetcher) (*Site, error) {
	if err := httputil.ValidateURL(origin); err != nil {
		return nil, fmt.Errorf("invalid site origin: %w", err)
	}
	u, _ := url.Parse(origin)
	return &Site{
		base:    &url.URL{Scheme: u.Scheme, Host: u.Host},
		fetcher: f,
	}, nil
}

func (s *Site) baseURL() string {
	return s.base.String()
}

// maxSearchPages limits how many pages of search results to fetch.
const maxSearchPages = 3

// Search returns matching results for a query, fetching multiple pages.
func (s *Site) Search(ctx context.Context, query string) ([]media.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	q := "?s=" + url.QueryEscape(query)

	doc, err := s.fetchDocument(ctx, s.baseURL()+"/"+q)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}

	results := parseListing(doc)
	pages := min(parseLastPage(doc), maxSearchPages)
	for page := 2; page <= pages; page++ {
		pageDoc, err := s.fetchDocument(ctx, fmt.Sprintf("%s/page/%d/%s", s.baseURL(), page, q))
		if err != nil {
			logging.Debug("search page unavailable", "page", page, "err", err)
			break // return what we have
		}
		results = append(results, parseListing(pageDoc)...)
	}

	results = s.finishResults(results)
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for %q: %w", query, ErrNotFound)
	}
	return results, nil
}

// GetAnime returns the metadata on an anime page.
func (s *Site) GetAnime(ctx context.Context, pageURL string) (*media.Anime, error) {
	pageURL = s.absolute(pageURL)
	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("getting anime: %w", err)
	}
	return s.animeFromDocument(doc, pageURL)
}

// GetEpisodes returns the episodes listed on an anime page.
func (s *Site) GetEpisodes(ctx context.Context, pageURL string) ([]media.Episode, error) {
	pageURL = s.absolute(pageURL)
	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("getting episodes: %w", err)
	}
	return s.episodesFromDocument(doc, pageURL), nil
}

// GetAnimeWithEpisodes returns the metadata and the episode list of an anime
// page from a single fetch.
func (s *Site) GetAnimeWithEpisodes(ctx context.Context, pageURL string) (*media.Anime, []media.Episode, error) {
	pageURL = s.absolute(pageURL)
	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("getting anime: %w", err)
	}
	anime, err := s.animeFromDocument(doc, pageURL)
	if err != nil {
		return nil, nil, err
	}
	return anime, s.episodesFromDocument(doc, pageURL), nil
}

func (s *Site) animeFromDocument(doc *goquery.Document, pageURL string) (*media.Anime, error) {
	anime := parseAnime(doc)
	if anime.Title == "" {
		return nil, fmt.Errorf("no anime metadata at %s: %w", pageURL, ErrNotFound)
	}
	anime.URL = pageURL
	anime.Slug = httputil.SlugFromURL(pageURL)
	if anime.ImageURL != "" {
		anime.ImageURL = s.absolute(anime.ImageURL)
	}
	return anime, nil
}

func (s *Site) episodesFromDocument(doc *goquery.Document, pageURL string) []media.Episode {
	slug := httputil.SlugFromURL(pageURL)
	episodes := parseEpisodes(doc)
	for i := range episodes {
		episodes[i].AnimeSlug = slug
		episodes[i].URL = s.absolute(episodes[i].URL)
	}
	return sortEpisodes(episodes)
}

// Category returns the anime listed under slug, crawling up to pages pages.
func (s *Site) Category(ctx context.Context, slug string, pages int) ([]media.SearchResult, error) {
	slug = strings.Trim(slug, "/")
	if err := httputil.ValidateID(slug); err != nil {
		return nil, fmt.Errorf("invalid category: %w", err)
	}
	if pages <= 0 {
		pages = 1
	}

	categoryURL := httputil.BuildURL(s.baseURL(), "genero", slug) + "/"
	var results []media.SearchResult
	for page := 1; page <= pages; page++ {
		pageURL := categoryURL
		if page > 1 {
			pageURL = fmt.Sprintf("%spage/%d/", categoryURL, page)
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("getting category %q: %w", slug, err)
			}
			logging.Debug("category page unavailable", "page", page, "err", err)
			break
		}

		found := parseListing(doc)
		if len(found) == 0 {
			break
		}
		results = append(results, found...)
		if page >= parseLastPage(doc) {
			break
		}
	}

	results = s.finishResults(results)
	if len(results) == 0 {
		return nil, fmt.Errorf("category %q: %w", slug, ErrNotFound)
	}
	return results, nil
}

// AnimeURL expands target into an anime page URL. Absolute URLs and paths
// are resolved against the site; a bare slug maps to /anime/<slug>/.
func (s *Site) AnimeURL(target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") || strings.HasPrefix(target, "/") {
		return s.absolute(target)
	}
	return httputil.BuildURL(s.baseURL(), "anime", strings.Trim(target, "/")) + "/"
}

// finishResults absolutizes URLs, fills slugs and drops repeated entries.
func (s *Site) finishResults(results []media.SearchResult) []media.SearchResult {
	for i := range results {
		results[i].URL = s.absolute(results[i].URL)
		results[i].Slug = httputil.SlugFromURL(results[i].URL)
	}
	return lo.UniqBy(results, func(r media.SearchResult) string { return r.URL })
}

// absolute resolves ref against the site origin.
func (s *Site) absolute(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return s.base.ResolveReference(u).String()
}

// fetchDocument fetches a URL and parses it into a goquery Document.
func (s *Site) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}
