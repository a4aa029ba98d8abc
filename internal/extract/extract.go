// Package extract resolves episode pages into playable video links.
//
// A page is scanned for candidate sources (encoded attributes, redirect
// endpoint parameters, raw iframes), each candidate is classified against
// configured allow and deny lists, and internal indirection pages are followed
// exactly one level deep.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"animport/internal/config"
)

// ErrFetch marks a resolution that failed because the episode page itself
// could not be retrieved.
var ErrFetch = errors.New("episode page unavailable")

// ErrInvalidTarget is returned for targets that are neither a URL nor a
// valid episode identifier.
var ErrInvalidTarget = errors.New("invalid episode target")

// Fetcher retrieves raw page content. Retries and timeouts are its concern.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// New builds a Resolver from the application configuration.
func New(cfg *config.Config, f Fetcher) (*Resolver, error) {
	origin := cfg.Origin()

	ext, err := NewExtractor(ExtractorOptions{
		Origin:            origin,
		EncodedAttributes: cfg.Links.EncodedAttributes,
		RedirectEndpoint:  cfg.Links.RedirectEndpoint,
		RedirectParam:     cfg.Links.RedirectParam,
	})
	if err != nil {
		return nil, fmt.Errorf("building extractor: %w", err)
	}

	cls := NewClassifier(ClassifierOptions{
		Origin:                       origin,
		DirectHosts:                  cfg.Links.DirectHosts,
		Placeholders:                 cfg.Links.Placeholders,
		GenericEmbedHosts:            cfg.Links.GenericEmbedHosts,
		GenericEmbedsArePlaceholders: cfg.Links.GenericEmbedsArePlaceholders,
		InternalPaths:                cfg.Links.InternalPaths,
	})

	r := NewResolver(f, ext, cls)
	r.episodeBase = origin + "/" + strings.Trim(cfg.EpisodePath, "/") + "/"
	if strings.Trim(cfg.EpisodePath, "/") == "" {
		r.episodeBase = origin + "/"
	}
	return r, nil
}
