// Package schedule reads the weekly airing schedule from the Jikan
// (MyAnimeList) API.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"animport/internal/media"
)

// maxPages bounds how many schedule pages are read for one day.
const maxPages = 4

// JSONFetcher performs a GET and returns the raw body.
type JSONFetcher interface {
	FetchBytes(ctx context.Context, url, accept string) ([]byte, error)
}

// Client queries the Jikan schedules endpoint.
type Client struct {
	base    string // e.g., "https://api.jikan.moe/v4"
	fetcher JSONFetcher
}

// NewClient creates a schedule client for the API rooted at base.
func NewClient(base string, f JSONFetcher) *Client {
	return &Client{base: strings.TrimRight(base, "/"), fetcher: f}
}

type schedulesResponse struct {
	Data []struct {
		MalID        int    `json:"mal_id"`
		Title        string `json:"title"`
		TitleEnglish string `json:"title_english"`
		Broadcast    struct {
			Day      string `json:"day"`
			Time     string `json:"time"`
			Timezone string `json:"timezone"`
		} `json:"broadcast"`
	} `json:"data"`
	Pagination struct {
		HasNextPage bool `json:"has_next_page"`
	} `json:"pagination"`
}

// Day returns the titles airing on day, in API order without repeats.
func (c *Client) Day(ctx context.Context, day time.Weekday) ([]media.ScheduleEntry, error) {
	filter := strings.ToLower(day.String())

	var entries []media.ScheduleEntry
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("filter", filter)
		q.Set("page", fmt.Sprint(page))

		body, err := c.fetcher.FetchBytes(ctx, c.base+"/schedules?"+q.Encode(), "application/json")
		if err != nil {
			return nil, fmt.Errorf("getting %s schedule: %w", filter, err)
		}

		var resp schedulesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing schedule response: %w", err)
		}

		for _, d := range resp.Data {
			if d.Title == "" {
				continue
			}
			entries = append(entries, media.ScheduleEntry{
				MalID:        d.MalID,
				Title:        d.Title,
				TitleEnglish: d.TitleEnglish,
				Day:          d.Broadcast.Day,
				Time:         d.Broadcast.Time,
			})
		}

		if !resp.Pagination.HasNextPage {
			break
		}
	}

	return lo.UniqBy(entries, func(e media.ScheduleEntry) string {
		if e.MalID == 0 {
			return e.Title
		}
		return fmt.Sprint(e.MalID)
	}), nil
}

// ParseDay turns a day name into a weekday. Empty means today; "tomorrow"
// is relative to now. Full and three-letter English names are accepted in
// any case, as are plurals such as "Mondays".
func ParseDay(s string, now time.Time) (time.Weekday, error) {
	in := s
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "today":
		return now.Weekday(), nil
	case "tomorrow":
		return (now.Weekday() + 1) % 7, nil
	}

	s = strings.TrimSuffix(s, "s")
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", in)
}
