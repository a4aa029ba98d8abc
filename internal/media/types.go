// Package media defines shared types for the animport application.
package media

import "time"

// Method identifies how a candidate source URL was discovered on a page.
type Method int

const (
	EncodedAttribute Method = iota // base64 payload in a custom attribute
	Indirection                    // base64 query parameter of the redirect endpoint
	RawEmbed                       // iframe src found verbatim
)

func (m Method) String() string {
	switch m {
	case EncodedAttribute:
		return "encoded-attribute"
	case Indirection:
		return "indirection"
	case RawEmbed:
		return "raw-embed"
	default:
		return "unknown"
	}
}

// Candidate is a URL discovered while scanning a page for video sources.
type Candidate struct {
	URL    string
	Method Method
}

// LinkKind classifies the outcome of resolving an episode link.
type LinkKind int

const (
	Absent LinkKind = iota
	Direct
	Fallback
)

func (k LinkKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Fallback:
		return "fallback"
	default:
		return "absent"
	}
}

// ParseLinkKind is the inverse of LinkKind.String. Unknown values map to Absent.
func ParseLinkKind(s string) LinkKind {
	switch s {
	case "direct":
		return Direct
	case "fallback":
		return Fallback
	default:
		return Absent
	}
}

// Resolution is the result of resolving an episode page to a video link.
type Resolution struct {
	Kind   LinkKind
	URL    string // empty when Kind is Absent
	Method Method // how the winning candidate was found
}

// Found reports whether the resolution carries a usable URL.
func (r Resolution) Found() bool {
	return r.Kind != Absent && r.URL != ""
}

// SearchResult represents a single search or category listing hit.
type SearchResult struct {
	Slug  string // last path segment of the anime page
	Title string
	URL   string // absolute URL of the anime page
}

// Anime holds the metadata scraped from an anime page.
type Anime struct {
	Slug     string
	Title    string
	Synopsis string
	ImageURL string // normalized to the w500 size bucket
	Year     int    // 0 when unknown
	Genres   []string
	URL      string
}

// Episode represents one episode link listed on an anime page.
type Episode struct {
	AnimeSlug string
	Number    int
	Title     string
	URL       string
}

// ScheduleEntry is one title from the weekly airing schedule.
type ScheduleEntry struct {
	MalID        int
	Title        string
	TitleEnglish string
	Day          string
	Time         string
}

// HistoryEntry records the outcome of exporting one episode.
type HistoryEntry struct {
	AnimeSlug  string
	Episode    int
	Kind       LinkKind
	URL        string
	ExportedAt time.Time
}
