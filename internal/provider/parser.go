package provider

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"animport/internal/media"
)

// parseListing extracts anime entries from a search results or category page.
// Uses DOM parsing so titles are only ever treated as text.
func parseListing(doc *goquery.Document) []media.SearchResult {
	var results []media.SearchResult

	doc.Find(".result-item article, article.item").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".title a, .data h3 a").First()
		if link.Length() == 0 {
			link = s.Find("a[href]").First()
		}

		href, exists := link.Attr("href")
		if !exists || href == "" {
			return
		}

		title := cleanTitle(link.Text())
		if title == "" {
			title = cleanTitle(s.Find("img").AttrOr("alt", ""))
		}
		if title == "" {
			return
		}

		results = append(results, media.SearchResult{Title: title, URL: href})
	})

	return results
}

// parseAnime extracts metadata from an anime page.
func parseAnime(doc *goquery.Document) *media.Anime {
	anime := &media.Anime{}

	header := doc.Find(".sheader").First()
	anime.Title = cleanTitle(header.Find(".data h1").First().Text())
	if anime.Title == "" {
		anime.Title = cleanTitle(doc.Find("h1").First().Text())
	}

	synopsis := doc.Find("#info .wp-content, .sinopse, .synopsis").First()
	anime.Synopsis = cleanSynopsis(synopsis.Text())

	poster := header.Find(".poster img").First()
	if poster.Length() == 0 {
		poster = doc.Find(".poster img").First()
	}
	img := poster.AttrOr("data-src", "")
	if img == "" {
		img = poster.AttrOr("src", "")
	}
	if img == "" {
		img = doc.Find(`meta[property="og:image"]`).AttrOr("content", "")
	}
	anime.ImageURL = NormalizeImageURL(img)

	header.Find(".extra span.date, .extra .date").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		anime.Year = parseYear(s.Text())
		return anime.Year == 0
	})

	genres := doc.Find(".sgeneros a, .genres a").Map(func(_ int, s *goquery.Selection) string {
		return cleanText(s.Text())
	})
	anime.Genres = lo.Uniq(lo.Compact(genres))

	return anime
}

// parseEpisodes extracts episode links from an anime page.
func parseEpisodes(doc *goquery.Document) []media.Episode {
	var episodes []media.Episode

	doc.Find("ul.episodios li, .episodes li").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".episodiotitle a").First()
		if link.Length() == 0 {
			link = s.Find("a[href]").First()
		}
		href, exists := link.Attr("href")
		if !exists || href == "" {
			return
		}

		title := cleanText(link.Text())
		num := episodeNumber(s.Find(".numerando").Text())
		if num == 0 {
			num = episodeNumber(href)
		}
		if num == 0 {
			num = episodeNumber(title)
		}

		episodes = append(episodes, media.Episode{
			Number: num,
			Title:  title,
			URL:    href,
		})
	})

	return episodes
}

// sortEpisodes drops repeated links and orders episodes by number. Episodes
// without a number keep their page order after the numbered ones.
func sortEpisodes(episodes []media.Episode) []media.Episode {
	episodes = lo.UniqBy(episodes, func(e media.Episode) string { return e.URL })
	sort.SliceStable(episodes, func(i, j int) bool {
		a, b := episodes[i].Number, episodes[j].Number
		if a == 0 || b == 0 {
			return a != 0 && b == 0
		}
		return a < b
	})
	return episodes
}

var lastPageRe = regexp.MustCompile(`/page/(\d+)/?`)

// parseLastPage reads the highest page number linked from the pagination
// block. Pages without pagination count as one.
func parseLastPage(doc *goquery.Document) int {
	last := 1
	doc.Find(".pagination a[href], .pagination span").Each(func(_ int, s *goquery.Selection) {
		if m := lastPageRe.FindStringSubmatch(s.AttrOr("href", "")); m != nil {
			if n, _ := strconv.Atoi(m[1]); n > last {
				last = n
			}
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > last {
			last = n
		}
	})
	return last
}

var (
	imageSizeRe = regexp.MustCompile(`/w\d+/`)
	spaceRe     = regexp.MustCompile(`\s+`)
	yearRe      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	numberRe    = regexp.MustCompile(`\d+`)
	episodeRe   = regexp.MustCompile(`(?i)epis[oó]dio[-\s]*(\d+)`)
)

// NormalizeImageURL rewrites a TMDB-style size segment to the w500 bucket.
func NormalizeImageURL(u string) string {
	return imageSizeRe.ReplaceAllString(strings.TrimSpace(u), "/w500/")
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var titlePrefixes = []string{"Assistir ", "Todos os Episódios de ", "Todos os Episodios de "}

var titleSuffixes = []string{" Online Grátis", " Online Gratis", " Online"}

func cleanTitle(s string) string {
	s = cleanText(s)
	for _, p := range titlePrefixes {
		s = strings.TrimPrefix(s, p)
	}
	for _, suf := range titleSuffixes {
		s = strings.TrimSuffix(s, suf)
	}
	return strings.TrimSpace(s)
}

var synopsisPrefixes = []string{"Sinopse:", "Sinopse", "Synopsis:", "Overview:"}

func cleanSynopsis(s string) string {
	s = cleanText(s)
	for _, p := range synopsisPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	return s
}

func parseYear(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	return year
}

// episodeNumber pulls an episode number out of a "1 - 12" label, an
// "episodio-12" slug or free text. The last number wins for labels.
func episodeNumber(s string) int {
	if m := episodeRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if strings.Contains(s, "://") || strings.HasPrefix(s, "/") {
		return 0
	}
	nums := numberRe.FindAllString(s, -1)
	if len(nums) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(nums[len(nums)-1])
	return n
}

// FormatDisplayTitle creates a display string for the interactive picker.
func FormatDisplayTitle(r media.SearchResult) string {
	return r.Title + " [" + r.Slug + "]"
}

// FormatEpisodeTitle creates a display string for an episode.
func FormatEpisodeTitle(e media.Episode) string {
	if e.Title == "" {
		return "Episode " + strconv.Itoa(e.Number)
	}
	if e.Number == 0 {
		return e.Title
	}
	return strconv.Itoa(e.Number) + ". " + e.Title
}
