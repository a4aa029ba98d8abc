package provider

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"animport/internal/media"
)

// BestMatch picks the search result whose title is closest to title. Results
// that do not contain every character of title in order are ignored.
func BestMatch(title string, results []media.SearchResult) (media.SearchResult, bool) {
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}

	ranks := fuzzy.RankFindNormalizedFold(title, titles)
	if len(ranks) == 0 {
		return media.SearchResult{}, false
	}
	sort.Stable(ranks)
	return results[ranks[0].OriginalIndex], true
}
