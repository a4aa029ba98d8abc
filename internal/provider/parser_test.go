package provider

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animport/internal/media"
)

func loadTestDoc(t *testing.T, filename string) *goquery.Document {
	t.Helper()
	data, err := os.ReadFile("testdata/" + filename)
	require.NoError(t, err, "reading test fixture %s", filename)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	require.NoError(t, err, "parsing test fixture %s", filename)
	return doc
}

func TestParseListingSearch(t *testing.T) {
	results := parseListing(loadTestDoc(t, "search_results.html"))

	require.Len(t, results, 3)
	assert.Equal(t, media.SearchResult{Title: "Naruto", URL: "/anime/naruto/"}, results[0])
	assert.Equal(t, "Naruto Shippuden", results[1].Title)
	assert.Equal(t, "https://animesonline.example/anime/naruto-shippuden/", results[1].URL)
}

func TestParseListingCategory(t *testing.T) {
	results := parseListing(loadTestDoc(t, "category.html"))

	require.Len(t, results, 2)
	assert.Equal(t, "Bleach", results[0].Title)
	assert.Equal(t, "One Piece", results[1].Title, "title falls back to the poster alt text")
	assert.Equal(t, "/anime/one-piece/", results[1].URL)
}

func TestParseListingMalicious(t *testing.T) {
	results := parseListing(loadTestDoc(t, "search_malicious.html"))

	// Titles are plain text; escaping happens at SQL emission
	require.Len(t, results, 3)
	assert.Equal(t, "'; DROP TABLE animes; --", results[0].Title)
	assert.Equal(t, "$(whoami)", results[1].Title)
	assert.Equal(t, "<script>alert(1)</script>", results[2].Title)
}

func TestParseLastPage(t *testing.T) {
	assert.Equal(t, 5, parseLastPage(loadTestDoc(t, "search_results.html")))
	assert.Equal(t, 2, parseLastPage(loadTestDoc(t, "category.html")))
	assert.Equal(t, 1, parseLastPage(loadTestDoc(t, "anime.html")))
}

func TestParseAnime(t *testing.T) {
	anime := parseAnime(loadTestDoc(t, "anime.html"))

	assert.Equal(t, "Sousou no Frieren", anime.Title)
	assert.Equal(t, "A elfa Frieren e seus companheiros derrotaram o Rei Demônio.", anime.Synopsis)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/frieren.jpg", anime.ImageURL)
	assert.Equal(t, 2023, anime.Year)
	assert.Equal(t, []string{"Aventura", "Drama", "Fantasia"}, anime.Genres)
}

func TestParseAnimeImageFallback(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head>
		<meta property="og:image" content="https://image.tmdb.org/t/p/original/x.jpg">
		</head><body><h1>Dandadan</h1></body></html>`))
	require.NoError(t, err)

	anime := parseAnime(doc)
	assert.Equal(t, "Dandadan", anime.Title)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/x.jpg", anime.ImageURL)
	assert.Zero(t, anime.Year)
	assert.Empty(t, anime.Genres)
}

func TestParseEpisodesSorted(t *testing.T) {
	episodes := sortEpisodes(parseEpisodes(loadTestDoc(t, "anime.html")))

	require.Len(t, episodes, 4)
	nums := []int{episodes[0].Number, episodes[1].Number, episodes[2].Number, episodes[3].Number}
	assert.Equal(t, []int{1, 2, 10, 0}, nums)
	assert.Equal(t, "/episodio/sousou-no-frieren-episodio-1/", episodes[0].URL)
	assert.Equal(t, "O fim da jornada", episodes[2].Title)
	assert.Equal(t, "Especial", episodes[3].Title)
}

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://image.tmdb.org/t/p/w185/a.jpg", "https://image.tmdb.org/t/p/w500/a.jpg"},
		{"https://image.tmdb.org/t/p/w1280/a.jpg", "https://image.tmdb.org/t/p/w500/a.jpg"},
		{"https://image.tmdb.org/t/p/w500/a.jpg", "https://image.tmdb.org/t/p/w500/a.jpg"},
		{"https://cdn.test/wallpaper/a.jpg", "https://cdn.test/wallpaper/a.jpg"},
		{"  https://cdn.test/a.jpg ", "https://cdn.test/a.jpg"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeImageURL(tt.input))
		})
	}
}

func TestEpisodeNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1 - 12", 12},
		{"Episódio 7", 7},
		{"episodio-104", 104},
		{"/episodio/one-piece-episodio-1071/", 1071},
		{"https://site.test/ep/naruto-2/", 0},
		{"/episodio/especial/", 0},
		{"Especial", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, episodeNumber(tt.input))
		})
	}
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Naruto", cleanTitle("  Assistir\n Naruto  Online "))
	assert.Equal(t, "One Piece", cleanTitle("Todos os Episódios de One Piece"))
	assert.Equal(t, "Onlineland", cleanTitle("Onlineland"))
}

func TestFormatDisplayTitle(t *testing.T) {
	assert.Equal(t, "Naruto [naruto]", FormatDisplayTitle(media.SearchResult{Title: "Naruto", Slug: "naruto"}))
	assert.Equal(t, "3. Reunion", FormatEpisodeTitle(media.Episode{Number: 3, Title: "Reunion"}))
	assert.Equal(t, "Episode 4", FormatEpisodeTitle(media.Episode{Number: 4}))
	assert.Equal(t, "Especial", FormatEpisodeTitle(media.Episode{Title: "Especial"}))
}
