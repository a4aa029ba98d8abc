// Package export writes scraped anime and resolved episode links as SQL,
// either as an insert script or directly into a SQLite database.
package export

import (
	"database/sql"
	"strings"

	"animport/internal/media"
)

// Sink receives exported rows. Implementations are not safe for
// concurrent use.
type Sink interface {
	WriteAnime(a *media.Anime) error
	WriteEpisode(e media.Episode, r media.Resolution) error
	Close() error
}

// column is one named value of a row, in table order.
type column struct {
	name  string
	value any
}

type animeRow struct {
	Slug     string         `db:"slug"`
	Title    string         `db:"title"`
	Synopsis sql.NullString `db:"synopsis"`
	ImageURL sql.NullString `db:"image_url"`
	Year     sql.NullInt64  `db:"year"`
	Genres   sql.NullString `db:"genres"`
	URL      string         `db:"url"`
	RunID    sql.NullString `db:"run_id"`
}

func newAnimeRow(a *media.Anime, runID string) animeRow {
	return animeRow{
		Slug:     a.Slug,
		Title:    a.Title,
		Synopsis: nullString(a.Synopsis),
		ImageURL: nullString(a.ImageURL),
		Year:     nullInt(a.Year),
		Genres:   nullString(strings.Join(a.Genres, ", ")),
		URL:      a.URL,
		RunID:    nullString(runID),
	}
}

func (r animeRow) columns() []column {
	return []column{
		{"slug", r.Slug},
		{"title", r.Title},
		{"synopsis", r.Synopsis},
		{"image_url", r.ImageURL},
		{"year", r.Year},
		{"genres", r.Genres},
		{"url", r.URL},
	}
}

type episodeRow struct {
	PageURL   string         `db:"page_url"`
	AnimeSlug string         `db:"anime_slug"`
	Number    sql.NullInt64  `db:"number"`
	Title     sql.NullString `db:"title"`
	VideoURL  sql.NullString `db:"video_url"`
	LinkKind  string         `db:"link_kind"`
	Method    sql.NullString `db:"method"`
	RunID     sql.NullString `db:"run_id"`
}

func newEpisodeRow(e media.Episode, r media.Resolution, runID string) episodeRow {
	row := episodeRow{
		PageURL:   e.URL,
		AnimeSlug: e.AnimeSlug,
		Number:    nullInt(e.Number),
		Title:     nullString(e.Title),
		LinkKind:  media.Absent.String(),
		RunID:     nullString(runID),
	}
	if r.Found() {
		row.VideoURL = nullString(r.URL)
		row.LinkKind = r.Kind.String()
		row.Method = nullString(r.Method.String())
	}
	return row
}

func (r episodeRow) columns() []column {
	return []column{
		{"anime_slug", r.AnimeSlug},
		{"number", r.Number},
		{"title", r.Title},
		{"page_url", r.PageURL},
		{"video_url", r.VideoURL},
		{"link_kind", r.LinkKind},
	}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}
