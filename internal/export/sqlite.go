package export

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"animport/internal/media"
)

//go:embed migrations/*.sql
var migrations embed.FS

const upsertAnime = `
INSERT INTO animes (slug, title, synopsis, image_url, year, genres, url, run_id)
VALUES (:slug, :title, :synopsis, :image_url, :year, :genres, :url, :run_id)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    synopsis = COALESCE(excluded.synopsis, animes.synopsis),
    image_url = COALESCE(excluded.image_url, animes.image_url),
    year = COALESCE(excluded.year, animes.year),
    genres = COALESCE(excluded.genres, animes.genres),
    url = excluded.url,
    run_id = excluded.run_id`

// An absent link never overwrites one found by an earlier run.
const upsertEpisode = `
INSERT INTO episodes (page_url, anime_slug, number, title, video_url, link_kind, method, run_id)
VALUES (:page_url, :anime_slug, :number, :title, :video_url, :link_kind, :method, :run_id)
ON CONFLICT(page_url) DO UPDATE SET
    anime_slug = excluded.anime_slug,
    number = COALESCE(excluded.number, episodes.number),
    title = COALESCE(excluded.title, episodes.title),
    video_url = COALESCE(excluded.video_url, episodes.video_url),
    link_kind = CASE WHEN excluded.video_url IS NULL THEN episodes.link_kind ELSE excluded.link_kind END,
    method = CASE WHEN excluded.video_url IS NULL THEN episodes.method ELSE excluded.method END,
    run_id = excluded.run_id`

// SQLiteSink upserts rows into a local SQLite database.
type SQLiteSink struct {
	db       *sqlx.DB
	anime    *sqlx.NamedStmt
	episode  *sqlx.NamedStmt
	runID    string
	animes   int
	episodes int
}

// OpenSQLite opens or creates the database at path, migrates the schema and
// records the start of run runID.
func OpenSQLite(path, runID string, started time.Time) (*SQLiteSink, error) {
	if runID == "" {
		return nil, errors.New("run ID is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteSink{db: db, runID: runID}
	if s.anime, err = db.PrepareNamed(upsertAnime); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing anime upsert: %w", err)
	}
	if s.episode, err = db.PrepareNamed(upsertEpisode); err != nil {
		s.anime.Close()
		db.Close()
		return nil, fmt.Errorf("preparing episode upsert: %w", err)
	}

	if _, err := db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		runID, started.UTC().Format(time.RFC3339)); err != nil {
		s.closeStatements()
		db.Close()
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return s, nil
}

func migrateSchema(db *sqlx.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	// m.Close would close db as well
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (s *SQLiteSink) WriteAnime(a *media.Anime) error {
	if _, err := s.anime.Exec(newAnimeRow(a, s.runID)); err != nil {
		return fmt.Errorf("storing anime %s: %w", a.Slug, err)
	}
	s.animes++
	return nil
}

func (s *SQLiteSink) WriteEpisode(e media.Episode, r media.Resolution) error {
	if _, err := s.episode.Exec(newEpisodeRow(e, r, s.runID)); err != nil {
		return fmt.Errorf("storing episode %s: %w", e.URL, err)
	}
	s.episodes++
	return nil
}

// Close marks the run finished and closes the database.
func (s *SQLiteSink) Close() error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ?, animes = ?, episodes = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), s.animes, s.episodes, s.runID)
	if err != nil {
		err = fmt.Errorf("finishing run: %w", err)
	}
	s.closeStatements()
	return errors.Join(err, s.db.Close())
}

func (s *SQLiteSink) closeStatements() {
	if s.anime != nil {
		s.anime.Close()
	}
	if s.episode != nil {
		s.episode.Close()
	}
}
