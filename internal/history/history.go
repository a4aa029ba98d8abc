// Package history records which episodes have been exported and what link
// each resolved to, in a TSV file.
// Uses atomic writes (temp+rename) to prevent data corruption.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"animport/internal/config"
	"animport/internal/media"
)

// TSV columns: slug, episode, kind, url, exported_at
const numColumns = 5

// Store reads and writes the history file on a filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a store for the history file at path on fs.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Default returns the store at the XDG data location on the OS filesystem.
func Default() (*Store, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	return NewStore(afero.NewOsFs(), path), nil
}

// Path returns the location of the history file.
func (s *Store) Path() string { return s.path }

// Load reads the history file and returns all entries. A missing file is an
// empty history.
func (s *Store) Load() ([]media.HistoryEntry, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var entries []media.HistoryEntry
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return entries, nil
}

// Save writes or updates the entry for the same anime and episode.
func (s *Store) Save(entry media.HistoryEntry) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	found := false
	for i, e := range entries {
		if sameEpisode(e, entry.AnimeSlug, entry.Episode) {
			entries[i] = entry
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, entry)
	}

	return s.write(entries)
}

// Remove deletes the entry for an anime episode. Removing a missing entry is
// not an error.
func (s *Store) Remove(slug string, episode int) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	var filtered []media.HistoryEntry
	for _, e := range entries {
		if !sameEpisode(e, slug, episode) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == len(entries) {
		return nil
	}

	return s.write(filtered)
}

// Lookup returns the recorded entry for an anime episode.
func (s *Store) Lookup(slug string, episode int) (media.HistoryEntry, bool, error) {
	entries, err := s.Load()
	if err != nil {
		return media.HistoryEntry{}, false, err
	}
	for _, e := range entries {
		if sameEpisode(e, slug, episode) {
			return e, true, nil
		}
	}
	return media.HistoryEntry{}, false, nil
}

// write replaces the history file atomically: temp file, then rename.
func (s *Store) write(entries []media.HistoryEntry) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	tmpFile, err := afero.TempFile(s.fs, dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writer := bufio.NewWriter(tmpFile)
	for _, e := range entries {
		if _, err := writer.WriteString(formatLine(e) + "\n"); err != nil {
			tmpFile.Close()
			s.fs.Remove(tmpPath)
			return fmt.Errorf("writing history: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("flushing history: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("renaming history file: %w", err)
	}

	return nil
}

// ShouldSkip reports whether an episode already has a direct link on record.
func ShouldSkip(entries []media.HistoryEntry, slug string, episode int) bool {
	for _, e := range entries {
		if sameEpisode(e, slug, episode) {
			return e.Kind == media.Direct && e.URL != ""
		}
	}
	return false
}

// FormatForDisplay creates display lines for history entries.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	var items []string
	for _, e := range entries {
		display := fmt.Sprintf("%s E%02d [%s]", e.AnimeSlug, e.Episode, e.Kind)
		if e.URL != "" {
			display += " " + e.URL
		}
		if !e.ExportedAt.IsZero() {
			display += " (" + e.ExportedAt.Local().Format("2006-01-02 15:04") + ")"
		}
		items = append(items, display)
	}
	return items
}

func sameEpisode(e media.HistoryEntry, slug string, episode int) bool {
	return e.AnimeSlug == slug && e.Episode == episode
}

// parseLine parses a TSV line into a HistoryEntry.
func parseLine(line string) (media.HistoryEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numColumns {
		return media.HistoryEntry{}, fmt.Errorf("expected %d columns, got %d", numColumns, len(fields))
	}
	if fields[0] == "" {
		return media.HistoryEntry{}, fmt.Errorf("missing anime slug")
	}

	episode, _ := strconv.Atoi(fields[1])
	exported, _ := time.Parse(time.RFC3339, fields[4])

	return media.HistoryEntry{
		AnimeSlug:  fields[0],
		Episode:    episode,
		Kind:       media.ParseLinkKind(fields[2]),
		URL:        fields[3],
		ExportedAt: exported,
	}, nil
}

// formatLine converts a HistoryEntry to a TSV line.
func formatLine(e media.HistoryEntry) string {
	exported := ""
	if !e.ExportedAt.IsZero() {
		exported = e.ExportedAt.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{
		field(e.AnimeSlug),
		strconv.Itoa(e.Episode),
		e.Kind.String(),
		field(e.URL),
		exported,
	}, "\t")
}

// field keeps a value on one TSV cell.
func field(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
