package export

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"animport/internal/media"
)

// ScriptSink writes one INSERT statement per row to w.
type ScriptSink struct {
	w   *bufio.Writer
	err error // first write error; later writes are skipped
}

// NewScriptSink writes a header naming the run, then returns the sink.
// An empty runID omits the header.
func NewScriptSink(w io.Writer, runID string, started time.Time) *ScriptSink {
	s := &ScriptSink{w: bufio.NewWriter(w)}
	if runID != "" {
		s.printf("-- animport run %s started %s\n\n", sanitizeComment(runID), started.UTC().Format(time.RFC3339))
	}
	return s
}

func (s *ScriptSink) WriteAnime(a *media.Anime) error {
	s.insert("animes", newAnimeRow(a, "").columns())
	return s.err
}

func (s *ScriptSink) WriteEpisode(e media.Episode, r media.Resolution) error {
	s.insert("episodes", newEpisodeRow(e, r, "").columns())
	return s.err
}

// Close flushes buffered statements. The underlying writer is left open.
func (s *ScriptSink) Close() error {
	if s.err != nil {
		return s.err
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing SQL output: %w", err)
	}
	return nil
}

func (s *ScriptSink) insert(table string, cols []column) {
	names := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
		values[i] = literal(c.value)
	}
	s.printf("INSERT INTO %s (%s) VALUES (%s);\n", table, strings.Join(names, ", "), strings.Join(values, ", "))
}

func (s *ScriptSink) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		s.err = fmt.Errorf("writing SQL output: %w", err)
	}
}

// literal renders a value as a SQL literal. Absent values become NULL.
func literal(v any) string {
	switch v := v.(type) {
	case string:
		return quote(v)
	case sql.NullString:
		if !v.Valid {
			return "NULL"
		}
		return quote(v.String)
	case sql.NullInt64:
		if !v.Valid {
			return "NULL"
		}
		return strconv.FormatInt(v.Int64, 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return "NULL"
	default:
		return quote(fmt.Sprint(v))
	}
}

// quote wraps s in single quotes, doubling embedded quotes and dropping NUL
// bytes.
func quote(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sanitizeComment(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}
