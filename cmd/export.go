package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"animport/internal/config"
	"animport/internal/export"
	"animport/internal/extract"
	"animport/internal/history"
	"animport/internal/httputil"
	"animport/internal/logging"
	"animport/internal/media"
)

// exportFlags are shared by every command that exports anime.
type exportFlags struct {
	output string
	db     string
	force  bool
	limit  int
}

var flagExport exportFlags

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagExport.output, "output", "o", "", "SQL script destination, file or - for stdout (default from config)")
	cmd.Flags().StringVar(&flagExport.db, "db", "", "Also upsert rows into this SQLite database")
	cmd.Flags().BoolVar(&flagExport.force, "force", false, "Re-resolve episodes that already have a direct link in history")
	cmd.Flags().IntVar(&flagExport.limit, "limit", 0, "Export at most this many episodes per anime (0 = all)")
}

var exportCmd = &cobra.Command{
	Use:   "export <anime-url>...",
	Short: "Export anime metadata and resolved episode links",
	Args:  cobra.MinimumNArgs(1),
	RunE:  exportRun,
}

func init() {
	addExportFlags(exportCmd)
}

func exportRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ex, err := newExporter(cmd, a, "export")
	if err != nil {
		return err
	}
	for _, target := range args {
		if err := ex.anime(cmd.Context(), a.site.AnimeURL(target)); err != nil {
			ex.finish()
			return err
		}
	}
	return ex.finish()
}

// exportStats counts what an export run produced.
type exportStats struct {
	animes   int
	episodes int
	direct   int
	fallback int
	absent   int
	skipped  int
	failed   int
}

// exporter runs the sequential export of one or more anime into a sink.
type exporter struct {
	app     *app
	sink    export.Sink
	store   *history.Store
	entries []media.HistoryEntry
	force   bool
	limit   int
	runID   string
	stats   exportStats
}

// newExporter opens the configured sinks. name labels the script file when
// --output points at a directory.
func newExporter(cmd *cobra.Command, a *app, name string) (*exporter, error) {
	runID := uuid.NewString()
	started := time.Now()

	sink, err := openSinks(cmd, cfg, name+"-"+started.Format("20060102-150405"), runID, started)
	if err != nil {
		return nil, err
	}

	ex := &exporter{
		app:   a,
		sink:  sink,
		force: flagExport.force,
		limit: flagExport.limit,
		runID: runID,
	}

	if ex.store, err = historyStore(cfg); err != nil {
		logging.Warn("export history unavailable", "err", err)
	}
	if ex.store != nil {
		if ex.entries, err = ex.store.Load(); err != nil {
			logging.Warn("reading export history", "err", err)
		}
	}

	logging.Debug("export started", "run", runID)
	return ex, nil
}

// openSinks builds the SQL script sink and, with --db, the SQLite sink.
// The script goes to stdout unless --output names a file or --db is given
// without --output.
func openSinks(cmd *cobra.Command, c *config.Config, name, runID string, started time.Time) (export.Sink, error) {
	db := flagExport.db
	if db == "" {
		db = c.Database
	}
	output := c.Output
	if cmd.Flags().Changed("output") {
		output = flagExport.output
	} else if flagExport.db != "" {
		output = ""
	}

	var sinks export.MultiSink
	if output != "" {
		w, closeOutput, err := openOutput(output, name)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, closingSink{export.NewScriptSink(w, runID, started), closeOutput})
	}
	if db != "" {
		path, err := config.ExpandPath(db)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		s, err := export.OpenSQLite(path, runID, started)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil, errors.New("nothing to export to: set --output or --db")
	}
	return sinks, nil
}

// openOutput opens the script destination. A directory gets a file named
// after the run.
func openOutput(output, name string) (io.Writer, func() error, error) {
	if output == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	path, err := config.ExpandPath(output)
	if err != nil {
		return nil, nil, err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if path, err = httputil.SafeOutputPath(path, name+".sql"); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening output: %w", err)
	}
	return f, f.Close, nil
}

// closingSink closes the output file after the wrapped sink flushes.
type closingSink struct {
	export.Sink
	closeOutput func() error
}

func (s closingSink) Close() error {
	return errors.Join(s.Sink.Close(), s.closeOutput())
}

// anime exports one anime page. Scrape and resolve failures are logged and
// skipped; only sink errors are returned.
func (ex *exporter) anime(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a, episodes, err := ex.app.site.GetAnimeWithEpisodes(ctx, pageURL)
	if err != nil {
		logging.Warn("skipping anime", "url", pageURL, "err", err)
		ex.stats.failed++
		return nil
	}
	if err := ex.sink.WriteAnime(a); err != nil {
		return err
	}
	ex.stats.animes++
	logging.Info("exporting", "anime", a.Title, "slug", a.Slug, "episodes", len(episodes))

	if ex.limit > 0 && len(episodes) > ex.limit {
		episodes = episodes[:ex.limit]
	}

	for _, ep := range episodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ex.episode(ctx, ep); err != nil {
			return err
		}
	}
	return nil
}

func (ex *exporter) episode(ctx context.Context, ep media.Episode) error {
	if !ex.force && ep.Number > 0 && history.ShouldSkip(ex.entries, ep.AnimeSlug, ep.Number) {
		logging.Debug("already exported with a direct link", "anime", ep.AnimeSlug, "episode", ep.Number)
		ex.stats.skipped++
		return nil
	}

	res, err := ex.app.resolver.Resolve(ctx, ep.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, extract.ErrFetch) {
			logging.Warn("episode page unavailable", "anime", ep.AnimeSlug, "episode", ep.Number, "err", err)
		} else {
			logging.Warn("resolving episode", "url", ep.URL, "err", err)
		}
	}

	if err := ex.sink.WriteEpisode(ep, res); err != nil {
		return err
	}
	ex.count(res)
	logging.Debug("episode resolved", "anime", ep.AnimeSlug, "episode", ep.Number, "kind", res.Kind, "url", res.URL)

	if ex.store != nil && ep.Number > 0 && err == nil {
		entry := media.HistoryEntry{
			AnimeSlug:  ep.AnimeSlug,
			Episode:    ep.Number,
			Kind:       res.Kind,
			URL:        res.URL,
			ExportedAt: time.Now(),
		}
		if err := ex.store.Save(entry); err != nil {
			logging.Warn("recording history", "err", err)
		}
	}
	return nil
}

func (ex *exporter) count(res media.Resolution) {
	ex.stats.episodes++
	switch res.Kind {
	case media.Direct:
		ex.stats.direct++
	case media.Fallback:
		ex.stats.fallback++
	default:
		ex.stats.absent++
	}
}

// finish closes the sinks and logs a summary.
func (ex *exporter) finish() error {
	err := ex.sink.Close()
	s := ex.stats
	logging.Info("export finished",
		"run", ex.runID,
		"animes", s.animes,
		"episodes", s.episodes,
		"direct", s.direct,
		"fallback", s.fallback,
		"absent", s.absent,
		"skipped", s.skipped,
		"failed", s.failed,
	)
	if err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}
