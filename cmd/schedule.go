package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"animport/internal/logging"
	"animport/internal/media"
	"animport/internal/provider"
	"animport/internal/schedule"
)

var flagList bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule [day]",
	Short: "Export the anime airing on a day of the week",
	Long: `schedule reads the weekly airing schedule, searches the site for each
title and exports the closest match. The day defaults to today.`,
	Args: cobra.MaximumNArgs(1),
	RunE: scheduleRun,
}

func init() {
	scheduleCmd.Flags().BoolVar(&flagList, "list", false, "Only list the schedule")
	addExportFlags(scheduleCmd)
}

func scheduleRun(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	day, err := schedule.ParseDay(arg, time.Now())
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	entries, err := schedule.NewClient(cfg.ScheduleAPI, a.http).Day(ctx, day)
	if err != nil {
		return err
	}
	logging.Info("schedule loaded", "day", day, "titles", len(entries))

	if flagList {
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s\t%s\t%s\n", e.Time, e.Title, e.TitleEnglish)
		}
		return nil
	}

	ex, err := newExporter(cmd, a, "schedule-"+strings.ToLower(day.String()))
	if err != nil {
		return err
	}
	for _, e := range entries {
		match, ok := findScheduled(ctx, a.site, e)
		if !ok {
			logging.Warn("not found on site", "title", e.Title)
			continue
		}
		if err := ex.anime(ctx, match.URL); err != nil {
			ex.finish()
			return err
		}
	}
	return ex.finish()
}

// findScheduled searches the site for a scheduled title, trying the English
// title when the original one has no close match.
func findScheduled(ctx context.Context, site *provider.Site, e media.ScheduleEntry) (media.SearchResult, bool) {
	for _, title := range []string{e.Title, e.TitleEnglish} {
		if title == "" {
			continue
		}
		results, err := site.Search(ctx, title)
		if err != nil {
			logging.Debug("schedule search", "title", title, "err", err)
			continue
		}
		if match, ok := provider.BestMatch(title, results); ok {
			return match, true
		}
	}
	return media.SearchResult{}, false
}
