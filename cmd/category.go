package cmd

import (
	"github.com/spf13/cobra"

	"animport/internal/logging"
)

var flagPages int

var categoryCmd = &cobra.Command{
	Use:   "category <slug>",
	Short: "Export every anime listed under a category",
	Args:  cobra.ExactArgs(1),
	RunE:  categoryRun,
}

func init() {
	categoryCmd.Flags().IntVar(&flagPages, "pages", 1, "Number of category pages to crawl")
	addExportFlags(categoryCmd)
}

func categoryRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.site.Category(cmd.Context(), args[0], flagPages)
	if err != nil {
		return err
	}
	logging.Info("category listed", "category", args[0], "anime", len(results))

	ex, err := newExporter(cmd, a, "category-"+args[0])
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := ex.anime(cmd.Context(), r.URL); err != nil {
			ex.finish()
			return err
		}
	}
	return ex.finish()
}
