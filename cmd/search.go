package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"animport/internal/logging"
	"animport/internal/provider"
	"animport/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the site, pick an episode and resolve its video link",
	Args:  cobra.ArbitraryArgs,
	RunE:  searchRun,
}

func init() {
	searchCmd.Flags().BoolVar(&flagJSON, "json", false, "Output JSON instead of text")
}

// searchRun is the default command: animport <query>
func searchRun(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	interactive := ui.IsInteractive()

	if query == "" {
		if !interactive {
			return errors.New("no search query provided")
		}
		var err error
		if query, err = ui.Input("Search"); err != nil {
			return err
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	logging.Debug("searching", "query", query)
	results, err := a.site.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	// Without a terminal there is nothing to pick from; list the hits.
	if !interactive {
		out := cmd.OutOrStdout()
		for _, r := range results {
			fmt.Fprintf(out, "%s\t%s\n", provider.FormatDisplayTitle(r), r.URL)
		}
		return nil
	}

	items := make([]string, len(results))
	for i, r := range results {
		items[i] = provider.FormatDisplayTitle(r)
	}
	idx, err := ui.Select("Select", items)
	if err != nil {
		return err
	}
	selected := results[idx]
	logging.Debug("selected", "title", selected.Title, "url", selected.URL)

	episodes, err := a.site.GetEpisodes(ctx, selected.URL)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes found for %s", selected.Title)
	}

	items = make([]string, len(episodes))
	for i, ep := range episodes {
		items[i] = provider.FormatEpisodeTitle(ep)
	}
	idx, err = ui.Select("Episode", items)
	if err != nil {
		return err
	}
	ep := episodes[idx]

	res, err := a.resolver.Resolve(ctx, ep.URL)
	if err != nil {
		return fmt.Errorf("resolving episode: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(newResolveOutput(ep.URL, res, nil))
	}
	printResolution(cmd.OutOrStdout(), ep.URL, res)
	return nil
}
