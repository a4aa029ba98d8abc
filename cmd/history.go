package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"animport/internal/history"
	"animport/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List exported episodes",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <slug> <episode>",
	Short: "Forget an exported episode so the next export resolves it again",
	Args:  cobra.ExactArgs(2),
	RunE:  historyRmRun,
}

func init() {
	historyCmd.AddCommand(historyRmCmd)
}

func openHistory() (*history.Store, error) {
	store, err := historyStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if store == nil {
		return nil, errors.New("history is disabled in the configuration")
	}
	return store, nil
}

func historyRun(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	entries, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}
	for _, line := range history.FormatForDisplay(entries) {
		fmt.Fprintln(out, line)
	}
	return nil
}

func historyRmRun(cmd *cobra.Command, args []string) error {
	episode, err := strconv.Atoi(args[1])
	if err != nil || episode <= 0 {
		return fmt.Errorf("invalid episode number %q", args[1])
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	if _, ok, err := store.Lookup(args[0], episode); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%s episode %d is not in the history", args[0], episode)
	}

	if ui.IsInteractive() {
		yes, err := ui.Confirm(fmt.Sprintf("Forget %s episode %d?", args[0], episode))
		if err != nil || !yes {
			return err
		}
	}
	return store.Remove(args[0], episode)
}
