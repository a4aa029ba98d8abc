package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"animport/internal/extract"
	"animport/internal/logging"
	"animport/internal/media"
)

var flagJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <episode-url|id>...",
	Short: "Resolve episode pages to video links",
	Args:  cobra.MinimumNArgs(1),
	RunE:  resolveRun,
}

func init() {
	resolveCmd.Flags().BoolVar(&flagJSON, "json", false, "Output JSON instead of text")
}

// resolveOutput is one line of `resolve --json` output.
type resolveOutput struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`
	Error  string `json:"error,omitempty"`
}

func resolveRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	var failed int
	for _, target := range args {
		res, err := a.resolver.Resolve(cmd.Context(), target)
		if err != nil {
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			failed++
			if errors.Is(err, extract.ErrInvalidTarget) {
				logging.Error("invalid target", "target", target, "err", err)
			} else {
				logging.Warn("resolving", "target", target, "err", err)
			}
		}

		if flagJSON {
			if err := enc.Encode(newResolveOutput(target, res, err)); err != nil {
				return err
			}
			continue
		}
		printResolution(out, target, res)
	}

	if failed == len(args) {
		return fmt.Errorf("no episode could be resolved")
	}
	return nil
}

func newResolveOutput(target string, res media.Resolution, err error) resolveOutput {
	o := resolveOutput{Target: target, Kind: res.Kind.String(), URL: res.URL}
	if res.Found() {
		o.Method = res.Method.String()
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func printResolution(w io.Writer, target string, res media.Resolution) {
	if res.Found() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", target, res.Kind, res.URL)
		return
	}
	fmt.Fprintf(w, "%s\t%s\n", target, res.Kind)
}
