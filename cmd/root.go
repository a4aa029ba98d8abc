// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"animport/internal/browser"
	"animport/internal/config"
	"animport/internal/extract"
	"animport/internal/history"
	"animport/internal/httputil"
	"animport/internal/logging"
	"animport/internal/provider"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig  string
	flagBase    string
	flagFetcher string
	flagDebug   bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "animport [query]",
	Short: "Import anime metadata and episode video links as SQL",
	Long: `animport scrapes anime metadata from a streaming site, resolves a playable
video link for every episode and emits SQL inserts or writes a SQLite database.`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: loadConfig,
	RunE:              searchRun,
	SilenceUsage:      true,
}

// Execute runs the root command. Interrupts cancel in-flight work.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/animport/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagBase, "base", "", "Site base URL")
	rootCmd.PersistentFlags().StringVar(&flagFetcher, "fetcher", "", "Page fetcher: http | browser")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		path, perr := config.ExpandPath(flagConfig)
		if perr != nil {
			return fmt.Errorf("loading config: %w", perr)
		}
		cfg, err = config.LoadFile(path, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagBase != "" {
		cfg.Base = flagBase
	}
	if flagFetcher != "" {
		cfg.Fetcher = flagFetcher
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(os.Stderr, cfg.Debug)
	logging.Debug("configuration loaded", "base", cfg.Base, "fetcher", cfg.Fetcher)
	return nil
}

// app bundles the collaborators every command needs.
type app struct {
	pages    provider.Fetcher // site pages, http or browser
	http     *httputil.Fetcher
	resolver *extract.Resolver
	site     *provider.Site
	close    func() error
}

// newApp wires fetchers, provider and resolver from the loaded configuration.
func newApp(c *config.Config) (*app, error) {
	httpFetcher := httputil.NewFetcher(httputil.FetcherOptions{
		Client:       httputil.NewClient(c.Timeout),
		UserAgent:    c.UserAgent,
		Retry:        httputil.RetryPolicy{Retries: c.Retries, BaseDelay: c.RetryDelay},
		RequestDelay: c.RequestDelay,
	})

	a := &app{pages: httpFetcher, http: httpFetcher, close: func() error { return nil }}
	if strings.EqualFold(c.Fetcher, "browser") {
		b := browser.New(browser.Options{
			UserAgent:    c.UserAgent,
			Timeout:      c.Timeout,
			Retry:        httputil.RetryPolicy{Retries: c.Retries, BaseDelay: c.RetryDelay},
			RequestDelay: c.RequestDelay,
			Install:      c.InstallBrowser,
		})
		a.pages = b
		a.close = b.Close
	}

	var err error
	if a.resolver, err = extract.New(c, a.pages); err != nil {
		return nil, err
	}
	if a.site, err = provider.NewSite(c.Origin(), a.pages); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the browser when one was started.
func (a *app) Close() {
	if err := a.close(); err != nil {
		logging.Warn("closing fetcher", "err", err)
	}
}

// historyStore returns the export history, or nil when it is disabled.
func historyStore(c *config.Config) (*history.Store, error) {
	if !c.History {
		return nil, nil
	}
	return history.Default()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "animport %s\n", Version)
	},
}
