// Package config handles TOML-based configuration loading and validation.
// The allow/deny lists that drive link classification live here as data so
// a site change never needs a code change.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Base         string        `toml:"base"`
	EpisodePath  string        `toml:"episode_path"`
	Fetcher      string        `toml:"fetcher"`
	UserAgent    string        `toml:"user_agent"`
	Timeout      time.Duration `toml:"timeout"`
	Retries      int           `toml:"retries"`
	RetryDelay   time.Duration `toml:"retry_delay"`
	RequestDelay time.Duration `toml:"request_delay"`
	ScheduleAPI  string        `toml:"schedule_api"`
	Output       string        `toml:"output"`
	Database     string        `toml:"database"`
	History      bool          `toml:"history"`
	Debug        bool          `toml:"debug"`
	Links        Links         `toml:"links"`

	// InstallBrowser lets the browser fetcher download Chromium on first use.
	InstallBrowser bool `toml:"install_browser"`
}

// Links configures candidate extraction and classification.
type Links struct {
	DirectHosts                  []string `toml:"direct_hosts"`
	Placeholders                 []string `toml:"placeholders"`
	GenericEmbedHosts            []string `toml:"generic_embed_hosts"`
	GenericEmbedsArePlaceholders bool     `toml:"generic_embeds_are_placeholders"`
	EncodedAttributes            []string `toml:"encoded_attributes"`
	RedirectEndpoint             string   `toml:"redirect_endpoint"`
	RedirectParam                string   `toml:"redirect_param"`
	InternalPaths                []string `toml:"internal_paths"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Base:         "https://animesonline.example",
		EpisodePath:  "/episodio/",
		Fetcher:      "http",
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/121.0",
		Timeout:      30 * time.Second,
		Retries:      3,
		RetryDelay:   time.Second,
		RequestDelay: 750 * time.Millisecond,
		ScheduleAPI:  "https://api.jikan.moe/v4",
		Output:       "-",
		History:      true,
		Debug:        false,
		Links: Links{
			DirectHosts: []string{
				"blogger.com/video",
				"googlevideo.com",
				"mp4upload.com",
				"streamtape.com",
				"filemoon",
				"ok.ru/videoembed",
				"mega.nz/embed",
				"drive.google.com/file",
			},
			Placeholders:                 nil,
			GenericEmbedHosts:            []string{"youtube.com", "youtu.be", "youtube-nocookie.com"},
			GenericEmbedsArePlaceholders: true,
			EncodedAttributes:            []string{"data-video", "data-src", "data-player"},
			RedirectEndpoint:             "/aviso/",
			RedirectParam:                "url",
			InternalPaths:                nil,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "animport"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "animport"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the default config file and merges it with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path, false)
}

// LoadFile reads the config at path. A missing file yields defaults unless
// required is set.
func LoadFile(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base must be an absolute http(s) URL, got %q", c.Base)
	}

	validFetchers := map[string]bool{"http": true, "browser": true}
	if !validFetchers[strings.ToLower(c.Fetcher)] {
		return fmt.Errorf("unsupported fetcher %q (valid: http, browser)", c.Fetcher)
	}

	if c.Retries < 0 || c.Retries > 10 {
		return fmt.Errorf("retries must be between 0 and 10, got %d", c.Retries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryDelay < 0 || c.RequestDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}

	if c.Links.RedirectEndpoint != "" && c.Links.RedirectParam == "" {
		return fmt.Errorf("links.redirect_param is required when links.redirect_endpoint is set")
	}
	for _, attr := range c.Links.EncodedAttributes {
		if attr == "" || strings.ContainsAny(attr, " \t\"'<>=") {
			return fmt.Errorf("invalid encoded attribute name %q", attr)
		}
	}

	return nil
}

// Origin returns the scheme and host of the base URL without a trailing slash.
func (c *Config) Origin() string {
	u, err := url.Parse(c.Base)
	if err != nil {
		return strings.TrimRight(c.Base, "/")
	}
	return u.Scheme + "://" + u.Host
}

// ExpandPath resolves a leading ~ in a user-supplied path.
func ExpandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(p)
}

// HistoryPath returns the path to the export history file.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "animport", "history.tsv"), nil
}
