// Package config loads report-cli settings from defaults, a YAML file, a
// .env file and the environment.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName names the XDG directories and the default config file.
const AppName = "report-cli"

// Config is the full report-cli configuration.
type Config struct {
	API      APIConfig      `koanf:"api"`
	Session  SessionConfig  `koanf:"session"`
	Download DownloadConfig `koanf:"download"`
	History  HistoryConfig  `koanf:"history"`
	Log      LogConfig      `koanf:"log"`
	Serve    ServeConfig    `koanf:"serve"`
}

// APIConfig locates the report archive.
type APIConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Aerodrome      string        `koanf:"aerodrome"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// SessionConfig bounds interactive sessions.
type SessionConfig struct {
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// DownloadConfig controls where and how PDFs are saved.
type DownloadConfig struct {
	Dir      string `koanf:"dir"`
	Verify   string `koanf:"verify"` // off, warn, strict
	Parallel int    `koanf:"parallel"`
}

// HistoryConfig locates the download history database.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	File       string `koanf:"file"`
	MaxSize    int    `koanf:"max_size"` // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // days
}

// ServeConfig configures the HTML viewer.
type ServeConfig struct {
	Addr string `koanf:"addr"`
}

// DataDir returns the XDG data directory for report-cli.
// On Linux: ~/.local/share/report-cli
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns the XDG state directory for report-cli.
// On Linux: ~/.local/state/report-cli
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// ConfigDir returns the XDG config directory for report-cli.
// On Linux: ~/.config/report-cli
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Normalize fills in derived values: the base URL always ends in a slash
// because routes are built by concatenation.
func (c *Config) Normalize() {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL != "" && !strings.HasSuffix(c.API.BaseURL, "/") {
		c.API.BaseURL += "/"
	}
	c.API.Aerodrome = strings.TrimSpace(c.API.Aerodrome)
	c.Download.Verify = strings.ToLower(c.Download.Verify)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Log.Output = strings.ToLower(c.Log.Output)
}

// Validate returns the first invalid setting it finds.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must be an http or https URL, got %q", c.API.BaseURL)
	}
	if c.API.Aerodrome == "" {
		return fmt.Errorf("api.aerodrome is required")
	}
	if c.API.RequestTimeout < 0 {
		return fmt.Errorf("api.request_timeout must not be negative")
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative")
	}

	switch c.Download.Verify {
	case "off", "warn", "strict":
	default:
		return fmt.Errorf("download.verify must be off, warn or strict, got %q", c.Download.Verify)
	}
	if c.Download.Parallel < 1 {
		return fmt.Errorf("download.parallel must be at least 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Log.Output {
	case "stderr", "stdout":
	case "file":
		if c.Log.File == "" {
			return fmt.Errorf("log.file is required when log.output is file")
		}
	default:
		return fmt.Errorf("log.output must be stderr, stdout or file, got %q", c.Log.Output)
	}

	return nil
}
