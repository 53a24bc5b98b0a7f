package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "REPORT_CLI_"
	configEnvVar = "REPORT_CLI_CONFIG"
)

// Loader loads configuration from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	explicit    bool // configPaths came from WithConfigPaths
	dotEnvPaths []string
	envPrefix   string
	source      string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths sets the config file search paths. The first existing
// file wins. Explicit paths take precedence over REPORT_CLI_CONFIG.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
		l.explicit = true
	}
}

// WithDotEnv sets the .env files read before the environment. Missing files
// are skipped.
func WithDotEnv(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.dotEnvPaths = paths
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// NewLoader creates a Loader with the default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"report-cli.yaml",
			filepath.Join(ConfigDir(), "config.yaml"),
		},
		dotEnvPaths: []string{".env"},
		envPrefix:   envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load builds the configuration with increasing priority:
//  1. defaults
//  2. config file (yaml)
//  3. .env file, which never overrides variables already set
//  4. environment variables
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		return nil, err
	}

	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Source returns the config file that was loaded, or "" when none was found.
func (l *Loader) Source() string {
	return l.source
}

// All returns the merged flat key/value view of every loaded source.
func (l *Loader) All() map[string]any {
	return l.k.All()
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"api.base_url":        "http://localhost:2080/",
		"api.aerodrome":       "DEMO",
		"api.request_timeout": time.Minute,

		"session.idle_timeout": 6 * time.Hour,

		"download.dir":      ".",
		"download.verify":   "warn",
		"download.parallel": 4,

		"history.path": filepath.Join(DataDir(), "history.db"),

		"log.level":       "info",
		"log.format":      "text",
		"log.output":      "stderr",
		"log.file":        filepath.Join(StateDir(), "report-cli.log"),
		"log.max_size":    10,
		"log.max_backups": 3,
		"log.max_age":     28,

		"serve.addr": ":8080",
	}
}

func (l *Loader) loadConfigFile() error {
	paths := l.configPaths
	if p := os.Getenv(configEnvVar); p != "" && !l.explicit {
		// An explicitly named file must exist.
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %s: %w", p, err)
		}
		paths = []string{p}
	}

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		if err := l.k.Load(file.Provider(absPath), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", absPath, err)
		}
		l.source = absPath
		return nil
	}

	return nil
}

func (l *Loader) loadDotEnv() error {
	for _, path := range l.dotEnvPaths {
		err := godotenv.Load(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (l *Loader) loadEnv() error {
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey string, value string) (string, any) {
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))

		mapped, ok := envKeyMappings[key]
		if !ok {
			// Unknown variables, including the config path itself, are ignored.
			return "", nil
		}
		return mapped, value
	}), nil)
}

// envKeyMappings maps environment variable suffixes to config keys, since
// key names contain underscores themselves.
var envKeyMappings = map[string]string{
	"api_base_url":        "api.base_url",
	"api_aerodrome":       "api.aerodrome",
	"api_request_timeout": "api.request_timeout",

	"session_idle_timeout": "session.idle_timeout",

	"download_dir":      "download.dir",
	"download_verify":   "download.verify",
	"download_parallel": "download.parallel",

	"history_path": "history.path",

	"log_level":       "log.level",
	"log_format":      "log.format",
	"log_output":      "log.output",
	"log_file":        "log.file",
	"log_max_size":    "log.max_size",
	"log_max_backups": "log.max_backups",
	"log_max_age":     "log.max_age",

	"serve_addr": "serve.addr",
}
