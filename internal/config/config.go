// Package config loads settings with priority:
// defaults < YAML file < .env / environment < command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cantontrack/internal/repository"
	"cantontrack/internal/series"
	"cantontrack/internal/util"
)

const envPrefix = "CANTONTRACK_"

type Config struct {
	Listen    string          `yaml:"listen"`
	Storage   StorageConfig   `yaml:"storage"`
	Source    SourceConfig    `yaml:"source"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Parsed from the command line only.
	ConfigPath string `yaml:"-"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SourceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type IngestConfig struct {
	Precision int `yaml:"precision"`
}

type LogConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Stderr bool   `yaml:"stderr"`
}

type DashboardConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	HistoryLimit int           `yaml:"history_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "../db/metrics.db",
		},
		Source: SourceConfig{
			URL:     "https://www.cantonscan.com/api/stats",
			Timeout: 20 * time.Second,
		},
		Ingest: IngestConfig{Precision: series.DefaultPrecision},
		Log: LogConfig{
			Dir:   "../log",
			Level: "info",
		},
		Dashboard: DashboardConfig{
			PollInterval: 30 * time.Second,
			HistoryLimit: 120,
		},
		ConfigPath: "cantontrack.yaml",
	}
}

// Load builds the configuration for a command. args excludes the program name.
// extra registers command specific flags on the same FlagSet.
func Load(name string, args []string, extra ...func(*flag.FlagSet)) (*Config, error) {
	cfg := DefaultConfig()

	configPath := scanConfigPath(args, cfg.ConfigPath)
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, err
	}
	cfg.ConfigPath = configPath

	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.registerFlags(fs)
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// scanConfigPath finds -config before the full flag parse so the file can be
// read ahead of env and flag overrides.
func scanConfigPath(args []string, def string) string {
	path := def
	if v := os.Getenv(envPrefix + "CONFIG"); v != "" {
		path = v
	}
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				path = args[i+1]
			}
		case strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config="):
			path = strings.SplitN(arg, "=", 2)[1]
		}
	}
	return path
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	log.Printf("[config] loaded %s", path)
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	setString("LISTEN", &c.Listen)
	setString("STORAGE_DRIVER", &c.Storage.Driver)
	setString("STORAGE_DSN", &c.Storage.DSN)
	setString("SOURCE_URL", &c.Source.URL)
	setString("LOG_DIR", &c.Log.Dir)
	setString("LOG_LEVEL", &c.Log.Level)

	durations := map[string]*time.Duration{
		"SOURCE_TIMEOUT":          &c.Source.Timeout,
		"DASHBOARD_POLL_INTERVAL": &c.Dashboard.PollInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"INGEST_PRECISION":        &c.Ingest.Precision,
		"DASHBOARD_HISTORY_LIMIT": &c.Dashboard.HistoryLimit,
	}
	for key, dst := range ints {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv(envPrefix + "LOG_STDERR"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sLOG_STDERR: %w", envPrefix, err)
		}
		c.Log.Stderr = b
	}
	return nil
}

func (c *Config) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "Path to the YAML config file")
	fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address (host:port)")
	fs.StringVar(&c.Storage.Driver, "driver", c.Storage.Driver, "Storage driver: "+strings.Join(repository.Drivers, ", "))
	fs.StringVar(&c.Storage.DSN, "dsn", c.Storage.DSN, "Storage DSN (file path for sqlite and badger)")
	fs.StringVar(&c.Source.URL, "source", c.Source.URL, "Upstream stats endpoint")
	fs.DurationVar(&c.Source.Timeout, "timeout", c.Source.Timeout, "Upstream request timeout")
	fs.IntVar(&c.Ingest.Precision, "precision", c.Ingest.Precision, "Fractional digits kept for stored values")
	fs.StringVar(&c.Log.Dir, "log-dir", c.Log.Dir, "Log folder")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level: error, warn, info, debug")
	fs.BoolVar(&c.Log.Stderr, "log-stderr", c.Log.Stderr, "Also write log lines to stderr")
}

func (c *Config) Validate() error {
	known := false
	for _, d := range repository.Drivers {
		if c.Storage.Driver == d {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("storage driver %q is not one of %s", c.Storage.Driver, strings.Join(repository.Drivers, ", "))
	}
	if c.Storage.DSN == "" {
		return errors.New("storage dsn is required")
	}
	if c.Source.URL == "" {
		return errors.New("source url is required")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("source timeout must be positive")
	}
	if c.Ingest.Precision < 0 || c.Ingest.Precision > series.DefaultPrecision {
		return fmt.Errorf("ingest precision must be between 0 and %d", series.DefaultPrecision)
	}
	if _, err := util.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Dashboard.PollInterval < time.Second {
		return errors.New("dashboard poll interval must be at least 1s")
	}
	if c.Dashboard.HistoryLimit < 1 {
		return errors.New("dashboard history limit must be positive")
	}
	return nil
}

// LogLevel is Log.Level as a util LOG_LEVEL_* value. Validate has already
// rejected unknown names.
func (c *Config) LogLevel() int {
	level, _ := util.ParseLevel(c.Log.Level)
	return level
}

// StorageDir is the folder holding a file backed store, or "" when the
// driver talks to a server or keeps data in memory.
func (c *Config) StorageDir() string {
	switch c.Storage.Driver {
	case "sqlite", "badger":
	default:
		return ""
	}
	dsn := c.Storage.DSN
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "?") {
		return ""
	}
	if c.Storage.Driver == "badger" {
		return dsn
	}
	return filepath.Dir(dsn)
}
