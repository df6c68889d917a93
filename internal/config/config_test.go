package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cantontrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("test", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "https://www.cantonscan.com/api/stats", cfg.Source.URL)
	assert.Equal(t, 20*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 18, cfg.Ingest.Precision)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.PollInterval)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeYAML(t, `
listen: ":9000"
storage:
  driver: postgres
  dsn: postgres://yaml@localhost/stats
source:
  timeout: 5s
ingest:
  precision: 8
log:
  level: debug
dashboard:
  poll_interval: 1m
`)

	t.Setenv("CANTONTRACK_STORAGE_DSN", "postgres://env@localhost/stats")
	t.Setenv("CANTONTRACK_SOURCE_TIMEOUT", "7s")
	t.Setenv("CANTONTRACK_LOG_STDERR", "true")

	cfg, err := Load("test", []string{"-config=" + path, "-listen", ":9100"})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, ":9100", cfg.Listen, "flags override yaml")
	assert.Equal(t, "postgres", cfg.Storage.Driver, "yaml overrides defaults")
	assert.Equal(t, "postgres://env@localhost/stats", cfg.Storage.DSN, "env overrides yaml")
	assert.Equal(t, 7*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 8, cfg.Ingest.Precision)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Stderr)
	assert.Equal(t, time.Minute, cfg.Dashboard.PollInterval)
}

func TestLoad_InvalidInputs(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		path := writeYAML(t, "listen: [unclosed")
		_, err := Load("test", []string{"-config", path})
		assert.Error(t, err)
	})

	t.Run("bad env duration", func(t *testing.T) {
		t.Setenv("CANTONTRACK_SOURCE_TIMEOUT", "soon")
		_, err := Load("test", []string{"-config", filepath.Join(t.TempDir(), "none.yaml")})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "CANTONTRACK_SOURCE_TIMEOUT")
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := Load("test", []string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "-bogus"})
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "oracle" }, "storage driver"},
		{"empty dsn", func(c *Config) { c.Storage.DSN = "" }, "dsn"},
		{"empty source", func(c *Config) { c.Source.URL = "" }, "source url"},
		{"zero timeout", func(c *Config) { c.Source.Timeout = 0 }, "timeout"},
		{"precision too high", func(c *Config) { c.Ingest.Precision = 19 }, "precision"},
		{"negative precision", func(c *Config) { c.Ingest.Precision = -1 }, "precision"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"fast polling", func(c *Config) { c.Dashboard.PollInterval = 10 * time.Millisecond }, "poll interval"},
		{"no history", func(c *Config) { c.Dashboard.HistoryLimit = 0 }, "history limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestScanConfigPath(t *testing.T) {
	assert.Equal(t, "def.yaml", scanConfigPath(nil, "def.yaml"))
	assert.Equal(t, "a.yaml", scanConfigPath([]string{"-config", "a.yaml"}, "def.yaml"))
	assert.Equal(t, "b.yaml", scanConfigPath([]string{"--config=b.yaml"}, "def.yaml"))
	assert.Equal(t, "def.yaml", scanConfigPath([]string{"-config"}, "def.yaml"))
}

func TestLoad_ExtraFlags(t *testing.T) {
	var setup bool
	cfg, err := Load("ingest", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "-setup", "-precision", "6"},
		func(fs *flag.FlagSet) { fs.BoolVar(&setup, "setup", false, "create series only") })
	require.NoError(t, err)
	assert.True(t, setup)
	assert.Equal(t, 6, cfg.Ingest.Precision)

	_, err = Load("api", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "-setup"})
	assert.Error(t, err)
}

func TestConfig_StorageDir(t *testing.T) {
	tests := []struct {
		driver, dsn, want string
	}{
		{"sqlite", "../db/metrics.db", "../db"},
		{"sqlite", "metrics.db", "."},
		{"sqlite", "file:metrics.db?mode=ro", ""},
		{"badger", "/var/lib/cantontrack", "/var/lib/cantontrack"},
		{"badger", ":memory:", ""},
		{"postgres", "postgres://localhost/stats", ""},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Storage.Driver, cfg.Storage.DSN = tt.driver, tt.dsn
		assert.Equal(t, tt.want, cfg.StorageDir(), "%s %s", tt.driver, tt.dsn)
	}
}
