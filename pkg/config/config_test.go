package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "downloads", cfg.Output.Directory)
	assert.Equal(t, 50, cfg.Download.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Download.BatchDelay)
	assert.Equal(t, 15*time.Minute, cfg.Download.RateLimitWaitTime)
	assert.Equal(t, 3, cfg.Download.MaxRateLimitRetries)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Delay)
	assert.Equal(t, 50, cfg.RateLimit.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.State.CacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestStateDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Directory = "/data/likes"
	assert.Equal(t, filepath.Join("/data/likes", ".tweetvault"), cfg.StateDir())

	cfg.State.Directory = "/var/lib/tweetvault"
	assert.Equal(t, "/var/lib/tweetvault", cfg.StateDir())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWEETVAULT_OUTPUT_DIR", "/tmp/vault")
	t.Setenv("TWEETVAULT_BATCH_SIZE", "10")
	t.Setenv("TWEETVAULT_BATCH_DELAY", "2500")
	t.Setenv("TWEETVAULT_RATE_LIMIT_WAIT_TIME", "1m")
	t.Setenv("TWEETVAULT_HISTORY_LIMIT", "5")
	t.Setenv("TWEETVAULT_STATE_BACKEND", "memory://")
	t.Setenv("TWITTER_COOKIE", "auth_token=abc")
	t.Setenv("TWEETVAULT_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/vault", cfg.Output.Directory)
	assert.Equal(t, 10, cfg.Download.BatchSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.Download.BatchDelay)
	assert.Equal(t, time.Minute, cfg.Download.RateLimitWaitTime)
	assert.Equal(t, 5, cfg.RateLimit.HistoryLimit)
	assert.Equal(t, "memory://", cfg.State.Backend)
	assert.Equal(t, "auth_token=abc", cfg.Auth.Cookie)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvPrefersPrefixedCookie(t *testing.T) {
	t.Setenv("TWITTER_COOKIE", "legacy")
	t.Setenv("TWEETVAULT_COOKIE", "current")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "current", cfg.Auth.Cookie)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("TWEETVAULT_BATCH_SIZE", "many")
	t.Setenv("TWEETVAULT_RETRY_DELAY", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWEETVAULT_BATCH_SIZE")
	assert.Contains(t, err.Error(), "TWEETVAULT_RETRY_DELAY")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output:
  directory: /srv/likes
download:
  batch_size: 25
  batch_delay: 10s
rate_limit:
  history_limit: 20
state:
  backend: badger:///srv/likes/state
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "/srv/likes", cfg.Output.Directory)
	assert.Equal(t, 25, cfg.Download.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Download.BatchDelay)
	assert.Equal(t, 20, cfg.RateLimit.HistoryLimit)
	assert.Equal(t, "badger:///srv/likes/state", cfg.State.Backend)
	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Minute, cfg.Download.RateLimitWaitTime)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download: [unterminated"), 0644))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty output", func(c *Config) { c.Output.Directory = "" }, "output directory"},
		{"zero batch size", func(c *Config) { c.Download.BatchSize = 0 }, "batch size"},
		{"negative delay", func(c *Config) { c.Download.BatchDelay = -time.Second }, "batch delay"},
		{"negative rate limit retries", func(c *Config) { c.Download.MaxRateLimitRetries = -1 }, "max rate limit retries"},
		{"zero history", func(c *Config) { c.RateLimit.HistoryLimit = 0 }, "history limit"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"bad backoff", func(c *Config) { c.RateLimit.Backoff = "random" }, "backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.BatchSize = 0
	cfg.RateLimit.HistoryLimit = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
	assert.Contains(t, err.Error(), "history limit")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Auth.Cookie = "secret"
	cfg.Download.BatchSize = 7
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":     "/flag/out",
		"batch-size": 3,
		"log-level":  "error",
		"cookie":     "",
	})

	assert.Equal(t, "/flag/out", cfg.Output.Directory)
	assert.Equal(t, 3, cfg.Download.BatchSize)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Empty(t, cfg.Auth.Cookie)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  batch_size: 20\n  max_retries: 9\n"), 0644))

	t.Setenv("TWEETVAULT_BATCH_SIZE", "30")

	cfg, err := Load(path, map[string]interface{}{"batch-size": 40})
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Download.BatchSize)
	assert.Equal(t, 9, cfg.Download.MaxRetries)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  history_limit: -1\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
