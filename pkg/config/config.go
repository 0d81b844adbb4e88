package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TWEETVAULT_"

// Config holds all configuration options for tweetvault
type Config struct {
	// Where item directories and the likes archive live
	Output OutputConfig `yaml:"output" json:"output"`

	// Batch scheduling and retry policy
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limit cooldown and history retention
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Persistence of aggregate state, rate-limit state and the error set
	State StateConfig `yaml:"state" json:"state"`

	// Upstream credentials
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	LikesFile string `yaml:"likes_file" json:"likes_file"`
}

// DownloadConfig holds batch and retry configuration
type DownloadConfig struct {
	BatchSize           int           `yaml:"batch_size" json:"batch_size"`
	BatchDelay          time.Duration `yaml:"batch_delay" json:"batch_delay"`
	RateLimitWaitTime   time.Duration `yaml:"rate_limit_wait_time" json:"rate_limit_wait_time"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries" json:"max_rate_limit_retries"`
	MaxRetries          int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute   int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RateLimitConfig holds rate limit tracking configuration
type RateLimitConfig struct {
	Delay        time.Duration `yaml:"delay" json:"delay"`
	HistoryLimit int           `yaml:"history_limit" json:"history_limit"`
	// Backoff between rate-limit retries: constant, linear or exponential
	Backoff string `yaml:"backoff" json:"backoff"`
}

// StateConfig selects the persistence backend.
//
// Backend is a DSN: empty or file://<dir> for JSON files, memory:// for a
// process-local store, badger://<dir> for an embedded KV store, or a
// postgres:// connection string.
type StateConfig struct {
	Backend   string        `yaml:"backend" json:"backend"`
	Directory string        `yaml:"directory" json:"directory"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// AuthConfig holds the upstream session cookie
type AuthConfig struct {
	Cookie    string `yaml:"cookie" json:"cookie"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	OnComplete  bool `yaml:"on_complete" json:"on_complete"`
	OnRateLimit bool `yaml:"on_rate_limit" json:"on_rate_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Directory: "downloads",
			LikesFile: "like.js",
		},
		Download: DownloadConfig{
			BatchSize:           50,
			BatchDelay:          5 * time.Second,
			RateLimitWaitTime:   15 * time.Minute,
			MaxRateLimitRetries: 3,
			MaxRetries:          1,
			RetryDelay:          5 * time.Second,
			Timeout:             30 * time.Second,
			RequestsPerMinute:   60,
		},
		RateLimit: RateLimitConfig{
			Delay:        15 * time.Minute,
			HistoryLimit: 50,
			Backoff:      "constant",
		},
		State: StateConfig{
			CacheTTL: 5 * time.Second,
		},
		Auth: AuthConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Notifications: NotificationConfig{
			Enabled:     false,
			OnComplete:  true,
			OnRateLimit: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join("downloads", "download.log"),
		},
	}
}

// StateDir returns the directory holding persisted state files
func (c *Config) StateDir() string {
	if c.State.Directory != "" {
		return c.State.Directory
	}
	return filepath.Join(c.Output.Directory, ".tweetvault")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv(envPrefix + "LIKES_FILE"); v != "" {
		c.Output.LikesFile = v
	}

	envInt(envPrefix+"BATCH_SIZE", &c.Download.BatchSize, &errs)
	envDuration(envPrefix+"BATCH_DELAY", &c.Download.BatchDelay, &errs)
	envDuration(envPrefix+"RATE_LIMIT_WAIT_TIME", &c.Download.RateLimitWaitTime, &errs)
	envInt(envPrefix+"MAX_RATE_LIMIT_RETRIES", &c.Download.MaxRateLimitRetries, &errs)
	envInt(envPrefix+"MAX_RETRIES", &c.Download.MaxRetries, &errs)
	envDuration(envPrefix+"RETRY_DELAY", &c.Download.RetryDelay, &errs)
	envInt(envPrefix+"REQUESTS_PER_MINUTE", &c.Download.RequestsPerMinute, &errs)
	envDuration(envPrefix+"RATE_LIMIT_DELAY", &c.RateLimit.Delay, &errs)
	envInt(envPrefix+"HISTORY_LIMIT", &c.RateLimit.HistoryLimit, &errs)
	if v := os.Getenv(envPrefix + "RATE_LIMIT_BACKOFF"); v != "" {
		c.RateLimit.Backoff = v
	}
	envDuration(envPrefix+"CACHE_TTL", &c.State.CacheTTL, &errs)

	if v := os.Getenv(envPrefix + "STATE_BACKEND"); v != "" {
		c.State.Backend = v
	}
	if v := os.Getenv(envPrefix + "STATE_DIR"); v != "" {
		c.State.Directory = v
	}

	// TWITTER_COOKIE is the name the exporter tooling has always used
	if v := os.Getenv("TWITTER_COOKIE"); v != "" {
		c.Auth.Cookie = v
	}
	if v := os.Getenv(envPrefix + "COOKIE"); v != "" {
		c.Auth.Cookie = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Auth.UserAgent = v
	}

	if v := os.Getenv(envPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv(envPrefix + "LOG_FILE"); ok {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

func envInt(key string, dst *int, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

// envDuration accepts Go duration strings or a bare number of milliseconds
func envDuration(key string, dst *time.Duration, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".tweetvault.yaml",
		".tweetvault.yml",
		"tweetvault.yaml",
		filepath.Join(home, ".config", "tweetvault", "config.yaml"),
		filepath.Join(home, ".config", "tweetvault", "config.yml"),
		filepath.Join(home, ".tweetvault.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Download.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Download.BatchDelay < 0 {
		errs = append(errs, errors.New("batch delay cannot be negative"))
	}
	if c.Download.RateLimitWaitTime < 0 {
		errs = append(errs, errors.New("rate limit wait time cannot be negative"))
	}
	if c.Download.MaxRateLimitRetries < 0 {
		errs = append(errs, errors.New("max rate limit retries cannot be negative"))
	}
	if c.Download.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Download.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.RateLimit.Delay < 0 {
		errs = append(errs, errors.New("rate limit delay cannot be negative"))
	}
	if c.RateLimit.HistoryLimit <= 0 {
		errs = append(errs, errors.New("history limit must be positive"))
	}
	switch strings.ToLower(c.RateLimit.Backoff) {
	case "", "constant", "flat", "linear", "exponential":
	default:
		errs = append(errs, fmt.Errorf("invalid rate limit backoff %q", c.RateLimit.Backoff))
	}

	if c.State.CacheTTL < 0 {
		errs = append(errs, errors.New("state cache TTL cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold the session cookie
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map override file and environment values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["likes-file"].(string); ok && v != "" {
		c.Output.LikesFile = v
	}
	if v, ok := flags["batch-size"].(int); ok && v > 0 {
		c.Download.BatchSize = v
	}
	if v, ok := flags["batch-delay"].(time.Duration); ok {
		c.Download.BatchDelay = v
	}
	if v, ok := flags["rate-limit-wait"].(time.Duration); ok {
		c.Download.RateLimitWaitTime = v
	}
	if v, ok := flags["max-rate-limit-retries"].(int); ok {
		c.Download.MaxRateLimitRetries = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Auth.Cookie = v
	}
	if v, ok := flags["state-backend"].(string); ok && v != "" {
		c.State.Backend = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetvault.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Environment includes values from .env
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
