package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tweetvault/pkg/auth"
	"tweetvault/pkg/config"
	"tweetvault/pkg/ui"
)

const defaultConfigName = "tweetvault.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tweetvault configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TWEETVAULT_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as 'tweetvault.yaml' unless a
different path is given with --config. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

The session cookie is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration from every source and check it.

Errors are values out of range or unparsable; warnings are things that will
make a download fail, like a missing cookie or likes archive.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# tweetvault configuration file
#
# Every option can also be set with an environment variable prefixed with
# TWEETVAULT_, for example TWEETVAULT_BATCH_SIZE or TWEETVAULT_COOKIE.

output:
  # One folder per post is created here
  directory: downloads
  # Likes archive from the data export
  likes_file: like.js

download:
  # Posts per batch and pause between batches
  batch_size: 50
  batch_delay: 5s
  # Wait after a rate limit, and how many times to retry one post
  rate_limit_wait_time: 15m
  max_rate_limit_retries: 3
  # Transient retries per file
  max_retries: 1
  retry_delay: 5s
  timeout: 30s
  requests_per_minute: 60

rate_limit:
  # A new run waits this long after the last recorded rate limit
  delay: 15m
  history_limit: 50
  # constant, linear or exponential
  backoff: constant

state:
  # Empty for JSON files, or memory://, badger://<dir>, postgres://...
  backend: ""
  # Defaults to <output.directory>/.tweetvault
  directory: ""
  cache_ttl: 5s

auth:
  # Cookie header from a logged-in browser session; prefer 'tweetvault auth login'
  cookie: ""
  user_agent: ""

notifications:
  enabled: false
  on_complete: true
  on_rate_limit: true

logging:
  # debug, info, warn, error
  level: info
  # Empty to log to the console only
  file: downloads/download.log
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = defaultConfigName
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	p := ui.Printer{Out: cmd.OutOrStdout(), Quiet: quiet}
	p.Success("Configuration file created: %s", configPath)
	if !quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "1. Store your session cookie with 'tweetvault auth login'")
		fmt.Fprintln(out, "2. Run 'tweetvault config validate' to check the configuration")
		fmt.Fprintln(out, "3. Start downloading with 'tweetvault download'")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.Printer{Out: out, Quiet: quiet}.Highlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	return nil
}

// maskedConfig returns a copy of cfg safe to print
func maskedConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	if masked.Auth.Cookie != "" {
		masked.Auth.Cookie = auth.MaskCookie(masked.Auth.Cookie)
	}
	return &masked
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	p := ui.Printer{Out: cmd.OutOrStdout(), Quiet: quiet}
	if configFile != "" {
		p.Info("Validating configuration", configFile)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	warnings := configWarnings(cfg)
	for _, w := range warnings {
		p.Warning("%s", w)
	}
	p.Success("Configuration is valid")

	if !quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\nConfiguration summary:")
		fmt.Fprintf(out, "  Output directory: %s\n", cfg.Output.Directory)
		fmt.Fprintf(out, "  State directory: %s (%s)\n", cfg.StateDir(), backendName(cfg.State.Backend))
		fmt.Fprintf(out, "  Batches: %d posts, %s apart\n", cfg.Download.BatchSize, cfg.Download.BatchDelay)
		fmt.Fprintf(out, "  Rate limit: wait %s, %d retries, %s backoff\n",
			cfg.Download.RateLimitWaitTime, cfg.Download.MaxRateLimitRetries, cfg.RateLimit.Backoff)
		fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	}
	return nil
}

// configWarnings lists settings that are valid but will get in the way of
// a download.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.Auth.Cookie == "" {
		manager, err := auth.NewManager()
		if err != nil || !hasDefaultCredential(manager) {
			warnings = append(warnings, "No session cookie configured; run 'tweetvault auth login'")
		}
	} else if missing := auth.MissingSessionCookies(cfg.Auth.Cookie); len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("Cookie is missing %v", missing))
	}

	if _, err := os.Stat(cfg.Output.LikesFile); errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("Likes archive not found: %s", cfg.Output.LikesFile))
	}
	if cfg.Download.MaxRateLimitRetries == 0 {
		warnings = append(warnings, "max_rate_limit_retries is 0; rate limited posts fail immediately")
	}
	return warnings
}

func hasDefaultCredential(m *auth.Manager) bool {
	_, err := m.Retrieve(auth.DefaultProfile)
	return err == nil
}
