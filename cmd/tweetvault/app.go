package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tweetvault/pkg/auth"
	"tweetvault/pkg/config"
	"tweetvault/pkg/logger"
	"tweetvault/pkg/manifest"
	"tweetvault/pkg/persist"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/state"
	"tweetvault/pkg/storage"
	"tweetvault/pkg/ui"
)

// app bundles what every state-touching command needs
type app struct {
	cfg       *config.Config
	log       logger.Logger
	backend   persist.Backend
	store     *state.Store
	errorSet  *state.ErrorSet
	tracker   *ratelimit.Tracker
	layout    *storage.Layout
	inspector *manifest.Inspector
	printer   ui.Printer
}

type appOptions struct {
	// flags are command-specific config overrides
	flags map[string]interface{}
	// console receives log lines; nil logs to the file only
	console io.Writer
}

func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	merged := globalFlags()
	for k, v := range flags {
		merged[k] = v
	}
	return config.Load(configFile, merged)
}

// newApp loads configuration, sets up logging and opens the state backend
func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig(opts.flags)
	if err != nil {
		return nil, err
	}

	if err := logger.InitializeWithConsole(&cfg.Logging, opts.console); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	backend, err := persist.Build(cfg.State.Backend, cfg.StateDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open state backend: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		backend: backend,
		store:   state.NewStore(state.Options{Backend: backend, CacheTTL: cfg.State.CacheTTL}),
		tracker: ratelimit.NewTracker(ratelimit.TrackerOptions{
			Delay:        cfg.RateLimit.Delay,
			HistoryLimit: cfg.RateLimit.HistoryLimit,
			Backend:      backend,
		}),
		errorSet: state.NewErrorSet(backend),
		layout:   storage.NewLayout(cfg.Output.Directory),
		printer:  ui.Printer{Out: os.Stdout, Quiet: quiet},
	}
	a.inspector = manifest.NewInspector(a.layout)

	if err := a.tracker.Load(); err != nil {
		log.WithError(err).Warn("Starting with empty rate limit state")
	}
	if err := a.errorSet.Load(); err != nil {
		log.WithError(err).Warn("Starting with empty error list")
	}
	a.store.Load(true)
	if err := a.store.LastLoadError(); err != nil {
		log.WithError(err).Warn("Starting with empty state")
		a.printer.Warning("State document is unreadable (%v); it will be copied to %s before the next save", err, persist.KeyStateCorrupt)
	}

	log.WithFields(map[string]interface{}{
		"output":  cfg.Output.Directory,
		"state":   cfg.StateDir(),
		"backend": backendName(cfg.State.Backend),
	}).Debug("Configuration loaded")

	return a, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close state backend")
	}
}

// lock takes the run lock in the state directory
func (a *app) lock() (state.RunLock, error) {
	l, err := state.AcquireRunLock(a.cfg.StateDir())
	if errors.Is(err, state.ErrLocked) {
		return state.RunLock{}, fmt.Errorf("%w\nIf no other run is active, remove %s", err, filepath.Join(a.cfg.StateDir(), ".run.lock"))
	}
	return l, err
}

// cookie returns the configured cookie, falling back to stored credentials
func (a *app) cookie() string {
	if a.cfg.Auth.Cookie != "" {
		return a.cfg.Auth.Cookie
	}
	manager, err := auth.NewManager()
	if err != nil {
		a.log.WithError(err).Debug("Credential manager unavailable")
		return ""
	}
	cred, err := manager.Retrieve(auth.DefaultProfile)
	if err != nil {
		return ""
	}
	if cred.UserAgent != "" && a.cfg.Auth.UserAgent == config.DefaultConfig().Auth.UserAgent {
		a.cfg.Auth.UserAgent = cred.UserAgent
	}
	return cred.Cookie
}

func backendName(dsn string) string {
	if dsn == "" {
		return "file"
	}
	if scheme, _, ok := strings.Cut(dsn, "://"); ok {
		return scheme
	}
	return "file"
}

func errorLine(err error) string {
	return ui.Red("Error: " + err.Error())
}
