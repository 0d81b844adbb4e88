package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tweetvault/internal/fetcher"
	"tweetvault/pkg/likes"
	"tweetvault/pkg/models"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/retry"
	"tweetvault/pkg/scheduler"
	"tweetvault/pkg/ui"
	"tweetvault/pkg/ui/tui"
)

var (
	// download and retry flags
	likesFile           string
	includeErrors       bool
	useTUI              bool
	batchSize           int
	batchDelay          time.Duration
	rateLimitWait       time.Duration
	maxRateLimitRetries int
	cookieFlag          string
	stateBackend        string
	notificationsFlag   bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download [ids...]",
	Short: "Download media for liked posts",
	Long: `Download the media of every post that is not complete yet.

Post ids come from the arguments (space or comma separated) or, without
arguments, from the likes archive (like.js). Posts already complete on disk
are skipped, as are posts listed in the error list unless --include-errors
is given.

When the upstream rate limits a request the post is marked pending and
retried after rate_limit_wait_time, up to max_rate_limit_retries times.`,
	Example: `  # Download everything in like.js
  tweetvault download

  # Download specific posts
  tweetvault download 1234567890 1234567891

  # Use the full-screen monitor and retry previously failed posts too
  tweetvault download --tui --include-errors`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args, false)
	},
}

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry posts that are failed, errored, without media or pending",
	Long: `Print the current statistics, then process every post whose status is
failed, error, no_media or pending. The error list is ignored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args, true)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(retryCmd)

	for _, cmd := range []*cobra.Command{downloadCmd, retryCmd} {
		f := cmd.Flags()
		f.IntVar(&batchSize, "batch-size", 0, "posts per batch (default 50)")
		f.DurationVar(&batchDelay, "batch-delay", 0, "pause between batches (default 5s)")
		f.DurationVar(&rateLimitWait, "rate-limit-wait", 0, "wait after a rate limit (default 15m)")
		f.IntVar(&maxRateLimitRetries, "max-rate-limit-retries", 0, "retries per post after a rate limit (default 3)")
		f.StringVar(&cookieFlag, "cookie", "", "session cookie header (default: stored credentials)")
		f.StringVar(&stateBackend, "state-backend", "", "state backend DSN (file://, memory://, badger://, postgres://)")
		f.BoolVar(&notificationsFlag, "notifications", false, "enable desktop notifications")
		f.BoolVar(&useTUI, "tui", false, "show the full-screen run monitor")
	}
	downloadCmd.Flags().StringVar(&likesFile, "likes-file", "", "likes archive to read ids from (default like.js)")
	downloadCmd.Flags().BoolVar(&includeErrors, "include-errors", false, "also process posts in the error list")
}

// downloadFlags collects the flags the user actually set
func downloadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed
	if set("likes-file") {
		flags["likes-file"] = likesFile
	}
	if set("batch-size") {
		flags["batch-size"] = batchSize
	}
	if set("batch-delay") {
		flags["batch-delay"] = batchDelay
	}
	if set("rate-limit-wait") {
		flags["rate-limit-wait"] = rateLimitWait
	}
	if set("max-rate-limit-retries") {
		flags["max-rate-limit-retries"] = maxRateLimitRetries
	}
	if set("cookie") {
		flags["cookie"] = cookieFlag
	}
	if set("state-backend") {
		flags["state-backend"] = stateBackend
	}
	if set("notifications") {
		flags["notifications"] = notificationsFlag
	}
	return flags
}

func runDownload(cmd *cobra.Command, args []string, retryMode bool) error {
	var console io.Writer = os.Stderr
	if useTUI {
		console = nil
	}

	a, err := newApp(appOptions{flags: downloadFlags(cmd), console: console})
	if err != nil {
		return err
	}
	defer a.Close()

	if !useTUI {
		a.printer.Banner()
	}

	runLock, err := a.lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			a.log.WithError(err).Warn("Failed to release run lock")
		}
	}()

	ids, err := selectIDs(a, args, retryMode)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		a.printer.Success("Nothing to do")
		return nil
	}

	cookie := a.cookie()
	if cookie == "" {
		a.printer.Warning("No session cookie configured; run 'tweetvault auth login' if downloads fail with 401/403")
	}

	backoffStrategy, err := retry.NewStrategy(a.cfg.RateLimit.Backoff, a.cfg.Download.RateLimitWaitTime)
	if err != nil {
		return err
	}

	f := fetcher.New(fetcher.Options{
		Layout:     a.layout,
		Cookie:     cookie,
		UserAgent:  a.cfg.Auth.UserAgent,
		Timeout:    a.cfg.Download.Timeout,
		RetryDelay: a.cfg.Download.RetryDelay,
		MaxRetries: retriesOption(a.cfg.Download.MaxRetries),
		Limiter:    ratelimit.PerMinute(a.cfg.Download.RequestsPerMinute),
		Logger:     a.log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observers := scheduler.Observers{
		ui.NewNotifier(a.cfg.Notifications, ui.PlatformSender(), notifierOutput()),
	}
	var monitor *tui.Monitor
	switch {
	case useTUI:
		monitor = tui.NewMonitor(cancel)
		observers = append(observers, monitor)
	case !quiet:
		observers = append(observers, ui.NewProgressReporter(os.Stdout, a.cfg.Logging.Level == "debug"))
	}

	sched := scheduler.New(a.store, a.inspector, a.tracker, scheduler.Options{
		BatchSize:           a.cfg.Download.BatchSize,
		BatchDelay:          a.cfg.Download.BatchDelay,
		RateLimitWait:       a.cfg.Download.RateLimitWaitTime,
		MaxRateLimitRetries: a.cfg.Download.MaxRateLimitRetries,
		Backoff:             backoffStrategy,
		SkipComplete:        !retryMode,
		ErrorSet:            a.errorSet,
		SkipErrorListed:     !retryMode && !includeErrors,
		Observer:            observers,
		Logger:              a.log,
	})

	a.log.WithFields(map[string]interface{}{
		"items":      len(ids),
		"retry_mode": retryMode,
		"batch_size": a.cfg.Download.BatchSize,
	}).Info("Starting download run")

	var (
		summary *scheduler.RunSummary
		runErr  error
	)
	if monitor != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			summary, runErr = sched.Run(ctx, ids, f.Fetch)
		}()
		if err := monitor.Run(); err != nil {
			a.log.WithError(err).Error("Monitor failed")
			cancel()
		}
		<-done
	} else {
		summary, runErr = sched.Run(ctx, ids, f.Fetch)
	}

	if summary != nil && !quiet {
		fmt.Fprintln(os.Stdout, ui.RenderRunSummary(summary))
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, scheduler.ErrAuthentication):
		return fmt.Errorf("%w\nRun 'tweetvault auth login' to store a fresh cookie", runErr)
	case errors.Is(runErr, context.Canceled):
		a.printer.Warning("Interrupted; progress so far is saved")
		return nil
	default:
		return runErr
	}
}

// selectIDs picks the working set: explicit ids, the likes archive, or for
// retry every post not known to be complete.
func selectIDs(a *app, args []string, retryMode bool) ([]string, error) {
	if retryMode {
		if !quiet {
			ui.PrintStats(os.Stdout, a.store.Stats(), a.tracker.Snapshot(), time.Now())
		}
		return a.store.IDsByStatus(models.StatusFailed, models.StatusError, models.StatusNoMedia, models.StatusPending), nil
	}

	if len(args) > 0 {
		ids, rejected := likes.SplitIDs(args...)
		if len(rejected) > 0 {
			a.printer.Warning("Ignoring arguments that are not post ids: %s", strings.Join(rejected, ", "))
		}
		return ids, nil
	}

	ids, err := likes.ParseFile(a.cfg.Output.LikesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read likes archive: %w", err)
	}
	a.printer.Info("Likes archive", fmt.Sprintf("%s (%d posts)", a.cfg.Output.LikesFile, len(ids)))
	return ids, nil
}

// retriesOption maps the config value, where 0 means no retry, onto the
// fetcher option, where 0 means the default.
func retriesOption(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func notifierOutput() io.Writer {
	if quiet || useTUI {
		return nil
	}
	return os.Stdout
}
