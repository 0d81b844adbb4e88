package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "tweetvault/pkg/errors"
	"tweetvault/pkg/logger"
	"tweetvault/pkg/manifest"
	"tweetvault/pkg/models"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/retry"
	"tweetvault/pkg/state"
)

// ErrAuthentication aborts a run when the fetch collaborator reports that
// the credential was rejected.
var ErrAuthentication = errors.New("authentication failed")

// FetchFunc retrieves an item and places its files on disk
type FetchFunc func(ctx context.Context, id string) models.FetchOutcome

// Inspector derives an item's status from what is on disk
type Inspector interface {
	Inspect(id string) models.Details
}

// StateStore records item statuses
type StateStore interface {
	UpdateStatus(id string, details models.Details) (*state.AggregateState, error)
}

// Options configures a Scheduler
type Options struct {
	BatchSize           int
	BatchDelay          time.Duration
	RateLimitWait       time.Duration
	MaxRateLimitRetries int

	// Backoff decides the wait after each rate-limit detection; nil waits
	// RateLimitWait every time.
	Backoff retry.BackoffStrategy

	// SkipComplete inspects each item before fetching and skips those
	// already complete on disk.
	SkipComplete bool
	// ErrorSet collects ids that end failed or errored; with
	// SkipErrorListed its members are not fetched.
	ErrorSet        *state.ErrorSet
	SkipErrorListed bool

	Observer Observer
	Sleep    retry.SleepFunc
	Logger   logger.Logger
	Now      func() time.Time
}

// Scheduler drives sequential, batched fetching of items with rate-limit
// aware retries.
type Scheduler struct {
	store     StateStore
	inspector Inspector
	tracker   *ratelimit.Tracker
	opts      Options
	observer  Observer
	sleep     retry.SleepFunc
	logger    logger.Logger
	now       func() time.Time
}

func New(store StateStore, inspector Inspector, tracker *ratelimit.Tracker, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxRateLimitRetries < 0 {
		opts.MaxRateLimitRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = &retry.ConstantBackoff{Delay: opts.RateLimitWait}
	}

	s := &Scheduler{
		store:     store,
		inspector: inspector,
		tracker:   tracker,
		opts:      opts,
		observer:  opts.Observer,
		sleep:     opts.Sleep,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.sleep == nil {
		s.sleep = retry.Wait
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Batches splits ids into consecutive groups of at most size
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// Run processes ids in order. It returns early with ErrAuthentication when
// the credential is rejected and with the context error when ctx is
// cancelled; statuses written before that point stay persisted.
func (s *Scheduler) Run(ctx context.Context, ids []string, fetch FetchFunc) (*RunSummary, error) {
	summary := &RunSummary{Total: len(ids), StartedAt: s.now()}
	batches := Batches(ids, s.opts.BatchSize)

	s.tracker.MarkStart()
	s.observer.RunStarted(len(ids), len(batches))
	s.logger.InfoWithFields("Starting run", map[string]interface{}{
		"items":      len(ids),
		"batches":    len(batches),
		"batch_size": s.opts.BatchSize,
	})

	err := s.run(ctx, batches, fetch, summary)
	if err != nil {
		summary.AbortReason = err.Error()
	}

	if saveErr := s.tracker.Save(); saveErr != nil {
		s.logger.WithError(saveErr).Warn("Failed to persist rate limit state")
	}
	if s.opts.ErrorSet != nil {
		if saveErr := s.opts.ErrorSet.Save(); saveErr != nil {
			s.logger.WithError(saveErr).Warn("Failed to persist error set")
		}
	}

	snapshot := s.tracker.Snapshot()
	summary.RateLimitHistory = snapshot.RateLimitHistory
	summary.SuccessHistory = snapshot.SuccessHistory
	summary.FinishedAt = s.now()

	logger.LogRunSummary(s.logger, summary.Counters(), summary.Elapsed())
	s.observer.RunFinished(summary)
	return summary, err
}

func (s *Scheduler) run(ctx context.Context, batches [][]string, fetch FetchFunc, summary *RunSummary) error {
	if s.tracker.ShouldWait() {
		wait := s.tracker.RemainingWait()
		s.logger.InfoWithFields("Waiting out previous rate limit", map[string]interface{}{
			"wait": wait,
		})
		s.observer.CoolingDown(wait)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}

	position := 0
	for i, batch := range batches {
		s.observer.BatchStarted(i+1, len(batches), len(batch))
		logger.LogBatch(s.logger, i, len(batches), len(batch))

		for _, id := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			position++
			s.observer.ItemStarted(id, position, summary.Total)
			if err := s.processItem(ctx, id, fetch, summary); err != nil {
				return err
			}
		}

		if i < len(batches)-1 && s.opts.BatchDelay > 0 {
			if err := s.sleep(ctx, s.opts.BatchDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) processItem(ctx context.Context, id string, fetch FetchFunc, summary *RunSummary) error {
	if s.opts.SkipErrorListed && s.opts.ErrorSet != nil && s.opts.ErrorSet.Contains(id) {
		summary.SkippedErrorListed++
		s.observer.ItemSkipped(id, SkipErrorListed)
		return nil
	}
	if s.opts.SkipComplete {
		if details := s.inspector.Inspect(id); details.Status().Complete() {
			if err := s.update(id, details); err != nil {
				return err
			}
			summary.SkippedComplete++
			s.observer.ItemSkipped(id, SkipComplete)
			return nil
		}
	}

	maxAttempts := 1 + s.opts.MaxRateLimitRetries
	var (
		outcome models.FetchOutcome
		reason  string
	)
	err := retry.Do(func() error {
		outcome = fetch(ctx, id)
		if outcome.AuthFailed {
			return errs.WithCode(errs.ErrorTypeAuth, outcome.HTTPStatus, outcome.ErrorMessage)
		}

		verdict := s.tracker.Classify(outcome)
		if !verdict.IsRateLimited {
			return nil
		}
		reason = verdict.Reason
		summary.RateLimitHits++
		s.tracker.RecordRateLimit(reason)
		if err := s.tracker.Save(); err != nil {
			s.logger.WithError(err).Warn("Failed to persist rate limit state")
		}
		if err := s.update(id, models.Pending{Reason: reason}); err != nil {
			return err
		}
		return errs.WithCode(errs.ErrorTypeRateLimit, outcome.HTTPStatus, reason)
	}, &retry.Config{
		MaxAttempts: maxAttempts,
		Backoff:     s.opts.Backoff,
		RetryIf: func(err error) bool {
			return errs.Is(err, errs.ErrorTypeRateLimit)
		},
		OnRetry: func(attempt int, _ error, delay time.Duration) {
			logger.LogRateLimit(s.logger, id, reason, delay, attempt, maxAttempts)
			s.observer.RateLimited(id, reason, delay, attempt, maxAttempts)
		},
		Context: ctx,
		Sleep:   s.sleep,
		Logger:  s.logger,
	})

	switch {
	case err == nil:
	case errors.Is(err, retry.ErrMaxAttempts):
		// throttling is not the item's fault, so it stays off the error set
		return s.finish(id, models.Failed{Error: fmt.Sprintf("rate limited after %d attempts: %s", maxAttempts, reason)}, summary, false)
	case errs.Is(err, errs.ErrorTypeAuth):
		s.logger.WithField("tweet_id", id).Error("Credential rejected, aborting run")
		return fmt.Errorf("%w: %s", ErrAuthentication, outcome.ErrorMessage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ctx.Err()
	default:
		return err
	}

	// a fetch interrupted by cancellation says nothing about the item
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !outcome.OK {
		return s.finish(id, s.failedDetails(id, outcome), summary, true)
	}

	return s.finish(id, s.inspector.Inspect(id), summary, true)
}

// failedDetails decides the status of an item whose fetch failed. What is
// on disk wins when it explains the failure: a missing manifest keeps the
// item pending and an unreadable one is an error. Otherwise the fetch
// failure is recorded.
func (s *Scheduler) failedDetails(id string, outcome models.FetchOutcome) models.Details {
	switch d := s.inspector.Inspect(id).(type) {
	case models.Errored:
		return d
	case models.Pending:
		if d.Reason == manifest.ReasonNoMetadata {
			return d
		}
	}

	msg := outcome.ErrorMessage
	if msg == "" {
		msg = "fetch failed"
	}
	return models.Failed{Error: msg}
}

// finish records the final status of one fetched item. listErrors adds
// failed and errored items to the error set.
func (s *Scheduler) finish(id string, details models.Details, summary *RunSummary, listErrors bool) error {
	if err := s.update(id, details); err != nil {
		return err
	}
	summary.record(details)
	logger.LogItemStatus(s.logger, id, details)

	switch details.Status() {
	case models.StatusSuccess:
		s.tracker.RecordSuccess(id)
		if s.opts.ErrorSet != nil {
			s.opts.ErrorSet.Remove(id)
		}
	case models.StatusFailed, models.StatusError:
		if listErrors && s.opts.ErrorSet != nil {
			s.opts.ErrorSet.Add(id)
		}
	}

	s.observer.ItemFinished(id, details)
	return nil
}

func (s *Scheduler) update(id string, details models.Details) error {
	if _, err := s.store.UpdateStatus(id, details); err != nil {
		return fmt.Errorf("failed to record status of %s: %w", id, err)
	}
	return nil
}
