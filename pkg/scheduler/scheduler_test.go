package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetvault/pkg/logger"
	"tweetvault/pkg/models"
	"tweetvault/pkg/persist"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/retry"
	"tweetvault/pkg/state"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// sleeper records waits and moves the clock forward instead of blocking
type sleeper struct {
	clock  *fakeClock
	delays []time.Duration
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	s.clock.now = s.clock.now.Add(d)
	return ctx.Err()
}

// diskInspector reports whatever the test placed "on disk"
type diskInspector struct {
	results map[string]models.Details
}

func (d *diskInspector) Inspect(id string) models.Details {
	if r, ok := d.results[id]; ok {
		return r
	}
	return models.Pending{Reason: "no metadata"}
}

// scriptedFetch replays outcomes per id; the last outcome repeats
type scriptedFetch struct {
	scripts map[string][]models.FetchOutcome
	calls   []string
	onFetch func(id string)
}

func (f *scriptedFetch) Fetch(ctx context.Context, id string) models.FetchOutcome {
	f.calls = append(f.calls, id)
	if f.onFetch != nil {
		f.onFetch(id)
	}
	script := f.scripts[id]
	if len(script) == 0 {
		return models.OK()
	}
	out := script[0]
	if len(script) > 1 {
		f.scripts[id] = script[1:]
	}
	return out
}

type recordingObserver struct {
	NopObserver
	events []string
}

func (r *recordingObserver) BatchStarted(index, batches, size int) {
	r.events = append(r.events, "batch")
}
func (r *recordingObserver) ItemFinished(id string, d models.Details) {
	r.events = append(r.events, id+":"+string(d.Status()))
}
func (r *recordingObserver) ItemSkipped(id string, reason SkipReason) {
	r.events = append(r.events, id+":skip")
}
func (r *recordingObserver) RateLimited(id, reason string, wait time.Duration, attempt, max int) {
	r.events = append(r.events, id+":limited")
}
func (r *recordingObserver) CoolingDown(time.Duration) {
	r.events = append(r.events, "cooldown")
}

type harness struct {
	backend   *persist.MemoryBackend
	clock     *fakeClock
	sleeper   *sleeper
	store     *state.Store
	tracker   *ratelimit.Tracker
	inspector *diskInspector
	errorSet  *state.ErrorSet
	observer  *recordingObserver
	log       *logger.TestLogger
}

func newHarness() *harness {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	backend := persist.NewMemoryBackend()
	return &harness{
		backend:   backend,
		clock:     clock,
		sleeper:   &sleeper{clock: clock},
		store:     state.NewStore(state.Options{Backend: backend, Now: clock.Now}),
		tracker:   ratelimit.NewTracker(ratelimit.TrackerOptions{Delay: 15 * time.Minute, HistoryLimit: 50, Backend: backend, Now: clock.Now}),
		inspector: &diskInspector{results: map[string]models.Details{}},
		errorSet:  state.NewErrorSet(backend),
		observer:  &recordingObserver{},
		log:       logger.NewTestLogger(),
	}
}

func (h *harness) scheduler(opts Options) *Scheduler {
	if opts.BatchSize == 0 {
		opts.BatchSize = 50
	}
	if opts.RateLimitWait == 0 {
		opts.RateLimitWait = 15 * time.Minute
	}
	opts.ErrorSet = h.errorSet
	opts.Observer = h.observer
	opts.Sleep = h.sleeper.Sleep
	opts.Logger = h.log
	opts.Now = h.clock.Now
	return New(h.store, h.inspector, h.tracker, opts)
}

func success(n int) models.Details {
	return models.Success{MediaCount: n, DownloadedCount: n}
}

func TestBatches(t *testing.T) {
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}, {"5"}}, Batches([]string{"1", "2", "3", "4", "5"}, 2))
	assert.Equal(t, [][]string{{"1", "2"}}, Batches([]string{"1", "2"}, 0))
	assert.Empty(t, Batches(nil, 3))
}

func TestRunProcessesInOrderWithBatchDelay(t *testing.T) {
	h := newHarness()
	h.inspector.results["1"] = success(1)
	h.inspector.results["2"] = models.Partial{MediaCount: 2, DownloadedCount: 1}
	h.inspector.results["3"] = models.NoMedia{Reason: "no media declared"}

	fetch := &scriptedFetch{}
	s := h.scheduler(Options{BatchSize: 2, BatchDelay: 5 * time.Second})

	summary, err := s.Run(context.Background(), []string{"1", "2", "3"}, fetch.Fetch)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, fetch.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, h.sleeper.delays)
	assert.Equal(t, []string{"batch", "1:success", "2:partial", "batch", "3:no_media"}, h.observer.events)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 1, summary.NoMedia)
	assert.False(t, summary.Aborted())
	require.Len(t, summary.SuccessHistory, 1)
	assert.Equal(t, "1", summary.SuccessHistory[0].TweetID)

	stats := h.store.Stats()
	assert.Equal(t, state.Stats{Total: 3, Successful: 1, Partial: 1, NoMedia: 1}, stats)
	assert.True(t, h.log.HasMessage("Run finished"))
}

func TestRateLimitedItemIsRetried(t *testing.T) {
	h := newHarness()
	h.inspector.results["1"] = success(2)

	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {models.FailedOutcome(errors.New("429 Too Many Requests"), 0), models.OK()},
	}}
	var statusDuringWait models.Status
	fetch.onFetch = func(id string) {
		statusDuringWait = h.store.GetStatus(id).Status
	}

	s := h.scheduler(Options{MaxRateLimitRetries: 3})
	summary, err := s.Run(context.Background(), []string{"1"}, fetch.Fetch)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "1"}, fetch.calls)
	assert.Equal(t, []time.Duration{15 * time.Minute}, h.sleeper.delays)
	assert.Equal(t, models.StatusPending, statusDuringWait)
	assert.Equal(t, 1, summary.RateLimitHits)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.RateLimitHistory, 1)
	assert.Equal(t, "429 Too Many Requests", summary.RateLimitHistory[0].Reason)
	assert.Equal(t, models.StatusSuccess, h.store.GetStatus("1").Status)
	assert.Contains(t, h.observer.events, "1:limited")
}

func TestRateLimitRetriesExhausted(t *testing.T) {
	h := newHarness()
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {{HTTPStatus: 429}},
	}}

	s := h.scheduler(Options{MaxRateLimitRetries: 3, RateLimitWait: time.Minute})
	summary, err := s.Run(context.Background(), []string{"1", "2"}, fetch.Fetch)
	require.NoError(t, err)

	// four attempts, a wait between each, none after the last
	assert.Equal(t, []string{"1", "1", "1", "1", "2"}, fetch.calls)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, time.Minute}, h.sleeper.delays)

	item := h.store.GetStatus("1")
	require.Equal(t, models.StatusFailed, item.Status)
	assert.Contains(t, item.Details.(models.Failed).Error, "Status code 429")
	assert.False(t, h.errorSet.Contains("1"))
	assert.Equal(t, 4, summary.RateLimitHits)
	assert.Equal(t, 1, summary.Failed)
}

func TestZeroRateLimitRetries(t *testing.T) {
	h := newHarness()
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {models.FailedOutcome(errors.New(ratelimit.GuestTokenMessage), 0)},
	}}

	s := h.scheduler(Options{MaxRateLimitRetries: 0})
	_, err := s.Run(context.Background(), []string{"1"}, fetch.Fetch)
	require.NoError(t, err)

	assert.Len(t, fetch.calls, 1)
	assert.Empty(t, h.sleeper.delays)
	assert.Equal(t, models.StatusFailed, h.store.GetStatus("1").Status)
}

func TestGrowingBackoffPolicy(t *testing.T) {
	h := newHarness()
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {{HTTPStatus: 429}},
	}}

	backoff, err := retry.NewStrategy("exponential", 10*time.Second)
	require.NoError(t, err)
	s := h.scheduler(Options{MaxRateLimitRetries: 3, Backoff: backoff})
	_, err = s.Run(context.Background(), []string{"1"}, fetch.Fetch)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}, h.sleeper.delays)
}

func TestAuthFailureAbortsRun(t *testing.T) {
	h := newHarness()
	h.inspector.results["1"] = success(1)
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"2": {models.AuthFailure("cookie rejected", 401)},
	}}

	s := h.scheduler(Options{})
	summary, err := s.Run(context.Background(), []string{"1", "2", "3"}, fetch.Fetch)

	require.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "cookie rejected")
	assert.Equal(t, []string{"1", "2"}, fetch.calls)
	assert.True(t, summary.Aborted())
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.Remaining())

	assert.Equal(t, models.StatusSuccess, h.store.GetStatus("1").Status)
	assert.False(t, h.store.Has("2"))
	assert.False(t, h.store.Has("3"))
}

func TestFailedFetchIsRecorded(t *testing.T) {
	h := newHarness()
	h.inspector.results["1"] = models.Pending{Reason: "no media downloaded yet", MediaCount: 1}
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {models.FailedOutcome(errors.New("tweet not found"), 404)},
	}}

	s := h.scheduler(Options{})
	summary, err := s.Run(context.Background(), []string{"1"}, fetch.Fetch)
	require.NoError(t, err)

	item := h.store.GetStatus("1")
	assert.Equal(t, models.Failed{Error: "tweet not found"}, item.Details)
	assert.True(t, h.errorSet.Contains("1"))
	assert.Equal(t, 1, summary.Failed)

	// the error set is persisted at the end of the run
	reloaded := state.NewErrorSet(h.backend)
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Contains("1"))
}

func TestFailedFetchWithoutManifestStaysPending(t *testing.T) {
	h := newHarness()
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {models.FailedOutcome(errors.New("no metadata"), 0)},
	}}

	summary, err := h.scheduler(Options{}).Run(context.Background(), []string{"1"}, fetch.Fetch)
	require.NoError(t, err)

	assert.Equal(t, models.Pending{Reason: "no metadata"}, h.store.GetStatus("1").Details)
	assert.False(t, h.errorSet.Contains("1"))
	assert.Equal(t, 1, summary.Pending)
	assert.Zero(t, summary.Failed)
}

func TestFailedFetchWithUnreadableManifestIsError(t *testing.T) {
	h := newHarness()
	h.inspector.results["1"] = models.Errored{Error: "filesystem error: failed to read manifest: is a directory"}
	fetch := &scriptedFetch{scripts: map[string][]models.FetchOutcome{
		"1": {models.FailedOutcome(errors.New("failed to read manifest"), 0)},
	}}

	summary, err := h.scheduler(Options{}).Run(context.Background(), []string{"1"}, fetch.Fetch)
	require.NoError(t, err)

	item := h.store.GetStatus("1")
	assert.Equal(t, models.StatusError, item.Status)
	assert.Equal(t, models.Errored{Error: "filesystem error: failed to read manifest: is a directory"}, item.Details)
	assert.True(t, h.errorSet.Contains("1"))
	assert.Equal(t, 1, summary.Errored)
}

func TestSuccessClearsErrorSet(t *testing.T) {
	h := newHarness()
	h.errorSet.Add("1")
	h.inspector.results["1"] = success(1)

	s := h.scheduler(Options{})
	_, err := s.Run(context.Background(), []string{"1"}, (&scriptedFetch{}).Fetch)
	require.NoError(t, err)
	assert.False(t, h.errorSet.Contains("1"))
}

func TestSkips(t *testing.T) {
	h := newHarness()
	h.errorSet.Add("1")
	h.inspector.results["2"] = success(1)

	fetch := &scriptedFetch{}
	s := h.scheduler(Options{SkipComplete: true, SkipErrorListed: true})
	summary, err := s.Run(context.Background(), []string{"1", "2", "3"}, fetch.Fetch)
	require.NoError(t, err)

	assert.Equal(t, []string{"3"}, fetch.calls)
	assert.Equal(t, 1, summary.SkippedErrorListed)
	assert.Equal(t, 1, summary.SkippedComplete)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, models.StatusSuccess, h.store.GetStatus("2").Status)
	assert.False(t, h.store.Has("1"))
}

func TestCooldownCarriedAcrossRuns(t *testing.T) {
	h := newHarness()
	h.tracker.RecordRateLimit("Status code 429")
	h.clock.now = h.clock.now.Add(10 * time.Minute)

	s := h.scheduler(Options{})
	_, err := s.Run(context.Background(), []string{"1"}, (&scriptedFetch{}).Fetch)
	require.NoError(t, err)

	require.NotEmpty(t, h.sleeper.delays)
	assert.Equal(t, 5*time.Minute, h.sleeper.delays[0])
	assert.Equal(t, "cooldown", h.observer.events[0])
}

func TestCancelledContextStopsRun(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())

	fetch := &scriptedFetch{}
	fetch.onFetch = func(id string) {
		if id == "1" {
			cancel()
		}
	}

	s := h.scheduler(Options{})
	summary, err := s.Run(ctx, []string{"1", "2"}, fetch.Fetch)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"1"}, fetch.calls)
	assert.True(t, summary.Aborted())
	assert.False(t, h.store.Has("1"))
}

func TestSummaryHelpers(t *testing.T) {
	s := &RunSummary{Total: 4, Succeeded: 1, Processed: 2, SkippedComplete: 1}
	assert.Equal(t, 25.0, s.SuccessRate())
	assert.Equal(t, 1, s.Remaining())
	assert.Equal(t, time.Duration(0), s.Elapsed())
	assert.Equal(t, 1, s.Counters()["skipped_complete"])
	assert.Zero(t, (&RunSummary{}).SuccessRate())
}
