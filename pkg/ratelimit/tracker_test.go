package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tweetvault/pkg/models"
	"tweetvault/pkg/persist"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.FetchOutcome
		limited bool
		reason  string
	}{
		{"ok", models.OK(), false, ""},
		{"guest token", models.FetchOutcome{ErrorMessage: GuestTokenMessage}, true, GuestTokenMessage},
		{"message 429", models.FetchOutcome{ErrorMessage: "429 Too Many Requests"}, true, "429 Too Many Requests"},
		{"mixed case", models.FetchOutcome{ErrorMessage: "Rate Limit exceeded"}, true, "Rate Limit exceeded"},
		{"too many requests", models.FetchOutcome{ErrorMessage: "too many requests, slow down"}, true, "too many requests, slow down"},
		{"status only", models.FetchOutcome{ErrorMessage: "upstream said no", HTTPStatus: 429}, true, "Status code 429"},
		{"not found", models.FetchOutcome{ErrorMessage: "tweet not found", HTTPStatus: 404}, false, ""},
		{"plain failure", models.FetchOutcome{ErrorMessage: "connection refused"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.outcome)
			assert.Equal(t, tt.limited, got.IsRateLimited)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestRecordRateLimit(t *testing.T) {
	clock := newClock()
	tr := NewTracker(TrackerOptions{Delay: 15 * time.Minute, HistoryLimit: 5, Now: clock.Now})

	c := tr.Classify(models.FetchOutcome{ErrorMessage: "429 Too Many Requests"})
	require.True(t, c.IsRateLimited)
	tr.RecordRateLimit(c.Reason)

	s := tr.Snapshot()
	require.Len(t, s.RateLimitHistory, 1)
	assert.Equal(t, "429 Too Many Requests", s.RateLimitHistory[0].Reason)
	require.NotNil(t, s.LastRateLimitTimestamp)
	assert.Equal(t, clock.now, *s.LastRateLimitTimestamp)
}

func TestShouldWaitAndRemaining(t *testing.T) {
	clock := newClock()
	tr := NewTracker(TrackerOptions{Delay: 15 * time.Minute, Now: clock.Now})

	assert.False(t, tr.ShouldWait())
	assert.Equal(t, time.Duration(0), tr.RemainingWait())

	tr.RecordRateLimit("429")
	clock.Advance(5 * time.Minute)
	assert.True(t, tr.ShouldWait())
	assert.Equal(t, 10*time.Minute, tr.RemainingWait())

	clock.Advance(10 * time.Minute)
	assert.False(t, tr.ShouldWait())
	assert.Equal(t, time.Duration(0), tr.RemainingWait())

	clock.Advance(time.Hour)
	assert.Equal(t, time.Duration(0), tr.RemainingWait())
}

func TestHistoriesAreBounded(t *testing.T) {
	clock := newClock()
	limit, extra := 4, 3
	tr := NewTracker(TrackerOptions{HistoryLimit: limit, Now: clock.Now})

	for i := 0; i < limit+extra; i++ {
		clock.Advance(time.Second)
		tr.RecordRateLimit(string(rune('a' + i)))
		tr.RecordSuccess(string(rune('A' + i)))
	}

	s := tr.Snapshot()
	require.Len(t, s.RateLimitHistory, limit)
	require.Len(t, s.SuccessHistory, limit)
	assert.Equal(t, "d", s.RateLimitHistory[0].Reason)
	assert.Equal(t, "g", s.RateLimitHistory[limit-1].Reason)
	assert.Equal(t, "D", s.SuccessHistory[0].TweetID)
	assert.Equal(t, "G", s.SuccessHistory[limit-1].TweetID)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	tr.RecordRateLimit("429")

	s := tr.Snapshot()
	s.RateLimitHistory[0].Reason = "edited"
	*s.LastRateLimitTimestamp = time.Time{}

	again := tr.Snapshot()
	assert.Equal(t, "429", again.RateLimitHistory[0].Reason)
	assert.False(t, again.LastRateLimitTimestamp.IsZero())
}

func TestPersistenceSurvivesRestart(t *testing.T) {
	clock := newClock()
	backend := persist.NewMemoryBackend()

	tr := NewTracker(TrackerOptions{Delay: 15 * time.Minute, HistoryLimit: 10, Backend: backend, Now: clock.Now})
	tr.MarkStart()
	tr.RecordRateLimit("Too Many Requests")
	tr.RecordSuccess("100")
	require.NoError(t, tr.Save())

	clock.Advance(time.Minute)
	restarted := NewTracker(TrackerOptions{Delay: 15 * time.Minute, HistoryLimit: 10, Backend: backend, Now: clock.Now})
	require.NoError(t, restarted.Load())

	assert.True(t, restarted.ShouldWait())
	assert.Equal(t, 14*time.Minute, restarted.RemainingWait())

	s := restarted.Snapshot()
	require.NotNil(t, s.StartTime)
	assert.True(t, s.StartTime.Equal(clock.now.Add(-time.Minute)))
	require.Len(t, s.SuccessHistory, 1)
	assert.Equal(t, "100", s.SuccessHistory[0].TweetID)
}

func TestLoadTrimsOversizedHistory(t *testing.T) {
	backend := persist.NewMemoryBackend()
	big := State{}
	for i := 0; i < 8; i++ {
		big.RateLimitHistory = append(big.RateLimitHistory, RateLimitEvent{Reason: string(rune('a' + i))})
	}
	require.NoError(t, persist.WriteJSON(backend, persist.KeyRateLimit, big))

	tr := NewTracker(TrackerOptions{HistoryLimit: 3, Backend: backend})
	require.NoError(t, tr.Load())

	s := tr.Snapshot()
	require.Len(t, s.RateLimitHistory, 3)
	assert.Equal(t, "f", s.RateLimitHistory[0].Reason)
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	backend := persist.NewMemoryBackend()
	tr := NewTracker(TrackerOptions{Backend: backend})
	require.NoError(t, tr.Load())
	assert.Nil(t, tr.Snapshot().LastRateLimitTimestamp)

	require.NoError(t, backend.Write(persist.KeyRateLimit, []byte("{oops")))
	assert.Error(t, tr.Load())
}

func TestTrackerWithoutBackend(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	assert.NoError(t, tr.Load())
	assert.NoError(t, tr.Save())
}
