package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tweetvault/pkg/models"
	"tweetvault/pkg/persist"
)

// GuestTokenMessage is what the upstream client reports when it is being
// throttled at the guest-token endpoint.
const GuestTokenMessage = "Failed to get Guest Token. Authorization is invalid!"

var rateLimitMarkers = []string{"rate limit", "too many requests", "429"}

// Classification is the verdict on a single fetch outcome
type Classification struct {
	IsRateLimited bool
	Reason        string
}

// Classify decides whether a fetch outcome means the upstream is
// throttling us. The first matching rule wins:
//
//  1. the guest-token failure message
//  2. "rate limit", "too many requests" or "429" anywhere in the message
//  3. an HTTP 429 status
func Classify(outcome models.FetchOutcome) Classification {
	if outcome.OK {
		return Classification{}
	}

	msg := outcome.ErrorMessage
	lower := strings.ToLower(msg)

	if strings.Contains(lower, strings.ToLower(GuestTokenMessage)) {
		return Classification{IsRateLimited: true, Reason: msg}
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return Classification{IsRateLimited: true, Reason: msg}
		}
	}
	if outcome.HTTPStatus == http.StatusTooManyRequests {
		return Classification{IsRateLimited: true, Reason: fmt.Sprintf("Status code %d", outcome.HTTPStatus)}
	}
	return Classification{}
}

// RateLimitEvent is one detected rate limit
type RateLimitEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// SuccessEvent is one completed item
type SuccessEvent struct {
	Timestamp time.Time `json:"timestamp"`
	TweetID   string    `json:"tweetId"`
}

// State is the persisted rate-limit record
type State struct {
	LastRateLimitTimestamp *time.Time       `json:"lastRateLimitTimestamp"`
	RateLimitHistory       []RateLimitEvent `json:"rateLimitHistory"`
	SuccessHistory         []SuccessEvent   `json:"successHistory"`
	StartTime              *time.Time       `json:"startTime"`
}

func (s State) clone() State {
	out := State{
		RateLimitHistory: append([]RateLimitEvent(nil), s.RateLimitHistory...),
		SuccessHistory:   append([]SuccessEvent(nil), s.SuccessHistory...),
	}
	if s.LastRateLimitTimestamp != nil {
		ts := *s.LastRateLimitTimestamp
		out.LastRateLimitTimestamp = &ts
	}
	if s.StartTime != nil {
		ts := *s.StartTime
		out.StartTime = &ts
	}
	return out
}

// TrackerOptions configures a Tracker
type TrackerOptions struct {
	// Delay is how long after a detected rate limit ShouldWait stays true
	Delay time.Duration
	// HistoryLimit caps both histories
	HistoryLimit int
	// Backend persists the state; nil keeps it in memory only
	Backend persist.Backend
	// Now overrides the clock in tests
	Now func() time.Time
}

// Tracker remembers when the upstream last throttled us and keeps bounded
// histories of rate limits and successes.
type Tracker struct {
	mu      sync.Mutex
	state   State
	delay   time.Duration
	limit   int
	backend persist.Backend
	now     func() time.Time
}

func NewTracker(opts TrackerOptions) *Tracker {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		delay:   opts.Delay,
		limit:   opts.HistoryLimit,
		backend: opts.Backend,
		now:     opts.Now,
	}
}

// Classify applies the package classification rules
func (t *Tracker) Classify(outcome models.FetchOutcome) Classification {
	return Classify(outcome)
}

// Load replaces the in-memory state with the persisted record. A missing
// record leaves a fresh state. Histories longer than the configured limit
// are trimmed to their newest entries.
func (t *Tracker) Load() error {
	if t.backend == nil {
		return nil
	}

	var loaded State
	found, err := persist.ReadJSON(t.backend, persist.KeyRateLimit, &loaded)
	if err != nil {
		return fmt.Errorf("failed to load rate limit state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !found {
		t.state = State{}
		return nil
	}
	loaded.RateLimitHistory = keepLast(loaded.RateLimitHistory, t.limit)
	loaded.SuccessHistory = keepLast(loaded.SuccessHistory, t.limit)
	t.state = loaded
	return nil
}

// Save persists the current state
func (t *Tracker) Save() error {
	if t.backend == nil {
		return nil
	}
	snapshot := t.Snapshot()
	if err := persist.WriteJSON(t.backend, persist.KeyRateLimit, snapshot); err != nil {
		return fmt.Errorf("failed to save rate limit state: %w", err)
	}
	return nil
}

// MarkStart stamps the start of a run
func (t *Tracker) MarkStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.state.StartTime = &now
}

// RecordRateLimit notes a rate limit detected now
func (t *Tracker) RecordRateLimit(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.state.LastRateLimitTimestamp = &now
	t.state.RateLimitHistory = keepLast(append(t.state.RateLimitHistory, RateLimitEvent{
		Timestamp: now,
		Reason:    reason,
	}), t.limit)
}

// RecordSuccess notes an item that completed now
func (t *Tracker) RecordSuccess(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.SuccessHistory = keepLast(append(t.state.SuccessHistory, SuccessEvent{
		Timestamp: t.now(),
		TweetID:   id,
	}), t.limit)
}

// ShouldWait reports whether the last rate limit is more recent than the
// configured delay.
func (t *Tracker) ShouldWait() bool {
	return t.RemainingWait() > 0
}

// RemainingWait returns how much of the delay is left, never negative
func (t *Tracker) RemainingWait() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.LastRateLimitTimestamp == nil {
		return 0
	}
	remaining := t.delay - t.now().Sub(*t.state.LastRateLimitTimestamp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns a deep copy of the current state
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// keepLast drops the oldest entries so that at most limit remain
func keepLast[T any](events []T, limit int) []T {
	if limit <= 0 || len(events) <= limit {
		return events
	}
	out := make([]T, limit)
	copy(out, events[len(events)-limit:])
	return out
}
