package scheduler

import (
	"time"

	"tweetvault/pkg/models"
	"tweetvault/pkg/ratelimit"
)

// RunSummary accumulates what happened during one Run
type RunSummary struct {
	Total     int
	Processed int

	Succeeded int
	Partial   int
	NoMedia   int
	Pending   int
	Failed    int
	Errored   int

	SkippedComplete    int
	SkippedErrorListed int
	RateLimitHits      int

	RateLimitHistory []ratelimit.RateLimitEvent
	SuccessHistory   []ratelimit.SuccessEvent

	StartedAt   time.Time
	FinishedAt  time.Time
	AbortReason string
}

func (s *RunSummary) record(details models.Details) {
	s.Processed++
	switch details.Status() {
	case models.StatusSuccess:
		s.Succeeded++
	case models.StatusPartial:
		s.Partial++
	case models.StatusNoMedia:
		s.NoMedia++
	case models.StatusFailed:
		s.Failed++
	case models.StatusError:
		s.Errored++
	default:
		s.Pending++
	}
}

// Skipped is the number of items not fetched
func (s *RunSummary) Skipped() int {
	return s.SkippedComplete + s.SkippedErrorListed
}

// Remaining is the number of items neither processed nor skipped
func (s *RunSummary) Remaining() int {
	if r := s.Total - s.Processed - s.Skipped(); r > 0 {
		return r
	}
	return 0
}

// SuccessRate is the share of the working set downloaded this run, in percent
func (s *RunSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

// Elapsed is the run duration, or zero before the run finished
func (s *RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Aborted reports whether the run stopped before covering every item
func (s *RunSummary) Aborted() bool {
	return s.AbortReason != ""
}

// Counters flattens the counts for structured logging
func (s *RunSummary) Counters() map[string]int {
	return map[string]int{
		"total":                s.Total,
		"processed":            s.Processed,
		"succeeded":            s.Succeeded,
		"partial":              s.Partial,
		"no_media":             s.NoMedia,
		"pending":              s.Pending,
		"failed":               s.Failed,
		"errored":              s.Errored,
		"skipped_complete":     s.SkippedComplete,
		"skipped_error_listed": s.SkippedErrorListed,
		"rate_limit_hits":      s.RateLimitHits,
	}
}
