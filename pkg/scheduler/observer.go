package scheduler

import (
	"time"

	"tweetvault/pkg/models"
)

// SkipReason says why an item was not fetched
type SkipReason string

const (
	SkipComplete    SkipReason = "already complete"
	SkipErrorListed SkipReason = "error listed"
)

// Observer receives progress events from a run. Calls are made from the
// goroutine executing Run.
type Observer interface {
	RunStarted(total, batches int)
	BatchStarted(index, batches, size int)
	ItemStarted(id string, position, total int)
	ItemFinished(id string, details models.Details)
	ItemSkipped(id string, reason SkipReason)
	RateLimited(id, reason string, wait time.Duration, attempt, maxAttempts int)
	CoolingDown(wait time.Duration)
	RunFinished(summary *RunSummary)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RunStarted(int, int)                                 {}
func (NopObserver) BatchStarted(int, int, int)                          {}
func (NopObserver) ItemStarted(string, int, int)                        {}
func (NopObserver) ItemFinished(string, models.Details)                 {}
func (NopObserver) ItemSkipped(string, SkipReason)                      {}
func (NopObserver) RateLimited(string, string, time.Duration, int, int) {}
func (NopObserver) CoolingDown(time.Duration)                           {}
func (NopObserver) RunFinished(*RunSummary)                             {}

// Observers fans events out in order
type Observers []Observer

func (o Observers) RunStarted(total, batches int) {
	for _, obs := range o {
		obs.RunStarted(total, batches)
	}
}

func (o Observers) BatchStarted(index, batches, size int) {
	for _, obs := range o {
		obs.BatchStarted(index, batches, size)
	}
}

func (o Observers) ItemStarted(id string, position, total int) {
	for _, obs := range o {
		obs.ItemStarted(id, position, total)
	}
}

func (o Observers) ItemFinished(id string, details models.Details) {
	for _, obs := range o {
		obs.ItemFinished(id, details)
	}
}

func (o Observers) ItemSkipped(id string, reason SkipReason) {
	for _, obs := range o {
		obs.ItemSkipped(id, reason)
	}
}

func (o Observers) RateLimited(id, reason string, wait time.Duration, attempt, maxAttempts int) {
	for _, obs := range o {
		obs.RateLimited(id, reason, wait, attempt, maxAttempts)
	}
}

func (o Observers) CoolingDown(wait time.Duration) {
	for _, obs := range o {
		obs.CoolingDown(wait)
	}
}

func (o Observers) RunFinished(summary *RunSummary) {
	for _, obs := range o {
		obs.RunFinished(summary)
	}
}
