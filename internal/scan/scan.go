// Package scan rebuilds the aggregate state from what is on disk.
package scan

import (
	"context"
	"fmt"

	"tweetvault/pkg/logger"
	"tweetvault/pkg/models"
	"tweetvault/pkg/state"
	"tweetvault/pkg/storage"
)

// Options configures UpdateState
type Options struct {
	// NewOnly skips ids the aggregate already knows
	NewOnly bool
	Workers int
	Logger  logger.Logger
	// OnStart receives the number of directories about to be inspected
	OnStart func(total int)
	// OnItem is called for every reconciled item, in id order
	OnItem func(id string, details models.Details)
}

// Report summarises an UpdateState pass
type Report struct {
	Found   int
	Skipped int
	Counts  map[models.Status]int
	Stats   state.Stats
}

// Updated is the number of items whose status was written
func (r *Report) Updated() int {
	return r.Found - r.Skipped
}

// UpdateState reconciles every numeric item directory under layout and
// records the results in store. Inspection runs concurrently; the results
// are written in id order with a single save.
func UpdateState(ctx context.Context, layout *storage.Layout, store *state.Store, inspector Inspector, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	ids, err := layout.ItemIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list item directories: %w", err)
	}

	report := &Report{Found: len(ids), Counts: make(map[models.Status]int)}
	if opts.NewOnly {
		known := store.Load(true)
		fresh := ids[:0:0]
		for _, id := range ids {
			if _, ok := known.Items[id]; ok {
				report.Skipped++
				continue
			}
			fresh = append(fresh, id)
		}
		ids = fresh
	}

	log.InfoWithFields("Scanning item directories", map[string]interface{}{
		"root":     layout.Root(),
		"found":    report.Found,
		"skipped":  report.Skipped,
		"new_only": opts.NewOnly,
	})

	if opts.OnStart != nil {
		opts.OnStart(len(ids))
	}

	results, err := Reconcile(ctx, ids, inspector, opts.Workers, log)
	if err != nil {
		return nil, err
	}

	updates := make([]state.Update, 0, len(results))
	for _, r := range results {
		updates = append(updates, state.Update{ID: r.Job.ID, Details: r.Details})
		report.Counts[r.Details.Status()]++
		if opts.OnItem != nil {
			opts.OnItem(r.Job.ID, r.Details)
		}
	}

	st, err := store.Apply(updates)
	if err != nil {
		return nil, err
	}
	report.Stats = st.Stats
	return report, nil
}
