// Package scheduler runs the download loop over a working set of tweet ids.
//
// Items are processed one at a time, in the order given, in batches of
// BatchSize with BatchDelay between batches. Each item is fetched through a
// FetchFunc; an outcome the rate-limit tracker classifies as throttling
// leaves the item pending and retries it after a backoff wait, up to
// MaxRateLimitRetries times before the item is marked failed. Any other
// outcome is reconciled against the item directory and recorded in the
// state store.
//
// A rejected credential stops the run with ErrAuthentication. Work already
// recorded stays persisted, so a later run resumes where this one stopped.
package scheduler
