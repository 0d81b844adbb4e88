// Package state keeps the per-item download state and the counters derived
// from it.
//
// A Store caches the aggregate for a short TTL and writes it back through a
// persist.Backend on every update. Loads never fail: an unreadable record
// falls back to an empty aggregate. Saves report their errors.
//
// The counters always satisfy
//
//	stats.total == len(items)
//	sum(stats[status]) == stats.total
//
// after an update completes. The Store serialises its own callers; separate
// processes sharing a data directory should hold a RunLock.
package state
