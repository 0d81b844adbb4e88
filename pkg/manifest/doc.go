// Package manifest turns an item's declared media into an authoritative
// status by comparing it with what is on disk.
//
// Reconcile is pure and idempotent. Inspector wraps it with the reads it
// needs: the <id>/<id>.json record and the item's directory listing.
package manifest
