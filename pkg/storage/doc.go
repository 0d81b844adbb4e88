// Package storage knows where an item's files live on disk.
//
// Every item gets its own directory named after its id, holding the
// manifest record, the downloaded media and optional text sidecars.
package storage
