package state

import (
	"fmt"
	"sync"

	"tweetvault/pkg/persist"
	"tweetvault/pkg/storage"
)

// ErrorSet is the persisted set of ids that ended a run as failed.
// Normal download runs skip them; a retry run ignores the set.
type ErrorSet struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	backend persist.Backend
}

func NewErrorSet(backend persist.Backend) *ErrorSet {
	return &ErrorSet{
		ids:     make(map[string]struct{}),
		backend: backend,
	}
}

// Load replaces the set with the persisted id list
func (e *ErrorSet) Load() error {
	if e.backend == nil {
		return nil
	}
	var ids []string
	if _, err := persist.ReadJSON(e.backend, persist.KeyErrorSet, &ids); err != nil {
		return fmt.Errorf("failed to load error set: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		e.ids[id] = struct{}{}
	}
	return nil
}

// Save persists the set as a JSON array in id order
func (e *ErrorSet) Save() error {
	if e.backend == nil {
		return nil
	}
	if err := persist.WriteJSON(e.backend, persist.KeyErrorSet, e.IDs()); err != nil {
		return fmt.Errorf("failed to save error set: %w", err)
	}
	return nil
}

func (e *ErrorSet) Add(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids[id] = struct{}{}
}

func (e *ErrorSet) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ids, id)
}

func (e *ErrorSet) Contains(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.ids[id]
	return ok
}

func (e *ErrorSet) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ids)
}

// IDs returns the members in id order
func (e *ErrorSet) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.ids))
	for id := range e.ids {
		ids = append(ids, id)
	}
	storage.SortIDs(ids)
	return ids
}
