package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tweetvault/pkg/models"
	"tweetvault/pkg/persist"
	"tweetvault/pkg/storage"
)

// DefaultCacheTTL is how long a loaded aggregate is served from memory
const DefaultCacheTTL = 5 * time.Second

var (
	// ErrNoDetails is returned when UpdateStatus is called without a payload
	ErrNoDetails = errors.New("state: details are required")
	// ErrEmptyID is returned for a blank item id
	ErrEmptyID = errors.New("state: item id is required")
	// ErrNilState is returned by Save for a nil aggregate
	ErrNilState = errors.New("state: aggregate is required")
)

// Options configures a Store
type Options struct {
	// Backend persists the aggregate; nil keeps it in memory only
	Backend persist.Backend
	// CacheTTL overrides DefaultCacheTTL; negative disables caching
	CacheTTL time.Duration
	// Now overrides the clock in tests
	Now func() time.Time
}

// Store owns the aggregate item state. It caches the last loaded or saved
// snapshot for CacheTTL and serialises its own writers. Two processes
// writing the same backend are not coordinated; see RunLock.
type Store struct {
	mu       sync.Mutex
	backend  persist.Backend
	ttl      time.Duration
	now      func() time.Time
	cache    *AggregateState
	cachedAt time.Time
	loadErr  error
	// unreadable is the raw document that failed to load, kept until it
	// has been copied to KeyStateCorrupt
	unreadable []byte
}

func NewStore(opts Options) *Store {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend: opts.Backend,
		ttl:     opts.CacheTTL,
		now:     opts.Now,
	}
}

// Load returns a copy of the aggregate. Within the cache TTL the cached
// snapshot is returned unless forceReload is set. Read or decode failures
// yield an empty aggregate; the cause is kept for LastLoadError. A document
// that was read but could not be decoded is copied to
// persist.KeyStateCorrupt by the next save, before it is overwritten.
func (s *Store) Load(forceReload bool) *AggregateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(forceReload).Clone()
}

// LastLoadError returns the error swallowed by the most recent backend read
func (s *Store) LastLoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

func (s *Store) load(forceReload bool) *AggregateState {
	if !forceReload && s.cache != nil && s.ttl > 0 && s.now().Sub(s.cachedAt) < s.ttl {
		return s.cache
	}

	loaded, err := s.read()
	s.loadErr = err
	if err != nil {
		if s.backend != nil {
			if raw, found, rerr := s.backend.Read(persist.KeyState); rerr == nil && found {
				s.unreadable = raw
			}
		}
		return NewAggregateState()
	}
	s.cache = loaded
	s.cachedAt = s.now()
	return loaded
}

type persistedState struct {
	Items      map[string]json.RawMessage `json:"tweets"`
	LastUpdate *time.Time                 `json:"lastUpdate"`
	Stats      *Stats                     `json:"stats"`
}

// read merges the persisted record over an empty aggregate. An item that
// cannot be decoded is kept as pending so it gets another pass.
func (s *Store) read() (*AggregateState, error) {
	out := NewAggregateState()
	if s.backend == nil {
		return out, nil
	}

	var rec persistedState
	found, err := persist.ReadJSON(s.backend, persist.KeyState, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if !found {
		return out, nil
	}

	for id, raw := range rec.Items {
		var item ItemState
		if err := json.Unmarshal(raw, &item); err != nil {
			item = ItemState{
				Status:  models.StatusPending,
				Details: models.Pending{Reason: "unreadable state: " + err.Error()},
			}
		}
		out.Items[id] = item
	}
	if rec.LastUpdate != nil {
		ts := *rec.LastUpdate
		out.LastUpdate = &ts
	}
	if rec.Stats != nil {
		out.Stats = *rec.Stats
	}
	if !out.Consistent() {
		out.Recount()
	}
	return out, nil
}

// Save stamps LastUpdate on st, makes it the cached snapshot and persists
// it. A persistence failure is returned; the cache keeps the new snapshot.
func (s *Store) Save(st *AggregateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

func (s *Store) save(st *AggregateState) error {
	if st == nil {
		return ErrNilState
	}
	if st.Items == nil {
		st.Items = make(map[string]ItemState)
	}
	now := s.now()
	st.LastUpdate = &now
	s.cache = st.Clone()
	s.cachedAt = now

	if s.backend == nil {
		return nil
	}
	if s.unreadable != nil {
		if err := s.backend.Write(persist.KeyStateCorrupt, s.unreadable); err != nil {
			return fmt.Errorf("failed to preserve unreadable state, not overwriting it: %w", err)
		}
		s.unreadable = nil
	}
	if err := persist.WriteJSON(s.backend, persist.KeyState, st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// UpdateStatus records details as the new state of id and persists the
// aggregate. It returns a copy of the updated aggregate.
func (s *Store) UpdateStatus(id string, details models.Details) (*AggregateState, error) {
	return s.Apply([]Update{{ID: id, Details: details}})
}

// Update is one pending status change
type Update struct {
	ID      string
	Details models.Details
}

// Apply records several status changes, in order, with a single save
func (s *Store) Apply(updates []Update) (*AggregateState, error) {
	for _, u := range updates {
		if u.ID == "" {
			return nil, ErrEmptyID
		}
		if u.Details == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoDetails, u.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load(false).Clone()
	now := s.now()
	for _, u := range updates {
		st.set(u.ID, u.Details, now)
	}

	if err := s.save(st); err != nil {
		return st.Clone(), err
	}
	return st.Clone(), nil
}

// set moves id from its previous status counter to the new one
func (a *AggregateState) set(id string, details models.Details, now time.Time) {
	if prev, ok := a.Items[id]; ok {
		if c := a.Stats.counter(prev.Status); c != nil && *c > 0 {
			*c--
		}
	}

	status := details.Status()
	a.Items[id] = ItemState{
		Status:     status,
		Timestamp:  now,
		Details:    details,
		LastUpdate: now,
	}
	if c := a.Stats.counter(status); c != nil {
		*c++
	}
	a.Stats.Total = len(a.Items)
}

// GetStatus returns the state of id, or a pending state if id is unknown
func (s *Store) GetStatus(id string) ItemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.load(false).Items[id]; ok {
		return item
	}
	return ItemState{Status: models.StatusPending, Details: models.Pending{}}
}

// Has reports whether id has a recorded state
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.load(false).Items[id]
	return ok
}

// PendingIDs lists the ids whose status is pending
func (s *Store) PendingIDs() []string {
	return s.IDsByStatus(models.StatusPending)
}

// IDsByStatus lists ids having any of the given statuses, in id order
func (s *Store) IDsByStatus(statuses ...models.Status) []string {
	want := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, item := range s.load(false).Items {
		if want[item.Status] {
			ids = append(ids, id)
		}
	}
	storage.SortIDs(ids)
	return ids
}

// Stats returns the current counters
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(false).Stats
}

// ByStatus returns the counters keyed by status, for display
func (st Stats) ByStatus() map[models.Status]int {
	out := make(map[models.Status]int, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		out[status] = st.Count(status)
	}
	return out
}
