package state

import (
	"encoding/json"
	"fmt"
	"time"

	"tweetvault/pkg/models"
)

// ItemState is the recorded state of one item
type ItemState struct {
	Status     models.Status
	Timestamp  time.Time
	Details    models.Details
	LastUpdate time.Time
}

type itemStateJSON struct {
	Status     models.Status   `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	LastUpdate time.Time       `json:"lastUpdate"`
}

func (s ItemState) MarshalJSON() ([]byte, error) {
	out := itemStateJSON{
		Status:     s.Status,
		Timestamp:  s.Timestamp,
		LastUpdate: s.LastUpdate,
	}
	if s.Details != nil {
		meta, err := json.Marshal(s.Details)
		if err != nil {
			return nil, err
		}
		out.Metadata = meta
	}
	return json.Marshal(out)
}

func (s *ItemState) UnmarshalJSON(data []byte) error {
	var in itemStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	status, err := models.ParseStatus(string(in.Status))
	if err != nil {
		return err
	}
	details, err := models.DecodeDetails(status, in.Metadata)
	if err != nil {
		return err
	}
	*s = ItemState{
		Status:     status,
		Timestamp:  in.Timestamp,
		Details:    details,
		LastUpdate: in.LastUpdate,
	}
	return nil
}

// Stats counts items by status
type Stats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Partial    int `json:"partial"`
	Failed     int `json:"failed"`
	NoMedia    int `json:"noMedia"`
	Error      int `json:"error"`
	Pending    int `json:"pending"`
}

func (s *Stats) counter(status models.Status) *int {
	switch status {
	case models.StatusSuccess:
		return &s.Successful
	case models.StatusPartial:
		return &s.Partial
	case models.StatusFailed:
		return &s.Failed
	case models.StatusNoMedia:
		return &s.NoMedia
	case models.StatusError:
		return &s.Error
	case models.StatusPending:
		return &s.Pending
	}
	return nil
}

// Count returns the number of items with status
func (s Stats) Count(status models.Status) int {
	if c := s.counter(status); c != nil {
		return *c
	}
	return 0
}

// Sum adds up the per-status counters
func (s Stats) Sum() int {
	return s.Successful + s.Partial + s.Failed + s.NoMedia + s.Error + s.Pending
}

// AggregateState is every known item plus derived counters.
// Stats.Total equals len(Items) and Stats.Sum() equals Stats.Total.
type AggregateState struct {
	Items      map[string]ItemState `json:"tweets"`
	LastUpdate *time.Time           `json:"lastUpdate"`
	Stats      Stats                `json:"stats"`
}

// NewAggregateState returns the empty initial aggregate
func NewAggregateState() *AggregateState {
	return &AggregateState{Items: make(map[string]ItemState)}
}

// Clone returns a copy that shares nothing mutable with a.
// Details values are immutable by convention so they are shared.
func (a *AggregateState) Clone() *AggregateState {
	out := &AggregateState{
		Items: make(map[string]ItemState, len(a.Items)),
		Stats: a.Stats,
	}
	for id, item := range a.Items {
		out.Items[id] = item
	}
	if a.LastUpdate != nil {
		ts := *a.LastUpdate
		out.LastUpdate = &ts
	}
	return out
}

// Recount rebuilds Stats from Items
func (a *AggregateState) Recount() {
	a.Stats = Stats{Total: len(a.Items)}
	for _, item := range a.Items {
		if c := a.Stats.counter(item.Status); c != nil {
			*c++
		}
	}
}

// Consistent reports whether the counters match the items
func (a *AggregateState) Consistent() bool {
	if a.Stats.Total != len(a.Items) || a.Stats.Sum() != a.Stats.Total {
		return false
	}
	want := NewAggregateState()
	want.Items = a.Items
	want.Recount()
	return want.Stats == a.Stats
}

// Validate returns an error describing a counter mismatch
func (a *AggregateState) Validate() error {
	if a.Consistent() {
		return nil
	}
	return fmt.Errorf("state counters out of sync: total=%d items=%d sum=%d", a.Stats.Total, len(a.Items), a.Stats.Sum())
}
