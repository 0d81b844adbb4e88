package models

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusNoMedia Status = "no_media"
	StatusError   Status = "error"
)

// AllStatuses lists every status in display order
var AllStatuses = []Status{
	StatusPending,
	StatusSuccess,
	StatusPartial,
	StatusFailed,
	StatusNoMedia,
	StatusError,
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Complete reports whether normal scheduling should leave the item alone
func (s Status) Complete() bool {
	return s == StatusSuccess || s == StatusNoMedia
}

// ParseStatus converts a persisted status string
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// Details is the status-specific diagnostic payload attached to an item.
// Each implementation belongs to exactly one Status.
type Details interface {
	Status() Status
}

type Pending struct {
	Reason          string `json:"reason,omitempty"`
	MediaCount      int    `json:"mediaCount,omitempty"`
	DownloadedCount int    `json:"downloadedCount,omitempty"`
}

type Success struct {
	MediaCount      int `json:"mediaCount"`
	DownloadedCount int `json:"downloadedCount"`
}

type Partial struct {
	MediaCount      int               `json:"mediaCount"`
	DownloadedCount int               `json:"downloadedCount"`
	Descriptors     []DescriptorCheck `json:"details,omitempty"`
}

// DescriptorCheck records whether every file expected from one media
// descriptor exists on disk.
type DescriptorCheck struct {
	Kind       string   `json:"type"`
	Files      []string `json:"files"`
	Downloaded bool     `json:"downloaded"`
}

type Failed struct {
	Error string `json:"error"`
}

type NoMedia struct {
	Reason string `json:"reason,omitempty"`
}

type Errored struct {
	Error string `json:"error"`
}

func (Pending) Status() Status { return StatusPending }
func (Success) Status() Status { return StatusSuccess }
func (Partial) Status() Status { return StatusPartial }
func (Failed) Status() Status  { return StatusFailed }
func (NoMedia) Status() Status { return StatusNoMedia }
func (Errored) Status() Status { return StatusError }

// EmptyDetails returns the zero payload for a status
func EmptyDetails(s Status) Details {
	switch s {
	case StatusSuccess:
		return Success{}
	case StatusPartial:
		return Partial{}
	case StatusFailed:
		return Failed{}
	case StatusNoMedia:
		return NoMedia{}
	case StatusError:
		return Errored{}
	default:
		return Pending{}
	}
}

// DecodeDetails decodes a persisted metadata object for the given status.
// A missing or null payload yields the zero payload.
func DecodeDetails(s Status, raw json.RawMessage) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return EmptyDetails(s), nil
	}

	var (
		d   Details
		err error
	)
	switch s {
	case StatusPending:
		var v Pending
		err = json.Unmarshal(raw, &v)
		d = v
	case StatusSuccess:
		var v Success
		err = json.Unmarshal(raw, &v)
		d = v
	case StatusPartial:
		var v Partial
		err = json.Unmarshal(raw, &v)
		d = v
	case StatusFailed:
		var v Failed
		err = json.Unmarshal(raw, &v)
		d = v
	case StatusNoMedia:
		var v NoMedia
		err = json.Unmarshal(raw, &v)
		d = v
	case StatusError:
		var v Errored
		err = json.Unmarshal(raw, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown status %q", s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", s, err)
	}
	return d, nil
}

// FetchOutcome is what the content-fetch collaborator reports for one item
type FetchOutcome struct {
	OK           bool
	ErrorMessage string
	HTTPStatus   int
	AuthFailed   bool
}

// OK returns a successful outcome
func OK() FetchOutcome {
	return FetchOutcome{OK: true}
}

// FailedOutcome returns an unsuccessful outcome for err
func FailedOutcome(err error, httpStatus int) FetchOutcome {
	out := FetchOutcome{HTTPStatus: httpStatus}
	if err != nil {
		out.ErrorMessage = err.Error()
	}
	return out
}

// AuthFailure returns an outcome that aborts the run
func AuthFailure(msg string, httpStatus int) FetchOutcome {
	return FetchOutcome{ErrorMessage: msg, HTTPStatus: httpStatus, AuthFailed: true}
}
