package manifest

import (
	"os"

	tverrors "tweetvault/pkg/errors"
	"tweetvault/pkg/models"
	"tweetvault/pkg/storage"
)

// Inspector reads an item's manifest record and directory listing and
// reconciles them.
type Inspector struct {
	layout *storage.Layout
}

func NewInspector(layout *storage.Layout) *Inspector {
	return &Inspector{layout: layout}
}

// Load reads and parses an item's manifest record. present is false when
// the item has no directory or no record yet. Filesystem failures carry
// ErrorTypeFilesystem; unusable content carries ErrorTypeMalformedManifest.
func (i *Inspector) Load(id string) (m *Manifest, present bool, err error) {
	data, err := os.ReadFile(i.layout.ManifestPath(id))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, tverrors.Wrap(tverrors.ErrorTypeFilesystem, err, "failed to read manifest")
	}

	m, err = Parse(data)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// Inspect returns the current status of an item on disk
func (i *Inspector) Inspect(id string) models.Details {
	m, present, err := i.Load(id)
	if err != nil {
		return detailsForError(err)
	}
	if !present || len(m.Media) == 0 {
		return Reconcile(present, m, nil)
	}

	existing, err := i.layout.ListMedia(id)
	if err != nil {
		return detailsForError(tverrors.Wrap(tverrors.ErrorTypeFilesystem, err, "failed to list item directory"))
	}
	return Reconcile(true, m, existing)
}

// detailsForError keeps bad data (failed) apart from a broken
// environment (error).
func detailsForError(err error) models.Details {
	if tverrors.Is(err, tverrors.ErrorTypeFilesystem) {
		return models.Errored{Error: err.Error()}
	}
	return models.Failed{Error: err.Error()}
}
