package manifest

import "tweetvault/pkg/models"

// Reasons attached to pending and no_media results
const (
	ReasonNoMetadata      = "no metadata"
	ReasonNoMediaDeclared = "no media declared"
	ReasonNoValidMedia    = "no valid media"
	ReasonNotDownloaded   = "no media downloaded yet"
)

// Reconcile derives an item's status from its manifest and the media files
// present in its directory. It performs no I/O, and equal inputs always
// produce equal results.
func Reconcile(present bool, m *Manifest, existing map[string]struct{}) models.Details {
	if !present || m == nil {
		return models.Pending{Reason: ReasonNoMetadata}
	}

	if len(m.Media) == 0 {
		if m.Declared > 0 {
			return models.NoMedia{Reason: ReasonNoValidMedia}
		}
		return models.NoMedia{Reason: ReasonNoMediaDeclared}
	}

	expected := 0
	found := 0
	checks := make([]models.DescriptorCheck, 0, len(m.Media))
	for _, d := range m.Media {
		files := d.ExpectedFiles()
		all := true
		for _, name := range files {
			if _, ok := existing[name]; ok {
				found++
			} else {
				all = false
			}
		}
		expected += len(files)
		checks = append(checks, models.DescriptorCheck{
			Kind:       string(d.Kind()),
			Files:      files,
			Downloaded: all,
		})
	}

	switch {
	case found == 0:
		return models.Pending{Reason: ReasonNotDownloaded, MediaCount: expected}
	case found < expected:
		return models.Partial{MediaCount: expected, DownloadedCount: found, Descriptors: checks}
	default:
		return models.Success{MediaCount: expected, DownloadedCount: found}
	}
}
