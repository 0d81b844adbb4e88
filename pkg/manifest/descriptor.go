package manifest

import (
	"net/url"
	"strings"
)

// Kind distinguishes the media descriptor variants
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// MediaDescriptor is one declared media entry. It is either an Image or
// a Video; each knows which files it should leave on disk.
type MediaDescriptor interface {
	Kind() Kind
	// ExpectedFiles returns the file names this descriptor produces, in a
	// fixed order.
	ExpectedFiles() []string
}

// Image is a single picture
type Image struct {
	SourceURL string
}

// Variant is one encoding of a video
type Variant struct {
	URL     string `json:"url"`
	Bitrate int64  `json:"bitrate"`
}

// Video is a clip with one or more encodings and an optional cover image
type Video struct {
	Variants []Variant
	CoverURL string
}

func (Image) Kind() Kind { return KindImage }
func (Video) Kind() Kind { return KindVideo }

func (i Image) ExpectedFiles() []string {
	if name := FilenameFromURL(i.SourceURL); name != "" {
		return []string{name}
	}
	return nil
}

// Canonical returns the highest-bitrate variant. On equal bitrates the
// later variant wins.
func (v Video) Canonical() (Variant, bool) {
	if len(v.Variants) == 0 {
		return Variant{}, false
	}
	best := v.Variants[0]
	for _, c := range v.Variants[1:] {
		if c.Bitrate >= best.Bitrate {
			best = c
		}
	}
	return best, true
}

// ExpectedFiles returns the canonical variant's file followed by the cover.
// Non-canonical variants are never expected on disk.
func (v Video) ExpectedFiles() []string {
	var files []string
	if c, ok := v.Canonical(); ok {
		if name := FilenameFromURL(c.URL); name != "" {
			files = append(files, name)
		}
	}
	if name := FilenameFromURL(v.CoverURL); name != "" {
		files = append(files, name)
	}
	return files
}

// URLs returns the download URL for each expected file, keyed by file name
func URLs(d MediaDescriptor) map[string]string {
	out := make(map[string]string)
	add := func(raw string) {
		if name := FilenameFromURL(raw); name != "" {
			out[name] = raw
		}
	}
	switch m := d.(type) {
	case Image:
		add(m.SourceURL)
	case Video:
		if c, ok := m.Canonical(); ok {
			add(c.URL)
		}
		add(m.CoverURL)
	}
	return out
}

// FilenameFromURL returns the last path segment of raw, ignoring any query
// string or fragment. It returns "" when raw has no usable file name.
func FilenameFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path[strings.LastIndex(u.Path, "/")+1:]
}
