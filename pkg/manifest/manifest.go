package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	tverrors "tweetvault/pkg/errors"
)

const schemaURL = "https://tweetvault.local/schema/manifest.schema.json"

//go:embed manifest.schema.json
var schemaJSON string

var recordSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("manifest schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		panic(fmt.Sprintf("manifest schema: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// Manifest is the declared media of one item
type Manifest struct {
	// Media holds the usable descriptors in declaration order
	Media []MediaDescriptor
	// Declared counts raw entries, including the skipped ones
	Declared int
}

// ExpectedFileCount returns the number of files the manifest expects on disk
func (m *Manifest) ExpectedFileCount() int {
	n := 0
	for _, d := range m.Media {
		n += len(d.ExpectedFiles())
	}
	return n
}

type rawRecord struct {
	Media []rawMedia `json:"media"`
}

type rawMedia struct {
	Type   string    `json:"type"`
	Image  string    `json:"image"`
	Videos []Variant `json:"videos"`
	Cover  string    `json:"cover"`
}

// Parse decodes a manifest record. Records that are not JSON or do not
// match the record schema yield a malformed_manifest error. Entries of an
// unknown type or without a usable URL are skipped.
func Parse(data []byte) (*Manifest, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, tverrors.Wrap(tverrors.ErrorTypeMalformedManifest, err, "manifest is not valid JSON")
	}
	if err := recordSchema.Validate(inst); err != nil {
		return nil, tverrors.Wrap(tverrors.ErrorTypeMalformedManifest, err, "manifest does not match schema")
	}

	var rec rawRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, tverrors.Wrap(tverrors.ErrorTypeMalformedManifest, err, "failed to decode manifest")
	}

	m := &Manifest{Declared: len(rec.Media)}
	for _, entry := range rec.Media {
		if d, ok := entry.descriptor(); ok {
			m.Media = append(m.Media, d)
		}
	}
	return m, nil
}

func (r rawMedia) descriptor() (MediaDescriptor, bool) {
	var d MediaDescriptor
	switch r.Type {
	case "photo", "image":
		if r.Image == "" {
			return nil, false
		}
		d = Image{SourceURL: r.Image}
	case "video", "animated_gif":
		if len(r.Videos) == 0 {
			return nil, false
		}
		d = Video{Variants: r.Videos, CoverURL: r.Cover}
	default:
		return nil, false
	}
	if len(d.ExpectedFiles()) == 0 {
		return nil, false
	}
	return d, true
}
