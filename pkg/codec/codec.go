// Package codec reads and writes form documents: a form and its ordered
// fields, in YAML or JSON.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/gcform/pkg/schema"
)

// CurrentVersion is written into every encoded document.
const CurrentVersion = "1.1.0"

// supported is the newest document version this package reads.
var supported = semver.MustParse(CurrentVersion)

// ErrUnsupportedVersion is returned for documents written by a newer major
// version, or with an unparsable version.
var ErrUnsupportedVersion = errors.New("unsupported document version")

// Document is the serialized form of a builder session.
type Document struct {
	Version string             `json:"version" yaml:"version"`
	Form    schema.Form        `json:"form" yaml:"form"`
	Fields  []schema.FormField `json:"fields" yaml:"fields"`
}

// New wraps a form and its fields in a document of the current version.
func New(form schema.Form, fields []schema.FormField) Document {
	if fields == nil {
		fields = []schema.FormField{}
	}
	return Document{Version: CurrentVersion, Form: form, Fields: fields}
}

// EncodeYAML writes a document as YAML.
func EncodeYAML(form schema.Form, fields []schema.FormField) ([]byte, error) {
	return yaml.Marshal(New(form, fields))
}

// EncodeJSON writes a document as indented JSON.
func EncodeJSON(form schema.Form, fields []schema.FormField) ([]byte, error) {
	return json.MarshalIndent(New(form, fields), "", "  ")
}

// DecodeYAML reads a YAML document.
func DecodeYAML(b []byte) (Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return Document{}, err
	}
	return d, checkVersion(&d)
}

// DecodeJSON reads a JSON document.
func DecodeJSON(b []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, err
	}
	return d, checkVersion(&d)
}

// Decode detects JSON by its leading brace and falls back to YAML.
func Decode(b []byte) (Document, error) {
	for _, c := range b {
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			continue
		}
		if c == '{' {
			return DecodeJSON(b)
		}
		break
	}
	return DecodeYAML(b)
}

// checkVersion accepts documents from the same major version. A missing
// version is read as the current one.
func checkVersion(d *Document) error {
	if d.Version == "" {
		d.Version = CurrentVersion
		return nil
	}
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, d.Version, err)
	}
	if v.Major() != supported.Major() || v.Minor() > supported.Minor() {
		return fmt.Errorf("%w: %s (supported %d.x up to %s)", ErrUnsupportedVersion, v, supported.Major(), supported)
	}
	return nil
}
