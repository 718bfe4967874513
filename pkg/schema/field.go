package schema

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Width is a layout hint for the renderer.
type Width string

const (
	WidthFull  Width = "full"
	WidthHalf  Width = "half"
	WidthThird Width = "third"
)

// Valid reports whether w is a known width.
func (w Width) Valid() bool {
	return w == WidthFull || w == WidthHalf || w == WidthThird
}

// Option is one selectable answer of a choice field.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// FormField is one question or layout element of a form.
type FormField struct {
	ID          string            `json:"id" yaml:"id"`
	FormID      string            `json:"form_id" yaml:"form_id"`
	Type        FieldType         `json:"field_type" yaml:"field_type"`
	Label       string            `json:"label" yaml:"label"`
	Placeholder string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText    string            `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	Required    bool              `json:"is_required" yaml:"is_required"`
	SortOrder   int               `json:"sort_order" yaml:"sort_order"`
	Width       Width             `json:"width" yaml:"width"`
	Options     []Option          `json:"options,omitempty" yaml:"options,omitempty"`
	MinLength   *int              `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength   *int              `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MinValue    *float64          `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue    *float64          `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Pattern     string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Settings    Settings          `json:"-" yaml:"-"`
	Logic       *ConditionalLogic `json:"conditional_logic,omitempty" yaml:"conditional_logic,omitempty"`
}

// Clone returns a deep copy of f.
func (f FormField) Clone() FormField {
	c := f
	c.Options = slices.Clone(f.Options)
	c.MinLength = clonePtr(f.MinLength)
	c.MaxLength = clonePtr(f.MaxLength)
	c.MinValue = clonePtr(f.MinValue)
	c.MaxValue = clonePtr(f.MaxValue)
	if f.Settings != nil {
		c.Settings = f.Settings.Clone()
	}
	c.Logic = f.Logic.Clone()
	return c
}

// HasOption reports whether value is one of the field's option values.
func (f FormField) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// fieldAlias drops the methods of FormField so the codecs below can reuse
// the default struct encoding.
type fieldAlias FormField

type fieldJSON struct {
	fieldAlias
	Settings json.RawMessage `json:"settings,omitempty"`
}

// MarshalJSON encodes the settings variant under "settings".
func (f FormField) MarshalJSON() ([]byte, error) {
	out := fieldJSON{fieldAlias: fieldAlias(f)}
	if f.Settings != nil {
		b, err := json.Marshal(f.Settings)
		if err != nil {
			return nil, err
		}
		out.Settings = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "settings" into the variant selected by field_type.
// Decoding onto an existing field merges: keys absent from b keep their
// current values.
func (f *FormField) UnmarshalJSON(b []byte) error {
	prev := f.Settings
	aux := fieldJSON{fieldAlias: fieldAlias(*f)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*f = FormField(aux.fieldAlias)
	s, err := settingsFor(f.Type, prev, len(aux.Settings) > 0 && string(aux.Settings) != "null")
	if err != nil {
		return err
	}
	if len(aux.Settings) > 0 && string(aux.Settings) != "null" {
		if err := json.Unmarshal(aux.Settings, s); err != nil {
			return fmt.Errorf("field %s settings: %w", f.ID, err)
		}
	}
	f.Settings = s
	return nil
}

type fieldYAML struct {
	fieldAlias `yaml:",inline"`
	Settings   any `yaml:"settings,omitempty"`
}

// MarshalYAML encodes the settings variant under "settings".
func (f FormField) MarshalYAML() (any, error) {
	out := fieldYAML{fieldAlias: fieldAlias(f)}
	if f.Settings != nil {
		out.Settings = f.Settings
	}
	return out, nil
}

// UnmarshalYAML decodes "settings" into the variant selected by field_type.
func (f *FormField) UnmarshalYAML(n *yaml.Node) error {
	var aux struct {
		fieldAlias `yaml:",inline"`
		Settings   yaml.Node `yaml:"settings"`
	}
	if err := n.Decode(&aux); err != nil {
		return err
	}
	*f = FormField(aux.fieldAlias)
	present := aux.Settings.Kind != 0
	s, err := settingsFor(f.Type, nil, present)
	if err != nil {
		return err
	}
	if present {
		if err := aux.Settings.Decode(s); err != nil {
			return fmt.Errorf("field %s settings: %w", f.ID, err)
		}
	}
	f.Settings = s
	return nil
}

// settingsFor picks the decode target for t: the previous settings when they
// still fit t and no replacement is supplied, a clone of them when merging,
// or the type's defaults otherwise.
func settingsFor(t FieldType, prev Settings, replace bool) (Settings, error) {
	if SettingsMatch(t, prev) {
		if !replace {
			return prev, nil
		}
		return prev.Clone(), nil
	}
	s := DefaultSettings(t)
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFieldType, t)
	}
	return s, nil
}
