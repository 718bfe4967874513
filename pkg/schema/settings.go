package schema

import "slices"

// Settings is the per-type configuration of a field. Each field type maps to
// exactly one concrete variant; see NewSettings.
type Settings interface {
	// Look returns the label and spacing options shared by every variant.
	Look() *Appearance
	// Clone returns a deep copy of the settings.
	Clone() Settings
}

// Appearance holds label styling common to all field types.
type Appearance struct {
	LabelPosition string `json:"label_position,omitempty" yaml:"label_position,omitempty"`
	LabelColor    string `json:"label_color,omitempty" yaml:"label_color,omitempty"`
	LabelSize     string `json:"label_size,omitempty" yaml:"label_size,omitempty"`
	LabelWeight   string `json:"label_weight,omitempty" yaml:"label_weight,omitempty"`
	Spacing       string `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	HideLabel     bool   `json:"hide_label,omitempty" yaml:"hide_label,omitempty"`
}

// InputSettings configures plain input and choice fields.
type InputSettings struct {
	Appearance   `yaml:",inline"`
	MemberLookup bool `json:"member_lookup,omitempty" yaml:"member_lookup,omitempty"`
}

// PhoneSettings configures phone fields.
type PhoneSettings struct {
	Appearance        `yaml:",inline"`
	PhoneVerification bool `json:"phone_verification,omitempty" yaml:"phone_verification,omitempty"`
}

// RatingSettings configures star ratings from 1 to MaxRating.
type RatingSettings struct {
	Appearance `yaml:",inline"`
	MaxRating  int `json:"max_rating" yaml:"max_rating"`
}

// ScaleSettings configures a linear scale from Min to Max.
type ScaleSettings struct {
	Appearance `yaml:",inline"`
	Min        int    `json:"scale_min" yaml:"scale_min"`
	Max        int    `json:"scale_max" yaml:"scale_max"`
	MinLabel   string `json:"scale_min_label,omitempty" yaml:"scale_min_label,omitempty"`
	MaxLabel   string `json:"scale_max_label,omitempty" yaml:"scale_max_label,omitempty"`
}

// FileSettings configures uploads. MaxFileSize is in megabytes; zero means
// unlimited.
type FileSettings struct {
	Appearance       `yaml:",inline"`
	AllowedFileTypes []string `json:"allowed_file_types,omitempty" yaml:"allowed_file_types,omitempty"`
	MaxFiles         int      `json:"max_files" yaml:"max_files"`
	MaxFileSize      int      `json:"max_file_size" yaml:"max_file_size"`
}

// SignatureSettings configures signature pads.
type SignatureSettings struct {
	Appearance `yaml:",inline"`
}

// HeadingSettings configures section headings.
type HeadingSettings struct {
	Appearance  `yaml:",inline"`
	HeadingSize string `json:"heading_size" yaml:"heading_size"`
}

// ParagraphSettings configures static text blocks.
type ParagraphSettings struct {
	Appearance `yaml:",inline"`
}

// DividerSettings configures horizontal rules.
type DividerSettings struct {
	Appearance   `yaml:",inline"`
	DividerStyle string `json:"divider_style" yaml:"divider_style"`
}

func (s *InputSettings) Look() *Appearance     { return &s.Appearance }
func (s *PhoneSettings) Look() *Appearance     { return &s.Appearance }
func (s *RatingSettings) Look() *Appearance    { return &s.Appearance }
func (s *ScaleSettings) Look() *Appearance     { return &s.Appearance }
func (s *FileSettings) Look() *Appearance      { return &s.Appearance }
func (s *SignatureSettings) Look() *Appearance { return &s.Appearance }
func (s *HeadingSettings) Look() *Appearance   { return &s.Appearance }
func (s *ParagraphSettings) Look() *Appearance { return &s.Appearance }
func (s *DividerSettings) Look() *Appearance   { return &s.Appearance }

func (s *InputSettings) Clone() Settings     { c := *s; return &c }
func (s *PhoneSettings) Clone() Settings     { c := *s; return &c }
func (s *RatingSettings) Clone() Settings    { c := *s; return &c }
func (s *ScaleSettings) Clone() Settings     { c := *s; return &c }
func (s *SignatureSettings) Clone() Settings { c := *s; return &c }
func (s *HeadingSettings) Clone() Settings   { c := *s; return &c }
func (s *ParagraphSettings) Clone() Settings { c := *s; return &c }
func (s *DividerSettings) Clone() Settings   { c := *s; return &c }

func (s *FileSettings) Clone() Settings {
	c := *s
	c.AllowedFileTypes = slices.Clone(s.AllowedFileTypes)
	return &c
}

// NewSettings returns the zero settings variant for t, or nil when t is not
// a known field type.
func NewSettings(t FieldType) Settings {
	switch t {
	case TypeText, TypeEmail, TypeNumber, TypeTextarea,
		TypeSelect, TypeMultiselect, TypeCheckbox, TypeCheckboxes, TypeRadio,
		TypeDate, TypeTime, TypeDatetime:
		return &InputSettings{}
	case TypePhone:
		return &PhoneSettings{}
	case TypeRating:
		return &RatingSettings{}
	case TypeScale:
		return &ScaleSettings{}
	case TypeFile:
		return &FileSettings{}
	case TypeSignature:
		return &SignatureSettings{}
	case TypeHeading:
		return &HeadingSettings{}
	case TypeParagraph:
		return &ParagraphSettings{}
	case TypeDivider:
		return &DividerSettings{}
	}
	return nil
}

// DefaultSettings returns the settings a new field of type t starts from, or
// nil when t is not a known field type.
func DefaultSettings(t FieldType) Settings {
	switch t {
	case TypeFile:
		return &FileSettings{MaxFiles: 1, MaxFileSize: 10}
	case TypeRating:
		return &RatingSettings{MaxRating: 5}
	case TypeScale:
		return &ScaleSettings{Min: 1, Max: 10}
	case TypeHeading:
		return &HeadingSettings{HeadingSize: "h2"}
	case TypeDivider:
		return &DividerSettings{DividerStyle: "solid"}
	}
	return NewSettings(t)
}

// SettingsMatch reports whether s is the variant NewSettings(t) produces.
func SettingsMatch(t FieldType, s Settings) bool {
	if s == nil {
		return false
	}
	switch s.(type) {
	case *InputSettings:
		_, ok := NewSettings(t).(*InputSettings)
		return ok
	case *PhoneSettings:
		return t == TypePhone
	case *RatingSettings:
		return t == TypeRating
	case *ScaleSettings:
		return t == TypeScale
	case *FileSettings:
		return t == TypeFile
	case *SignatureSettings:
		return t == TypeSignature
	case *HeadingSettings:
		return t == TypeHeading
	case *ParagraphSettings:
		return t == TypeParagraph
	case *DividerSettings:
		return t == TypeDivider
	}
	return false
}
