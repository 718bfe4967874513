// Package fieldtype is the catalog of supported field types and the defaults
// a new field of each type starts from.
package fieldtype

import (
	"fmt"

	"github.com/iancoleman/strcase"

	"github.com/faciam-dev/gcform/pkg/schema"
)

// Category groups types in the add-field palette. It has no runtime effect.
type Category string

const (
	CategoryBasic    Category = "basic"
	CategoryChoice   Category = "choice"
	CategoryAdvanced Category = "advanced"
	CategoryLayout   Category = "layout"
)

// Categories lists categories in palette order.
func Categories() []Category {
	return []Category{CategoryBasic, CategoryChoice, CategoryAdvanced, CategoryLayout}
}

// Descriptor describes one field type.
type Descriptor struct {
	Type     schema.FieldType `json:"type"`
	Label    string           `json:"label"`
	Category Category         `json:"category"`
	Icon     string           `json:"icon,omitempty"`
}

// DefaultSettings returns a fresh copy of the type's default settings.
func (d Descriptor) DefaultSettings() schema.Settings {
	return schema.DefaultSettings(d.Type)
}

// DefaultOptions returns the options a new field of the type starts with.
// Only choice types have any.
func (d Descriptor) DefaultOptions() []schema.Option {
	if !d.Type.IsChoice() {
		return nil
	}
	return []schema.Option{NewOption("Option 1"), NewOption("Option 2")}
}

// NewOption builds an option whose value is the snake_case form of label.
func NewOption(label string) schema.Option {
	return schema.Option{Value: strcase.ToSnake(label), Label: label}
}

func builtin() []Descriptor {
	return []Descriptor{
		{Type: schema.TypeText, Label: "Short Text", Category: CategoryBasic, Icon: "type"},
		{Type: schema.TypeEmail, Label: "Email", Category: CategoryBasic, Icon: "mail"},
		{Type: schema.TypePhone, Label: "Phone", Category: CategoryBasic, Icon: "phone"},
		{Type: schema.TypeNumber, Label: "Number", Category: CategoryBasic, Icon: "hash"},
		{Type: schema.TypeTextarea, Label: "Long Text", Category: CategoryBasic, Icon: "align-left"},
		{Type: schema.TypeSelect, Label: "Dropdown", Category: CategoryChoice, Icon: "chevron-down"},
		{Type: schema.TypeMultiselect, Label: "Multi Select", Category: CategoryChoice, Icon: "list"},
		{Type: schema.TypeCheckbox, Label: "Checkbox", Category: CategoryChoice, Icon: "check-square"},
		{Type: schema.TypeCheckboxes, Label: "Checkboxes", Category: CategoryChoice, Icon: "list-checks"},
		{Type: schema.TypeRadio, Label: "Radio Buttons", Category: CategoryChoice, Icon: "circle-dot"},
		{Type: schema.TypeDate, Label: "Date", Category: CategoryAdvanced, Icon: "calendar"},
		{Type: schema.TypeTime, Label: "Time", Category: CategoryAdvanced, Icon: "clock"},
		{Type: schema.TypeDatetime, Label: "Date & Time", Category: CategoryAdvanced, Icon: "calendar-clock"},
		{Type: schema.TypeFile, Label: "File Upload", Category: CategoryAdvanced, Icon: "upload"},
		{Type: schema.TypeSignature, Label: "Signature", Category: CategoryAdvanced, Icon: "pen-tool"},
		{Type: schema.TypeRating, Label: "Rating", Category: CategoryAdvanced, Icon: "star"},
		{Type: schema.TypeScale, Label: "Scale", Category: CategoryAdvanced, Icon: "sliders"},
		{Type: schema.TypeHeading, Label: "Heading", Category: CategoryLayout, Icon: "heading"},
		{Type: schema.TypeParagraph, Label: "Paragraph", Category: CategoryLayout, Icon: "pilcrow"},
		{Type: schema.TypeDivider, Label: "Divider", Category: CategoryLayout, Icon: "minus"},
	}
}

var byType = func() map[schema.FieldType]Descriptor {
	m := make(map[schema.FieldType]Descriptor)
	for _, d := range builtin() {
		m[d.Type] = d
	}
	return m
}()

// Describe looks up the descriptor for t.
func Describe(t schema.FieldType) (Descriptor, error) {
	d, ok := byType[t]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", schema.ErrUnknownFieldType, t)
	}
	return d, nil
}

// All returns every descriptor in palette order.
func All() []Descriptor {
	return builtin()
}

// Group is one palette section.
type Group struct {
	Category Category     `json:"category"`
	Types    []Descriptor `json:"types"`
}

// Palette returns descriptors grouped by category in palette order.
func Palette() []Group {
	res := make([]Group, 0, len(Categories()))
	for _, c := range Categories() {
		g := Group{Category: c}
		for _, d := range builtin() {
			if d.Category == c {
				g.Types = append(g.Types, d)
			}
		}
		res = append(res, g)
	}
	return res
}

// NewField returns a field of type t populated with the type's defaults.
// The caller assigns ID, FormID and SortOrder.
func NewField(t schema.FieldType) (schema.FormField, error) {
	d, err := Describe(t)
	if err != nil {
		return schema.FormField{}, err
	}
	return schema.FormField{
		Type:     t,
		Label:    d.Label,
		Width:    schema.WidthFull,
		Options:  d.DefaultOptions(),
		Settings: d.DefaultSettings(),
	}, nil
}
