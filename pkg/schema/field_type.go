package schema

// FieldType identifies the kind of element a FormField renders.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeEmail       FieldType = "email"
	TypePhone       FieldType = "phone"
	TypeNumber      FieldType = "number"
	TypeTextarea    FieldType = "textarea"
	TypeSelect      FieldType = "select"
	TypeMultiselect FieldType = "multiselect"
	TypeCheckbox    FieldType = "checkbox"
	TypeCheckboxes  FieldType = "checkboxes"
	TypeRadio       FieldType = "radio"
	TypeDate        FieldType = "date"
	TypeTime        FieldType = "time"
	TypeDatetime    FieldType = "datetime"
	TypeFile        FieldType = "file"
	TypeSignature   FieldType = "signature"
	TypeRating      FieldType = "rating"
	TypeScale       FieldType = "scale"
	TypeHeading     FieldType = "heading"
	TypeParagraph   FieldType = "paragraph"
	TypeDivider     FieldType = "divider"
)

// FieldTypes lists every supported field type in palette order.
func FieldTypes() []FieldType {
	return []FieldType{
		TypeText, TypeEmail, TypePhone, TypeNumber, TypeTextarea,
		TypeSelect, TypeMultiselect, TypeCheckbox, TypeCheckboxes, TypeRadio,
		TypeDate, TypeTime, TypeDatetime, TypeFile, TypeSignature, TypeRating, TypeScale,
		TypeHeading, TypeParagraph, TypeDivider,
	}
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes() {
		if ft == t {
			return true
		}
	}
	return false
}

// IsLayout reports whether t renders content without collecting an answer.
func (t FieldType) IsLayout() bool {
	switch t {
	case TypeHeading, TypeParagraph, TypeDivider:
		return true
	}
	return false
}

// IsChoice reports whether t requires a non-empty option list.
func (t FieldType) IsChoice() bool {
	switch t {
	case TypeSelect, TypeMultiselect, TypeCheckboxes, TypeRadio:
		return true
	}
	return false
}

// IsMultiValued reports whether answers of t are sets of option values.
func (t FieldType) IsMultiValued() bool {
	return t == TypeMultiselect || t == TypeCheckboxes
}

// IsTextLike reports whether length constraints apply to t.
func (t FieldType) IsTextLike() bool {
	switch t {
	case TypeText, TypeTextarea, TypeEmail, TypePhone:
		return true
	}
	return false
}

// SupportsPattern reports whether a regex pattern may be set on t.
func (t FieldType) SupportsPattern() bool {
	switch t {
	case TypeText, TypeEmail, TypePhone:
		return true
	}
	return false
}
