// Package validation checks submitted answers against field constraints,
// honoring conditional visibility: hidden and layout fields are never
// validated and never reach the submission payload.
package validation

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/faciam-dev/gcform/pkg/logic"
	"github.com/faciam-dev/gcform/pkg/schema"
)

// Validate checks one answer. It returns nil when the field is hidden, is a
// layout field, or the answer satisfies every constraint; otherwise the first
// failing constraint.
func Validate(field schema.FormField, value any, fields []schema.FormField, values schema.Values) FieldError {
	if !logic.IsVisible(field, fields, values) {
		return nil
	}
	return check(field, value)
}

// Result is the outcome of validating a whole submission.
type Result struct {
	// Errors holds at most one failure per field, in form order.
	Errors []FieldError
	// Visible maps every field id to its visibility.
	Visible map[string]bool
	// Payload holds the answers of visible, non-layout fields only.
	Payload schema.Values
}

// OK reports whether the submission has no failures.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// ByField indexes failures by field id.
func (r Result) ByField() map[string]FieldError {
	m := make(map[string]FieldError, len(r.Errors))
	for _, e := range r.Errors {
		m[e.FieldID()] = e
	}
	return m
}

// Check validates every field of a submission and builds its payload. It is
// not fail-fast: all failing fields are reported.
func Check(fields []schema.FormField, values schema.Values) Result {
	e := logic.New(fields)
	res := Result{
		Visible: e.VisibleSet(fields, values),
		Payload: make(schema.Values),
	}
	for _, f := range fields {
		if !res.Visible[f.ID] || f.Type.IsLayout() {
			continue
		}
		v, answered := values[f.ID]
		if err := check(f, v); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		if answered {
			res.Payload[f.ID] = v
		}
	}
	return res
}

func check(f schema.FormField, v any) FieldError {
	if f.Type.IsLayout() {
		return nil
	}
	if schema.IsEmptyAnswer(f.Type, v) {
		if f.Required {
			return &RequiredError{Field: f.ID}
		}
		return nil
	}
	switch {
	case f.Type.IsTextLike():
		return checkText(f, v)
	case f.Type.IsChoice():
		return checkChoice(f, v)
	}
	switch f.Type {
	case schema.TypeNumber:
		return checkNumber(f, v)
	case schema.TypeRating, schema.TypeScale:
		return checkBounded(f, v)
	case schema.TypeDate, schema.TypeTime, schema.TypeDatetime:
		return checkFormat(f, schema.AsString(v))
	case schema.TypeCheckbox:
		if _, ok := schema.AsBool(v); !ok {
			return &FormatError{Field: f.ID, Format: "checkbox", Err: fmt.Errorf("expected true or false, got %v", v)}
		}
	case schema.TypeFile:
		return checkFiles(f, v)
	}
	return nil
}

func checkText(f schema.FormField, v any) FieldError {
	s, ok := v.(string)
	if !ok {
		s = schema.AsString(v)
	}
	n := utf8.RuneCountInString(s)
	if f.MinLength != nil && n < *f.MinLength || f.MaxLength != nil && n > *f.MaxLength {
		return &LengthError{Field: f.ID, Length: n, Min: f.MinLength, Max: f.MaxLength}
	}
	if f.Pattern != "" && f.Type.SupportsPattern() {
		re, err := regexp.Compile(f.Pattern)
		if err != nil || !re.MatchString(s) {
			return &PatternError{Field: f.ID, Pattern: f.Pattern}
		}
	}
	if f.Type == schema.TypeEmail || f.Type == schema.TypePhone {
		return checkFormat(f, strings.TrimSpace(s))
	}
	return nil
}

func checkFormat(f schema.FormField, s string) FieldError {
	fn, ok := GetFormat(string(f.Type))
	if !ok {
		return nil
	}
	if err := fn(s); err != nil {
		return &FormatError{Field: f.ID, Format: string(f.Type), Err: err}
	}
	return nil
}

func checkNumber(f schema.FormField, v any) FieldError {
	n, ok := schema.AsNumber(v)
	if !ok {
		return &NumberError{Field: f.ID, Value: v}
	}
	if f.MinValue != nil && n < *f.MinValue || f.MaxValue != nil && n > *f.MaxValue {
		return &RangeError{Field: f.ID, Value: n, Min: f.MinValue, Max: f.MaxValue}
	}
	return nil
}

func checkBounded(f schema.FormField, v any) FieldError {
	n, ok := schema.AsNumber(v)
	if !ok || n != math.Trunc(n) {
		return &NumberError{Field: f.ID, Value: v}
	}
	var lo, hi float64
	switch s := f.Settings.(type) {
	case *schema.RatingSettings:
		lo, hi = 1, float64(s.MaxRating)
	case *schema.ScaleSettings:
		lo, hi = float64(s.Min), float64(s.Max)
	default:
		return nil
	}
	if n < lo || n > hi {
		return &RangeError{Field: f.ID, Value: n, Min: &lo, Max: &hi}
	}
	return nil
}

func checkChoice(f schema.FormField, v any) FieldError {
	var picked []string
	if f.Type.IsMultiValued() {
		picked = schema.AsStrings(v)
	} else {
		if _, isList := v.([]any); isList {
			return &InvalidOptionError{Field: f.ID, Value: fmt.Sprint(v)}
		}
		picked = []string{schema.AsString(v)}
	}
	for _, p := range picked {
		if !f.HasOption(p) {
			return &InvalidOptionError{Field: f.ID, Value: p}
		}
	}
	return nil
}

type upload struct {
	name string
	size float64
}

func uploads(v any) ([]upload, bool) {
	one := func(x any) (upload, bool) {
		switch m := x.(type) {
		case string:
			return upload{name: m}, true
		case map[string]any:
			name, _ := m["name"].(string)
			size, _ := schema.AsNumber(m["size"])
			return upload{name: name, size: size}, name != ""
		}
		return upload{}, false
	}
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case []map[string]any:
		for _, m := range x {
			items = append(items, m)
		}
	default:
		items = []any{v}
	}
	out := make([]upload, 0, len(items))
	for _, it := range items {
		u, ok := one(it)
		if !ok {
			return nil, false
		}
		out = append(out, u)
	}
	return out, true
}

func checkFiles(f schema.FormField, v any) FieldError {
	files, ok := uploads(v)
	if !ok {
		return &FileError{Field: f.ID, Reason: "expected file descriptors with a name"}
	}
	s, _ := f.Settings.(*schema.FileSettings)
	if s == nil {
		return nil
	}
	if s.MaxFiles > 0 && len(files) > s.MaxFiles {
		return &FileError{Field: f.ID, Reason: fmt.Sprintf("at most %d files allowed", s.MaxFiles)}
	}
	for _, u := range files {
		if s.MaxFileSize > 0 && u.size > float64(s.MaxFileSize)*1024*1024 {
			return &FileError{Field: f.ID, Reason: fmt.Sprintf("%s exceeds %d MB", u.name, s.MaxFileSize)}
		}
		if len(s.AllowedFileTypes) > 0 && !allowedExt(u.name, s.AllowedFileTypes) {
			return &FileError{Field: f.ID, Reason: fmt.Sprintf("%s has a disallowed file type", u.name)}
		}
	}
	return nil
}

func allowedExt(name string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), ".")) == ext {
			return true
		}
	}
	return false
}
