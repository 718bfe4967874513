package builder

import (
	"fmt"
	"regexp"

	"github.com/faciam-dev/gcform/pkg/fieldtype"
	"github.com/faciam-dev/gcform/pkg/schema"
)

// normalize fills defaults and drops attributes that do not apply to the
// field's type.
func normalize(f *schema.FormField) {
	if f.Width == "" {
		f.Width = schema.WidthFull
	}
	if !schema.SettingsMatch(f.Type, f.Settings) {
		if d, err := fieldtype.Describe(f.Type); err == nil {
			f.Settings = d.DefaultSettings()
		}
	}
	if !f.Type.IsChoice() {
		f.Options = nil
	}
	if f.Type.IsLayout() {
		f.Required = false
	}
	if f.Logic != nil && len(f.Logic.Rules) == 0 {
		f.Logic = nil
	}
}

// lookup resolves a field id to its type within the same form.
type lookup func(id string) (schema.FieldType, bool)

func checkField(f *schema.FormField, find lookup) error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %q", schema.ErrUnknownFieldType, f.Type)
	}
	if f.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidField)
	}
	if !f.Width.Valid() {
		return fmt.Errorf("%w: field %s: width %q", ErrInvalidField, f.ID, f.Width)
	}
	if err := checkOptions(f); err != nil {
		return err
	}
	if f.MinLength != nil && *f.MinLength < 0 || f.MaxLength != nil && *f.MaxLength < 0 {
		return fmt.Errorf("%w: field %s: negative length", ErrInvalidField, f.ID)
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return fmt.Errorf("%w: field %s: min_length > max_length", ErrInvalidField, f.ID)
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		return fmt.Errorf("%w: field %s: min_value > max_value", ErrInvalidField, f.ID)
	}
	if f.Pattern != "" {
		if !f.Type.SupportsPattern() {
			return fmt.Errorf("%w: field %s: pattern not supported for %s", ErrInvalidField, f.ID, f.Type)
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("%w: field %s: pattern: %v", ErrInvalidField, f.ID, err)
		}
	}
	if err := checkSettings(f); err != nil {
		return err
	}
	return checkLogic(f, find)
}

func checkOptions(f *schema.FormField) error {
	if !f.Type.IsChoice() {
		return nil
	}
	if len(f.Options) == 0 {
		return fmt.Errorf("%w: field %s", ErrEmptyOptions, f.ID)
	}
	seen := make(map[string]bool, len(f.Options))
	for _, o := range f.Options {
		if o.Value == "" {
			return fmt.Errorf("%w: field %s: empty option value", ErrInvalidField, f.ID)
		}
		if seen[o.Value] {
			return fmt.Errorf("%w: field %s: %q", ErrDuplicateOption, f.ID, o.Value)
		}
		seen[o.Value] = true
	}
	return nil
}

func checkSettings(f *schema.FormField) error {
	switch s := f.Settings.(type) {
	case *schema.RatingSettings:
		if s.MaxRating < 1 {
			return fmt.Errorf("%w: field %s: max_rating must be positive", ErrInvalidField, f.ID)
		}
	case *schema.ScaleSettings:
		if s.Min >= s.Max {
			return fmt.Errorf("%w: field %s: scale_min must be below scale_max", ErrInvalidField, f.ID)
		}
	case *schema.FileSettings:
		if s.MaxFiles < 0 || s.MaxFileSize < 0 {
			return fmt.Errorf("%w: field %s: negative file limit", ErrInvalidField, f.ID)
		}
	}
	return nil
}

func checkLogic(f *schema.FormField, find lookup) error {
	l := f.Logic
	if l == nil {
		return nil
	}
	if l.Action != schema.ActionShow && l.Action != schema.ActionHide {
		return fmt.Errorf("%w: field %s: action %q", ErrInvalidRule, f.ID, l.Action)
	}
	if l.Logic != schema.MatchAll && l.Logic != schema.MatchAny {
		return fmt.Errorf("%w: field %s: logic %q", ErrInvalidRule, f.ID, l.Logic)
	}
	for i, r := range l.Rules {
		if r.FieldID == f.ID {
			return fmt.Errorf("%w: field %s rule %d references itself", ErrInvalidRule, f.ID, i)
		}
		t, ok := find(r.FieldID)
		if !ok {
			return fmt.Errorf("%w: field %s rule %d references unknown field %q", ErrInvalidRule, f.ID, i, r.FieldID)
		}
		if t.IsLayout() {
			return fmt.Errorf("%w: field %s rule %d references layout field %q", ErrInvalidRule, f.ID, i, r.FieldID)
		}
		if !r.Operator.Valid() {
			return fmt.Errorf("%w: field %s rule %d: operator %q", ErrInvalidRule, f.ID, i, r.Operator)
		}
		if r.Operator.NeedsValue() && r.Value == "" {
			return fmt.Errorf("%w: field %s rule %d: %s needs a value", ErrInvalidRule, f.ID, i, r.Operator)
		}
	}
	return nil
}
