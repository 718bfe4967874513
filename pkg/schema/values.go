package schema

import (
	"math"
	"strconv"
	"strings"
)

// Values maps field ids to live answers. Answers decoded from JSON are
// strings, float64, bool, []any or objects; Go callers may also use []string
// and the integer types.
type Values map[string]any

// IsEmpty reports whether v counts as no answer: nil, an empty or blank
// string, an empty list, or an unchecked checkbox.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case []map[string]any:
		return len(x) == 0
	}
	return false
}

// IsEmptyAnswer is IsEmpty aware of the field type: an unticked checkbox
// sent as the string "false" counts as empty like bool false does.
func IsEmptyAnswer(t FieldType, v any) bool {
	if t == TypeCheckbox {
		if b, ok := AsBool(v); ok {
			return !b
		}
	}
	return IsEmpty(v)
}

// AsBool reads a checkbox answer given as a bool or as the string "true" or
// "false" in any case.
func AsBool(v any) (value, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// AsString coerces a scalar answer to its string form.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// AsStrings returns the members of a multi-valued answer. A scalar answer is
// treated as a one-element set and nil as the empty set.
func AsStrings(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, AsString(e))
		}
		return out
	}
	return []string{AsString(v)}
}

// AsNumber parses a numeric answer.
func AsNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
