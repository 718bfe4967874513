// Package logic decides which fields of a form are visible for a set of live
// answers.
//
// Evaluation is a pure function of the field list and the answers. Rules only
// reference other, non-layout fields and use the raw answers of those fields,
// so a single pass over the list gives the final visibility of every field.
package logic

import (
	"strings"

	"github.com/faciam-dev/gcform/pkg/schema"
)

// Evaluator answers visibility queries for one field list.
type Evaluator struct {
	types map[string]schema.FieldType
}

// New indexes fields for evaluation. The evaluator keeps no answers between
// calls.
func New(fields []schema.FormField) *Evaluator {
	e := &Evaluator{types: make(map[string]schema.FieldType, len(fields))}
	for _, f := range fields {
		e.types[f.ID] = f.Type
	}
	return e
}

// IsVisible reports whether field is shown given all fields and answers.
func IsVisible(field schema.FormField, fields []schema.FormField, values schema.Values) bool {
	return New(fields).Visible(field, values)
}

// Visible reports whether field is shown for values.
func (e *Evaluator) Visible(field schema.FormField, values schema.Values) bool {
	l := field.Logic
	if l == nil {
		return true
	}
	met := e.match(l, values)
	if l.Action == schema.ActionHide {
		return !met
	}
	return met
}

// VisibleSet evaluates every field and returns visibility keyed by id.
func (e *Evaluator) VisibleSet(fields []schema.FormField, values schema.Values) map[string]bool {
	res := make(map[string]bool, len(fields))
	for _, f := range fields {
		res[f.ID] = e.Visible(f, values)
	}
	return res
}

func (e *Evaluator) match(l *schema.ConditionalLogic, values schema.Values) bool {
	if l.Logic == schema.MatchAny {
		for _, r := range l.Rules {
			if e.Eval(r, values) {
				return true
			}
		}
		return false
	}
	for _, r := range l.Rules {
		if !e.Eval(r, values) {
			return false
		}
	}
	return true
}

// Eval evaluates a single rule. Unknown operators evaluate to false.
func (e *Evaluator) Eval(r schema.Rule, values schema.Values) bool {
	actual := values[r.FieldID]
	typ := e.types[r.FieldID]
	multi := typ.IsMultiValued()
	switch r.Operator {
	case schema.OpEquals:
		return equals(actual, r.Value, multi)
	case schema.OpNotEquals:
		return !equals(actual, r.Value, multi)
	case schema.OpContains:
		return contains(actual, r.Value, multi)
	case schema.OpNotContains:
		return !contains(actual, r.Value, multi)
	case schema.OpIsEmpty:
		return schema.IsEmptyAnswer(typ, actual)
	case schema.OpIsNotEmpty:
		return !schema.IsEmptyAnswer(typ, actual)
	case schema.OpGreaterThan:
		return compare(actual, r.Value, func(a, b float64) bool { return a > b })
	case schema.OpLessThan:
		return compare(actual, r.Value, func(a, b float64) bool { return a < b })
	}
	return false
}

func member(actual any, want string) bool {
	for _, s := range schema.AsStrings(actual) {
		if s == want {
			return true
		}
	}
	return false
}

func equals(actual any, want string, multi bool) bool {
	if multi {
		return member(actual, want)
	}
	return schema.AsString(actual) == want
}

func contains(actual any, want string, multi bool) bool {
	if multi {
		return member(actual, want)
	}
	return strings.Contains(schema.AsString(actual), want)
}

func compare(actual any, want string, cmp func(a, b float64) bool) bool {
	a, ok := schema.AsNumber(actual)
	if !ok {
		return false
	}
	b, ok := schema.AsNumber(want)
	if !ok {
		return false
	}
	return cmp(a, b)
}
