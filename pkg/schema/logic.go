package schema

import "slices"

// Action decides what a satisfied rule set does to its field.
type Action string

const (
	ActionShow Action = "show"
	ActionHide Action = "hide"
)

// Match selects how rule results combine.
type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

// Operator is the comparison a Rule applies to the referenced field's value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Operators lists every supported operator.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpIsEmpty, OpIsNotEmpty, OpGreaterThan, OpLessThan,
	}
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	return slices.Contains(Operators(), o)
}

// NeedsValue reports whether rules using o must carry a comparison value.
func (o Operator) NeedsValue() bool {
	return o != OpIsEmpty && o != OpIsNotEmpty
}

// Rule compares the live value of another field.
type Rule struct {
	FieldID  string   `json:"field_id" yaml:"field_id"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
}

// ConditionalLogic decides a field's visibility from other fields' values.
type ConditionalLogic struct {
	Action Action `json:"action" yaml:"action"`
	Logic  Match  `json:"logic" yaml:"logic"`
	Rules  []Rule `json:"rules" yaml:"rules"`
}

// Clone returns a deep copy of l. A nil receiver yields nil.
func (l *ConditionalLogic) Clone() *ConditionalLogic {
	if l == nil {
		return nil
	}
	c := *l
	c.Rules = slices.Clone(l.Rules)
	return &c
}

// References reports whether any rule targets id.
func (l *ConditionalLogic) References(id string) bool {
	if l == nil {
		return false
	}
	for _, r := range l.Rules {
		if r.FieldID == id {
			return true
		}
	}
	return false
}

// Without returns a copy of l with every rule targeting id removed. It
// returns nil once no rules remain.
func (l *ConditionalLogic) Without(id string) *ConditionalLogic {
	if l == nil {
		return nil
	}
	c := l.Clone()
	c.Rules = slices.DeleteFunc(c.Rules, func(r Rule) bool { return r.FieldID == id })
	if len(c.Rules) == 0 {
		return nil
	}
	return c
}
