package validation

import (
	"fmt"
	"strconv"
)

// Code classifies a validation failure.
type Code string

const (
	CodeRequired      Code = "required"
	CodeMinLength     Code = "min_length"
	CodeMaxLength     Code = "max_length"
	CodePattern       Code = "pattern"
	CodeNotANumber    Code = "not_a_number"
	CodeOutOfRange    Code = "out_of_range"
	CodeInvalidOption Code = "invalid_option"
	CodeFormat        Code = "invalid_format"
	CodeFile          Code = "invalid_file"
)

// FieldError is a user-facing failure of one field.
type FieldError interface {
	error
	FieldID() string
	Code() Code
}

// RequiredError reports a missing answer to a required field.
type RequiredError struct {
	Field string
}

func (e *RequiredError) Error() string   { return fmt.Sprintf("field %s is required", e.Field) }
func (e *RequiredError) FieldID() string { return e.Field }
func (e *RequiredError) Code() Code      { return CodeRequired }

// LengthError reports a text answer outside min_length/max_length.
type LengthError struct {
	Field  string
	Length int
	Min    *int
	Max    *int
}

func (e *LengthError) Error() string {
	if e.Min != nil && e.Length < *e.Min {
		return fmt.Sprintf("field %s must be at least %d characters", e.Field, *e.Min)
	}
	return fmt.Sprintf("field %s must be at most %d characters", e.Field, *e.Max)
}
func (e *LengthError) FieldID() string { return e.Field }
func (e *LengthError) Code() Code {
	if e.Min != nil && e.Length < *e.Min {
		return CodeMinLength
	}
	return CodeMaxLength
}

// PatternError reports a text answer not matching the field's pattern.
type PatternError struct {
	Field   string
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("field %s does not match pattern %q", e.Field, e.Pattern)
}
func (e *PatternError) FieldID() string { return e.Field }
func (e *PatternError) Code() Code      { return CodePattern }

// NumberError reports an answer that is not a number, or not an integer
// where one is needed.
type NumberError struct {
	Field string
	Value any
}

func (e *NumberError) Error() string   { return fmt.Sprintf("field %s: %v is not a valid number", e.Field, e.Value) }
func (e *NumberError) FieldID() string { return e.Field }
func (e *NumberError) Code() Code      { return CodeNotANumber }

// RangeError reports a numeric answer outside its bounds.
type RangeError struct {
	Field string
	Value float64
	Min   *float64
	Max   *float64
}

func (e *RangeError) Error() string {
	v := strconv.FormatFloat(e.Value, 'f', -1, 64)
	switch {
	case e.Min != nil && e.Max != nil:
		return fmt.Sprintf("field %s: %s is outside %g..%g", e.Field, v, *e.Min, *e.Max)
	case e.Min != nil:
		return fmt.Sprintf("field %s: %s is below %g", e.Field, v, *e.Min)
	default:
		return fmt.Sprintf("field %s: %s is above %g", e.Field, v, *e.Max)
	}
}
func (e *RangeError) FieldID() string { return e.Field }
func (e *RangeError) Code() Code      { return CodeOutOfRange }

// InvalidOptionError reports an answer that is not one of the field's
// option values.
type InvalidOptionError struct {
	Field string
	Value string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("field %s: %q is not a valid option", e.Field, e.Value)
}
func (e *InvalidOptionError) FieldID() string { return e.Field }
func (e *InvalidOptionError) Code() Code      { return CodeInvalidOption }

// FormatError reports an answer rejected by a format checker.
type FormatError struct {
	Field  string
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("field %s: invalid %s: %v", e.Field, e.Format, e.Err)
}
func (e *FormatError) Unwrap() error   { return e.Err }
func (e *FormatError) FieldID() string { return e.Field }
func (e *FormatError) Code() Code      { return CodeFormat }

// FileError reports an upload breaking the field's file limits.
type FileError struct {
	Field  string
	Reason string
}

func (e *FileError) Error() string   { return fmt.Sprintf("field %s: %s", e.Field, e.Reason) }
func (e *FileError) FieldID() string { return e.Field }
func (e *FileError) Code() Code      { return CodeFile }
