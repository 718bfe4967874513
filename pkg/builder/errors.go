package builder

import "errors"

var (
	// ErrNotFound is returned when a mutation names an unknown field id. The
	// builder is left untouched.
	ErrNotFound = errors.New("field not found")
	// ErrInvalidRule rejects conditional logic that references a missing,
	// self or layout field, or lacks a required comparison value.
	ErrInvalidRule = errors.New("invalid conditional rule")
	// ErrDuplicateOption rejects option lists with repeated values.
	ErrDuplicateOption = errors.New("duplicate option value")
	// ErrEmptyOptions rejects choice fields without options.
	ErrEmptyOptions = errors.New("choice field requires options")
	// ErrInvalidField covers other malformed field attributes.
	ErrInvalidField = errors.New("invalid field")
	// ErrPublishEmpty is returned when publishing a form without fields or
	// removing the last field of a published one.
	ErrPublishEmpty = errors.New("cannot publish a form without fields")
	// ErrInvalidModel is returned by Load for documents that break the
	// model invariants.
	ErrInvalidModel = errors.New("invalid form model")
)
