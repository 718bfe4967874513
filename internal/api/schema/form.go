package schema

import (
	"time"

	"github.com/faciam-dev/gcform/pkg/validation"
)

type CreateForm struct {
	Name        string `json:"name" minLength:"1" maxLength:"255"`
	Slug        string `json:"slug,omitempty" maxLength:"255" doc:"Derived from the name when empty"`
	Description string `json:"description,omitempty"`
}

type AddField struct {
	Type string `json:"type" minLength:"1" example:"text"`
}

type MoveField struct {
	Position int `json:"position" minimum:"0"`
}

type Values struct {
	Values map[string]any `json:"values"`
}

type FieldRef struct {
	FieldID string `json:"field_id"`
}

type Visibility struct {
	Visible map[string]bool `json:"visible"`
}

type FieldError struct {
	FieldID string `json:"field_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationReport struct {
	Valid   bool            `json:"valid"`
	Errors  []FieldError    `json:"errors"`
	Visible map[string]bool `json:"visible"`
	Payload map[string]any  `json:"payload"`
}

type SubmissionReceipt struct {
	FormID     string         `json:"form_id"`
	AcceptedAt time.Time      `json:"accepted_at"`
	Payload    map[string]any `json:"payload"`
}

// Report converts a validation result to its wire shape.
func Report(r validation.Result) ValidationReport {
	out := ValidationReport{
		Valid:   r.OK(),
		Errors:  make([]FieldError, 0, len(r.Errors)),
		Visible: r.Visible,
		Payload: r.Payload,
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, FieldError{FieldID: e.FieldID(), Code: string(e.Code()), Message: e.Error()})
	}
	return out
}
