package client

import (
	"time"

	"github.com/faciam-dev/gcform/pkg/audit"
	"github.com/faciam-dev/gcform/pkg/fieldtype"
)

// FieldTypeGroup is one section of the add-field palette.
type FieldTypeGroup = fieldtype.Group

// Summary is one row of the form list.
type Summary struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Fields    int       `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldError is one failing field of a validation report.
type FieldError struct {
	FieldID string `json:"field_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report is the result of validating answers.
type Report struct {
	Valid   bool            `json:"valid"`
	Errors  []FieldError    `json:"errors"`
	Visible map[string]bool `json:"visible"`
	Payload map[string]any  `json:"payload"`
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	FormID     string         `json:"form_id"`
	AcceptedAt time.Time      `json:"accepted_at"`
	Payload    map[string]any `json:"payload"`
}

// Revision is one entry of a form's history.
type Revision struct {
	ID        int64     `json:"id"`
	FormID    string    `json:"form_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
	Changes   Changes   `json:"changes"`
	Diff      string    `json:"diff,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Changes lists field ids touched by a revision.
type Changes = audit.FieldChanges
