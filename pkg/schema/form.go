package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
)

// Status is the publication state of a form.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

var (
	// ErrUnknownFieldType is returned when a field_type is not in the registry.
	ErrUnknownFieldType = errors.New("unknown field type")
	// ErrNotAccepting wraps every reason a form refuses new submissions.
	ErrNotAccepting = errors.New("form is not accepting submissions")
)

// Form holds the settings, branding and submission policy of a form.
type Form struct {
	ID          string `json:"id" yaml:"id"`
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	PrimaryColor     string `json:"primary_color,omitempty" yaml:"primary_color,omitempty"`
	BackgroundColor  string `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	LogoURL          string `json:"logo_url,omitempty" yaml:"logo_url,omitempty"`
	HeaderImageURL   string `json:"header_image_url,omitempty" yaml:"header_image_url,omitempty"`
	SubmitButtonText string `json:"submit_button_text,omitempty" yaml:"submit_button_text,omitempty"`
	SuccessMessage   string `json:"success_message,omitempty" yaml:"success_message,omitempty"`
	RedirectURL      string `json:"redirect_url,omitempty" yaml:"redirect_url,omitempty"`

	IsPublic                 bool       `json:"is_public" yaml:"is_public"`
	RequiresAuth             bool       `json:"requires_auth" yaml:"requires_auth"`
	IsMemberForm             bool       `json:"is_member_form" yaml:"is_member_form"`
	MembershipRequiredStrict bool       `json:"membership_required_strict" yaml:"membership_required_strict"`
	AllowMultipleSubmissions bool       `json:"allow_multiple_submissions" yaml:"allow_multiple_submissions"`
	MaxSubmissions           *int       `json:"max_submissions,omitempty" yaml:"max_submissions,omitempty"`
	SubmissionDeadline       *time.Time `json:"submission_deadline,omitempty" yaml:"submission_deadline,omitempty"`
	NotifyOnSubmission       bool       `json:"notify_on_submission" yaml:"notify_on_submission"`
	NotificationEmails       []string   `json:"notification_emails,omitempty" yaml:"notification_emails,omitempty"`

	Status Status `json:"status" yaml:"status"`
}

// Clone returns a deep copy of f.
func (f Form) Clone() Form {
	c := f
	c.MaxSubmissions = clonePtr(f.MaxSubmissions)
	c.SubmissionDeadline = clonePtr(f.SubmissionDeadline)
	if f.NotificationEmails != nil {
		c.NotificationEmails = append([]string(nil), f.NotificationEmails...)
	}
	return c
}

// Normalize trims notification addresses, drops blanks and removes
// case-insensitive duplicates keeping the first spelling. An empty status
// becomes draft and an empty slug is derived from the name.
func (f *Form) Normalize() {
	seen := make(map[string]bool, len(f.NotificationEmails))
	emails := f.NotificationEmails[:0:0]
	for _, e := range f.NotificationEmails {
		e = strings.TrimSpace(e)
		k := strings.ToLower(e)
		if e == "" || seen[k] {
			continue
		}
		seen[k] = true
		emails = append(emails, e)
	}
	if len(emails) == 0 {
		emails = nil
	}
	f.NotificationEmails = emails
	if f.Status == "" {
		f.Status = StatusDraft
	}
	if f.Slug == "" {
		f.Slug = Slugify(f.Name)
	}
}

// Slugify turns a form name into a URL token.
func Slugify(name string) string {
	return strcase.ToKebab(strings.TrimSpace(name))
}

// CheckAccepting reports why the form refuses a new submission, if it does.
// submitted is the number of submissions already stored.
func (f Form) CheckAccepting(now time.Time, submitted int, authenticated bool) error {
	switch {
	case f.Status != StatusPublished:
		return fmt.Errorf("%w: form is not published", ErrNotAccepting)
	case f.SubmissionDeadline != nil && now.After(*f.SubmissionDeadline):
		return fmt.Errorf("%w: deadline %s has passed", ErrNotAccepting, f.SubmissionDeadline.Format(time.RFC3339))
	case f.MaxSubmissions != nil && submitted >= *f.MaxSubmissions:
		return fmt.Errorf("%w: limit of %d submissions reached", ErrNotAccepting, *f.MaxSubmissions)
	case f.RequiresAuth && !authenticated:
		return fmt.Errorf("%w: sign-in required", ErrNotAccepting)
	}
	return nil
}
