// Package service runs builder sessions against the store and fans the
// results out to revisions, the published-form cache and event sinks.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faciam-dev/gcform/internal/audit"
	"github.com/faciam-dev/gcform/internal/events"
	"github.com/faciam-dev/gcform/internal/formcache"
	"github.com/faciam-dev/gcform/internal/logger"
	"github.com/faciam-dev/gcform/internal/store"
	"github.com/faciam-dev/gcform/pkg/builder"
	"github.com/faciam-dev/gcform/pkg/codec"
	"github.com/faciam-dev/gcform/pkg/fieldtype"
	"github.com/faciam-dev/gcform/pkg/logic"
	"github.com/faciam-dev/gcform/pkg/metrics"
	"github.com/faciam-dev/gcform/pkg/schema"
	"github.com/faciam-dev/gcform/pkg/validation"
)

// ErrNotFound is returned for unknown form ids and slugs.
var ErrNotFound = store.ErrNotFound

// ErrSlugTaken is returned when an update would give a form the slug of
// another form.
var ErrSlugTaken = store.ErrSlugTaken

// slugAttempts bounds how often Create retries after losing a race for a
// derived slug.
const slugAttempts = 3

// Repository loads and stores forms.
type Repository interface {
	builder.Saver
	Load(ctx context.Context, id string) (schema.Form, []schema.FormField, error)
	BySlug(ctx context.Context, slug string) (store.Record, error)
	List(ctx context.Context) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Revisions records and lists form history.
type Revisions interface {
	Write(ctx context.Context, actor, action string, before, after *codec.Document) error
	List(ctx context.Context, formID string, limit int, withDiff bool) ([]audit.Revision, error)
}

// SubmissionCounter tracks accepted submissions per form for the
// max_submissions policy.
type SubmissionCounter interface {
	Count(ctx context.Context, formID string) (int, error)
	Add(ctx context.Context, formID string) error
}

type Option func(*Service)

// WithRevisions records a revision for every change.
func WithRevisions(r Revisions) Option { return func(s *Service) { s.revs = r } }

// WithCache keeps c in sync with publish state and reads published forms
// from it.
func WithCache(c *formcache.Cache) Option { return func(s *Service) { s.cache = c } }

// WithEvents emits lifecycle events through d.
func WithEvents(d *events.Dispatcher) Option { return func(s *Service) { s.events = d } }

// WithIDGenerator replaces uuid generation for forms and fields.
func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

// WithClock sets the time source used for submission deadlines.
func WithClock(fn func() time.Time) Option { return func(s *Service) { s.now = fn } }

// WithSubmissionCounter replaces the in-process submission counter.
func WithSubmissionCounter(c SubmissionCounter) Option { return func(s *Service) { s.counter = c } }

// Service exposes the form operations used by the HTTP API.
type Service struct {
	repo    Repository
	revs    Revisions
	cache   *formcache.Cache
	events  *events.Dispatcher
	counter SubmissionCounter
	newID   func() string
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*formLock
}

type formLock struct {
	sync.Mutex
	refs int
}

// New returns a service over repo.
func New(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		newID:   uuid.NewString,
		now:     time.Now,
		counter: &memoryCounter{n: map[string]int{}},
		locks:   map[string]*formLock{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// lock serializes sessions on one form so concurrent edits do not overwrite
// each other. Entries are dropped once no session holds or waits for them.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &formLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()
	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// FieldTypes returns the palette grouped by category.
func (s *Service) FieldTypes() []fieldtype.Group {
	return fieldtype.Palette()
}

// List returns all forms.
func (s *Service) List(ctx context.Context) ([]store.Summary, error) {
	return s.repo.List(ctx)
}

// Get returns a form document.
func (s *Service) Get(ctx context.Context, id string) (codec.Document, error) {
	form, fields, err := s.repo.Load(ctx, id)
	if err != nil {
		return codec.Document{}, err
	}
	return codec.New(form, fields), nil
}

// Create stores a new draft form. The id is generated and the slug derived
// from the name when empty. A slug already in use gets the first free
// numeric suffix, so a second "Gala Dinner" becomes gala-dinner-2.
func (s *Service) Create(ctx context.Context, actor string, form schema.Form) (codec.Document, error) {
	form.ID = s.newID()
	form.Status = schema.StatusDraft
	form.Normalize()
	base := form.Slug
	if base == "" {
		base = "form"
	}
	var b *builder.Builder
	for attempt := 1; ; attempt++ {
		slug, err := s.freeSlug(ctx, base)
		if err != nil {
			return codec.Document{}, err
		}
		form.Slug = slug
		b = builder.New(form, builder.WithIDGenerator(s.newID))
		err = b.Save(ctx, s.saver())
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrSlugTaken) || attempt == slugAttempts {
			return codec.Document{}, err
		}
	}
	after := codec.New(b.Form(), b.Fields())
	s.record(ctx, actor, audit.ActionCreate, nil, &after)
	s.emit(ctx, events.FormSaved, actor, b)
	return after, nil
}

// Replace overwrites the settings and fields of a form with doc. The
// document goes through builder.Load, so it must satisfy the model
// invariants. The publication status is kept, as is the slug when doc
// leaves it empty.
func (s *Service) Replace(ctx context.Context, actor, id string, doc codec.Document) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		form := doc.Form
		form.ID = id
		form.Status = b.Form().Status
		if form.Slug == "" {
			form.Slug = b.Form().Slug
		}
		fields := make([]schema.FormField, len(doc.Fields))
		copy(fields, doc.Fields)
		return builder.Load(form, fields, builder.WithIDGenerator(s.newID))
	})
}

// UpdateForm applies a partial JSON update to the form settings.
func (s *Service) UpdateForm(ctx context.Context, actor, id string, patch json.RawMessage) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		var perr error
		b.UpdateForm(func(f *schema.Form) { perr = json.Unmarshal(patch, f) })
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", builder.ErrInvalidField, perr)
		}
		return b, nil
	})
}

// AddField appends a field of type t and returns the document and the new
// field id.
func (s *Service) AddField(ctx context.Context, actor, id string, t schema.FieldType) (codec.Document, string, error) {
	var fieldID string
	doc, err := s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		var err error
		fieldID, err = b.AddField(t)
		return b, err
	})
	return doc, fieldID, err
}

// UpdateField merges a partial JSON definition into a field. The id and
// form id cannot be changed; a new field_type resets type-specific data.
func (s *Service) UpdateField(ctx context.Context, actor, id, fieldID string, patch json.RawMessage) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		var perr error
		err := b.UpdateField(fieldID, func(f *schema.FormField) {
			perr = json.Unmarshal(patch, f)
		})
		if err != nil {
			return nil, err
		}
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", builder.ErrInvalidField, perr)
		}
		return b, nil
	})
}

// DeleteField removes a field and the rules that referenced it.
func (s *Service) DeleteField(ctx context.Context, actor, id, fieldID string) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		return b, b.DeleteField(fieldID)
	})
}

// DuplicateField copies a field and returns the id of the copy.
func (s *Service) DuplicateField(ctx context.Context, actor, id, fieldID string) (codec.Document, string, error) {
	var copyID string
	doc, err := s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		var err error
		copyID, err = b.DuplicateField(fieldID)
		return b, err
	})
	return doc, copyID, err
}

// MoveField moves a field to position, clamped to the field range.
func (s *Service) MoveField(ctx context.Context, actor, id, fieldID string, position int) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionUpdate, func(b *builder.Builder) (*builder.Builder, error) {
		return b, b.Reorder(fieldID, position)
	})
}

// Publish marks the form published. Forms without fields are refused with
// builder.ErrPublishEmpty.
func (s *Service) Publish(ctx context.Context, actor, id string) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionPublish, func(b *builder.Builder) (*builder.Builder, error) {
		return b, b.Publish(ctx, s.saver())
	})
}

// Unpublish returns the form to draft.
func (s *Service) Unpublish(ctx context.Context, actor, id string) (codec.Document, error) {
	return s.session(ctx, actor, id, audit.ActionUnpublish, func(b *builder.Builder) (*builder.Builder, error) {
		return b, b.Unpublish(ctx, s.saver())
	})
}

// Delete removes a form.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Remove(id)
	}
	return nil
}

// Revisions lists the history of a form, newest first.
func (s *Service) Revisions(ctx context.Context, id string, limit int, withDiff bool) ([]audit.Revision, error) {
	if _, _, err := s.repo.Load(ctx, id); err != nil {
		return nil, err
	}
	if s.revs == nil {
		return []audit.Revision{}, nil
	}
	return s.revs.List(ctx, id, limit, withDiff)
}

// session loads form id into a builder, runs fn and saves the result when
// it changed. fn may return a different builder, e.g. one rebuilt with
// builder.Load.
func (s *Service) session(ctx context.Context, actor, id, action string, fn func(*builder.Builder) (*builder.Builder, error)) (codec.Document, error) {
	unlock := s.lock(id)
	defer unlock()

	form, fields, err := s.repo.Load(ctx, id)
	if err != nil {
		return codec.Document{}, err
	}
	b, err := builder.Load(form, fields, builder.WithIDGenerator(s.newID))
	if err != nil {
		return codec.Document{}, err
	}
	before := codec.New(b.Form(), b.Fields())

	next, err := fn(b)
	if err != nil {
		return codec.Document{}, err
	}
	if next.Form().Status == schema.StatusPublished && next.Len() == 0 {
		return codec.Document{}, fmt.Errorf("%w: unpublish %s first", builder.ErrPublishEmpty, id)
	}
	if next != b || next.Dirty() {
		if err := next.Save(ctx, s.saver()); err != nil {
			return codec.Document{}, err
		}
	}
	after := codec.New(next.Form(), next.Fields())

	s.record(ctx, actor, action, &before, &after)
	switch {
	case before.Form.Status != schema.StatusPublished && after.Form.Status == schema.StatusPublished:
		metrics.StatusChanges.WithLabelValues(string(schema.StatusPublished)).Inc()
		s.emit(ctx, events.FormPublished, actor, next)
	case before.Form.Status == schema.StatusPublished && after.Form.Status != schema.StatusPublished:
		metrics.StatusChanges.WithLabelValues(string(schema.StatusDraft)).Inc()
		s.emit(ctx, events.FormUnpublished, actor, next)
	default:
		s.emit(ctx, events.FormSaved, actor, next)
	}
	s.syncCache(after)
	return after, nil
}

// freeSlug returns base when no form uses it, otherwise the first of
// base-2, base-3 and so on that is free.
func (s *Service) freeSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		_, err := s.repo.BySlug(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

// saver wraps the repository to count saves.
func (s *Service) saver() builder.Saver {
	return builder.SaverFunc(func(ctx context.Context, form schema.Form, fields []schema.FormField) error {
		err := s.repo.Save(ctx, form, fields)
		if errors.Is(err, store.ErrSlugTaken) {
			metrics.FormSaves.WithLabelValues("conflict").Inc()
			return err
		}
		if err != nil {
			metrics.FormSaves.WithLabelValues("error").Inc()
			logger.L.Error("save form", "form", form.ID, "err", err)
			return err
		}
		metrics.FormSaves.WithLabelValues("ok").Inc()
		return nil
	})
}

func (s *Service) record(ctx context.Context, actor, action string, before, after *codec.Document) {
	if s.revs == nil {
		return
	}
	if err := s.revs.Write(ctx, actor, action, before, after); err != nil {
		logger.L.Error("record revision", "form", after.Form.ID, "action", action, "err", err)
	}
}

func (s *Service) emit(ctx context.Context, name, actor string, b *builder.Builder) {
	if s.events == nil {
		return
	}
	f := b.Form()
	s.events.Dispatch(ctx, events.New(name, f.ID, events.FormData{
		FormID: f.ID, Slug: f.Slug, Name: f.Name, Status: string(f.Status),
		Fields: b.Len(), Actor: actor, Version: b.Version(),
	}))
}

func (s *Service) syncCache(doc codec.Document) {
	if s.cache == nil {
		return
	}
	if doc.Form.Status == schema.StatusPublished {
		s.cache.Put(store.Record{Form: doc.Form, Fields: doc.Fields, UpdatedAt: s.now()})
		return
	}
	s.cache.Remove(doc.Form.ID)
}

// Visibility evaluates the conditional logic of every field of form id
// against values.
func (s *Service) Visibility(ctx context.Context, id string, values schema.Values) (map[string]bool, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return logic.New(rec.Fields).VisibleSet(rec.Fields, values), nil
}

// Validate checks values against form id without applying the submission
// policy, e.g. for a builder preview.
func (s *Service) Validate(ctx context.Context, id string, values schema.Values) (validation.Result, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return validation.Result{}, err
	}
	return validation.Check(rec.Fields, values), nil
}

// Submission is the outcome of Submit.
type Submission struct {
	FormID     string
	AcceptedAt time.Time
	validation.Result
}

// Submit validates a submission to the published form with slug. The form
// policy is applied first; an accepted submission is counted and announced
// with submission.accepted carrying only the visible answers. An invalid
// submission is returned with its errors and a nil error.
func (s *Service) Submit(ctx context.Context, slug string, values schema.Values, authenticated bool) (Submission, error) {
	rec, err := s.published(ctx, slug)
	if err != nil {
		return Submission{}, err
	}
	n, err := s.counter.Count(ctx, rec.Form.ID)
	if err != nil {
		return Submission{}, err
	}
	now := s.now()
	if err := rec.Form.CheckAccepting(now, n, authenticated); err != nil {
		metrics.Submissions.WithLabelValues("refused").Inc()
		return Submission{}, err
	}
	sub := Submission{FormID: rec.Form.ID, Result: validation.Check(rec.Fields, values)}
	if !sub.OK() {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		for _, e := range sub.Errors {
			metrics.ValidationFailures.WithLabelValues(string(e.Code())).Inc()
		}
		return sub, nil
	}
	if err := s.counter.Add(ctx, rec.Form.ID); err != nil {
		return Submission{}, err
	}
	sub.AcceptedAt = now
	metrics.Submissions.WithLabelValues("accepted").Inc()
	if s.events != nil {
		s.events.Dispatch(ctx, events.New(events.SubmissionAccepted, rec.Form.ID, events.SubmissionData{
			FormID: rec.Form.ID, Slug: rec.Form.Slug, Values: sub.Payload,
		}))
	}
	return sub, nil
}

// lookup returns form id, preferring the published cache.
func (s *Service) lookup(ctx context.Context, id string) (store.Record, error) {
	if s.cache != nil {
		if rec, ok := s.cache.ByID(id); ok {
			return rec, nil
		}
	}
	form, fields, err := s.repo.Load(ctx, id)
	if err != nil {
		return store.Record{}, err
	}
	return store.Record{Form: form, Fields: fields}, nil
}

// published returns the published form with slug.
func (s *Service) published(ctx context.Context, slug string) (store.Record, error) {
	if s.cache != nil {
		if rec, ok := s.cache.BySlug(slug); ok {
			return rec, nil
		}
	}
	rec, err := s.repo.BySlug(ctx, slug)
	if err != nil {
		return store.Record{}, err
	}
	if rec.Form.Status != schema.StatusPublished {
		return store.Record{}, fmt.Errorf("%w: %s is a draft", schema.ErrNotAccepting, slug)
	}
	return rec, nil
}

// IsNotFound reports whether err means an unknown form or field.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, builder.ErrNotFound)
}

type memoryCounter struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *memoryCounter) Count(_ context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[id], nil
}

func (c *memoryCounter) Add(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n[id]++
	return nil
}
