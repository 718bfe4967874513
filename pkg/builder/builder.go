// Package builder implements the editing operations a form designer performs
// on a form's field list.
//
// A Builder keeps fields in an arena keyed by id plus an explicit ordering of
// ids. Every mutation keeps the model valid: ids are unique, sort orders are
// the contiguous positions 0..N-1, option values are unique per field, and
// every conditional rule references an existing, non-self, non-layout field.
// A Builder is owned by one editing session and is not safe for concurrent
// use.
package builder

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/faciam-dev/gcform/pkg/fieldtype"
	"github.com/faciam-dev/gcform/pkg/schema"
)

// Saver persists a snapshot of the form and its ordered fields.
type Saver interface {
	Save(ctx context.Context, form schema.Form, fields []schema.FormField) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, form schema.Form, fields []schema.FormField) error

func (f SaverFunc) Save(ctx context.Context, form schema.Form, fields []schema.FormField) error {
	return f(ctx, form, fields)
}

// Mutation edits a field in place. It must not change the field's id.
type Mutation func(f *schema.FormField)

// Option configures a Builder.
type Option func(*Builder)

// WithIDGenerator replaces the uuid generator used for new field ids.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// Builder is an in-memory editing session for one form.
type Builder struct {
	form     schema.Form
	fields   map[string]*schema.FormField
	order    []string
	selected string

	version uint64
	saved   uint64

	newID func() string
}

// New starts a session for a form without fields.
func New(form schema.Form, opts ...Option) *Builder {
	b := &Builder{
		form:   form.Clone(),
		fields: make(map[string]*schema.FormField),
		newID:  uuid.NewString,
	}
	b.form.Normalize()
	for _, o := range opts {
		o(b)
	}
	return b
}

// Load starts a session from a persisted form and its fields. Fields are
// ordered by sort_order, ties keeping their input order, and renumbered to
// be contiguous. Rules pointing at fields missing from the document are
// dropped the same way DeleteField drops them; any other violation of the
// model invariants fails with ErrInvalidModel.
func Load(form schema.Form, fields []schema.FormField, opts ...Option) (*Builder, error) {
	b := New(form, opts...)
	sorted := make([]schema.FormField, len(fields))
	copy(sorted, fields)
	slices.SortStableFunc(sorted, func(a, c schema.FormField) int { return cmp.Compare(a.SortOrder, c.SortOrder) })

	for _, f := range sorted {
		if _, dup := b.fields[f.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate field id %q", ErrInvalidModel, f.ID)
		}
		c := f.Clone()
		c.FormID = b.form.ID
		b.fields[c.ID] = &c
		b.order = append(b.order, c.ID)
	}
	for _, id := range b.order {
		f := b.fields[id]
		if f.Logic != nil {
			for _, r := range f.Logic.Rules {
				if _, ok := b.fields[r.FieldID]; !ok {
					f.Logic = f.Logic.Without(r.FieldID)
					if f.Logic == nil {
						break
					}
				}
			}
		}
		normalize(f)
		if err := checkField(f, b.find); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
		}
	}
	b.renumber()
	return b, nil
}

func (b *Builder) find(id string) (schema.FieldType, bool) {
	f, ok := b.fields[id]
	if !ok {
		return "", false
	}
	return f.Type, true
}

func (b *Builder) renumber() {
	for i, id := range b.order {
		b.fields[id].SortOrder = i
	}
}

func (b *Builder) touch() {
	b.version++
}

// Form returns a copy of the form settings.
func (b *Builder) Form() schema.Form {
	return b.form.Clone()
}

// Len returns the number of fields.
func (b *Builder) Len() int {
	return len(b.order)
}

// Fields returns copies of the fields in display order.
func (b *Builder) Fields() []schema.FormField {
	out := make([]schema.FormField, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.fields[id].Clone())
	}
	return out
}

// Field returns a copy of the field with the given id.
func (b *Builder) Field(id string) (schema.FormField, bool) {
	f, ok := b.fields[id]
	if !ok {
		return schema.FormField{}, false
	}
	return f.Clone(), true
}

// Selected returns the id of the selected field, or "".
func (b *Builder) Selected() string {
	return b.selected
}

// Select marks a field as selected. An empty id clears the selection.
func (b *Builder) Select(id string) error {
	if id != "" {
		if _, ok := b.fields[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	b.selected = id
	return nil
}

// Version counts the mutations applied since the session started.
func (b *Builder) Version() uint64 {
	return b.version
}

// Dirty reports whether the session holds mutations not yet saved.
func (b *Builder) Dirty() bool {
	return b.version != b.saved
}

// UpdateForm edits the form settings. The id and status are kept; status
// changes go through Publish and Unpublish.
func (b *Builder) UpdateForm(fn func(f *schema.Form)) {
	next := b.form.Clone()
	fn(&next)
	next.ID = b.form.ID
	next.Status = b.form.Status
	next.Normalize()
	b.form = next
	b.touch()
}

// AddField appends a new field of type t with the registry defaults, selects
// it and returns its id.
func (b *Builder) AddField(t schema.FieldType) (string, error) {
	f, err := fieldtype.NewField(t)
	if err != nil {
		return "", err
	}
	f.ID = b.uniqueID()
	f.FormID = b.form.ID
	f.SortOrder = len(b.order)
	b.fields[f.ID] = &f
	b.order = append(b.order, f.ID)
	b.selected = f.ID
	b.touch()
	return f.ID, nil
}

func (b *Builder) uniqueID() string {
	for {
		id := b.newID()
		if _, taken := b.fields[id]; !taken && id != "" {
			return id
		}
	}
}

// UpdateField applies m to a copy of the field and commits it when the
// result is valid. The id, form id and sort order cannot be changed. A type
// change to a layout type is refused while other fields' rules reference the
// field.
func (b *Builder) UpdateField(id string, m Mutation) error {
	cur, ok := b.fields[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := cur.Clone()
	m(&next)
	next.ID = cur.ID
	next.FormID = cur.FormID
	next.SortOrder = cur.SortOrder
	normalize(&next)
	if err := checkField(&next, b.find); err != nil {
		return err
	}
	if next.Type.IsLayout() && !cur.Type.IsLayout() {
		if ref := b.referencedBy(id); ref != "" {
			return fmt.Errorf("%w: field %s is referenced by %s and cannot become %s", ErrInvalidRule, id, ref, next.Type)
		}
	}
	b.fields[id] = &next
	b.touch()
	return nil
}

func (b *Builder) referencedBy(id string) string {
	for _, oid := range b.order {
		if oid != id && b.fields[oid].Logic.References(id) {
			return oid
		}
	}
	return ""
}

// DeleteField removes a field, closes the gap in the ordering, clears the
// selection if it pointed at the field, and drops every rule in other fields
// that referenced it. Fields left without rules become always visible. The
// last field of a published form cannot be deleted.
func (b *Builder) DeleteField(id string) error {
	if _, ok := b.fields[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if b.form.Status == schema.StatusPublished && len(b.order) == 1 {
		return fmt.Errorf("%w: %s is the last field of a published form", ErrPublishEmpty, id)
	}
	delete(b.fields, id)
	b.order = slices.DeleteFunc(b.order, func(s string) bool { return s == id })
	if b.selected == id {
		b.selected = ""
	}
	for _, oid := range b.order {
		f := b.fields[oid]
		if f.Logic.References(id) {
			f.Logic = f.Logic.Without(id)
		}
	}
	b.renumber()
	b.touch()
	return nil
}

// DuplicateField appends a copy of a field with a new id and the label
// suffixed " (Copy)". Rules are copied verbatim. The copy is selected and
// its id returned.
func (b *Builder) DuplicateField(id string) (string, error) {
	src, ok := b.fields[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := src.Clone()
	c.ID = b.uniqueID()
	c.Label = strings.TrimSpace(src.Label) + " (Copy)"
	c.SortOrder = len(b.order)
	b.fields[c.ID] = &c
	b.order = append(b.order, c.ID)
	b.selected = c.ID
	b.touch()
	return c.ID, nil
}

// Reorder moves a field to position, shifting the fields in between by one.
// Out-of-range positions are clamped.
func (b *Builder) Reorder(id string, position int) error {
	from := slices.Index(b.order, id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	to := max(0, min(position, len(b.order)-1))
	if from == to {
		return nil
	}
	b.order = slices.Delete(b.order, from, from+1)
	b.order = slices.Insert(b.order, to, id)
	b.renumber()
	b.touch()
	return nil
}

// MoveUp moves a field one position towards the start.
func (b *Builder) MoveUp(id string) error {
	i := slices.Index(b.order, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.Reorder(id, i-1)
}

// MoveDown moves a field one position towards the end.
func (b *Builder) MoveDown(id string) error {
	i := slices.Index(b.order, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.Reorder(id, i+1)
}

// Save hands the current snapshot to s. On success the session is clean up
// to the saved version; on failure nothing changes.
func (b *Builder) Save(ctx context.Context, s Saver) error {
	return b.commit(ctx, s, b.form.Status)
}

// Publish saves the form with status published. It is refused without
// calling s when the form has no fields.
func (b *Builder) Publish(ctx context.Context, s Saver) error {
	if len(b.order) == 0 {
		return ErrPublishEmpty
	}
	return b.commit(ctx, s, schema.StatusPublished)
}

// Unpublish saves the form with status draft.
func (b *Builder) Unpublish(ctx context.Context, s Saver) error {
	return b.commit(ctx, s, schema.StatusDraft)
}

func (b *Builder) commit(ctx context.Context, s Saver, status schema.Status) error {
	form := b.form.Clone()
	changed := form.Status != status
	form.Status = status
	v := b.version
	if changed {
		v++
	}
	if err := s.Save(ctx, form, b.Fields()); err != nil {
		return err
	}
	b.form.Status = status
	b.version = max(b.version, v)
	b.saved = v
	return nil
}
