package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/faciam-dev/gcform/pkg/schema"
)

// Memory is an in-process store used when no database is configured.
type Memory struct {
	mu    sync.RWMutex
	forms map[string]Record
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{forms: map[string]Record{}, now: func() time.Time { return time.Now().UTC() }}
}

func cloneRecord(r Record) Record {
	c := Record{Form: r.Form.Clone(), UpdatedAt: r.UpdatedAt, Fields: make([]schema.FormField, len(r.Fields))}
	for i, f := range r.Fields {
		c.Fields[i] = f.Clone()
	}
	return c
}

// Save implements builder.Saver.
func (m *Memory) Save(_ context.Context, form schema.Form, fields []schema.FormField) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.forms {
		if id != form.ID && r.Form.Slug == form.Slug {
			return fmt.Errorf("%w: %s is used by %s", ErrSlugTaken, form.Slug, id)
		}
	}
	m.forms[form.ID] = cloneRecord(Record{Form: form, Fields: fields, UpdatedAt: m.now()})
	return nil
}

// Load returns a copy of the stored form.
func (m *Memory) Load(_ context.Context, id string) (schema.Form, []schema.FormField, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.forms[id]
	if !ok {
		return schema.Form{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := cloneRecord(r)
	return c.Form, c.Fields, nil
}

// BySlug returns the form with the slug.
func (m *Memory) BySlug(_ context.Context, slug string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.forms {
		if r.Form.Slug == slug {
			return cloneRecord(r), nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
}

// List returns all forms ordered by name.
func (m *Memory) List(context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Summary, 0, len(m.forms))
	for _, r := range m.forms {
		res = append(res, Summary{
			ID: r.Form.ID, Slug: r.Form.Slug, Name: r.Form.Name, Status: r.Form.Status,
			Fields: len(r.Fields), UpdatedAt: r.UpdatedAt,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// ListPublished returns every published form.
func (m *Memory) ListPublished(context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Record
	for _, r := range m.forms {
		if r.Form.Status == schema.StatusPublished {
			res = append(res, cloneRecord(r))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.Before(res[j].UpdatedAt) })
	return res, nil
}

// CountPublished returns the number of published forms.
func (m *Memory) CountPublished(ctx context.Context) (int, error) {
	recs, _ := m.ListPublished(ctx)
	return len(recs), nil
}

// Delete removes a form.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.forms[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.forms, id)
	return nil
}
