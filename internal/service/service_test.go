package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/gcform/internal/audit"
	"github.com/faciam-dev/gcform/internal/events"
	"github.com/faciam-dev/gcform/internal/formcache"
	"github.com/faciam-dev/gcform/internal/store"
	"github.com/faciam-dev/gcform/pkg/builder"
	"github.com/faciam-dev/gcform/pkg/codec"
	"github.com/faciam-dev/gcform/pkg/schema"
	"github.com/faciam-dev/gcform/pkg/validation"
)

type recorded struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorded) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Memory, *recorded, *events.Dispatcher) {
	t.Helper()
	rec := &recorded{}
	sink := events.SinkFunc(func(_ context.Context, e events.Event) error {
		rec.mu.Lock()
		rec.events = append(rec.events, e)
		rec.mu.Unlock()
		return nil
	})
	d := events.NewDispatcher(events.Config{}, nil, sink)
	mem := store.NewMemory()
	cache, err := formcache.New(context.Background(), mem.ListPublished, 0)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithEvents(d), WithCache(cache), WithIDGenerator(seqIDs())}, opts...)
	return New(mem, opts...), mem, rec, d
}

func TestFormLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, mem, rec, d := newTestService(t)

	doc, err := svc.Create(ctx, "ana", schema.Form{Name: "Volunteer Signup"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := doc.Form.ID
	if doc.Form.Slug != "volunteer-signup" || doc.Form.Status != schema.StatusDraft {
		t.Fatalf("created form = %+v", doc.Form)
	}

	if _, err := svc.Publish(ctx, "ana", id); !errors.Is(err, builder.ErrPublishEmpty) {
		t.Fatalf("publish empty = %v", err)
	}

	doc, nameID, err := svc.AddField(ctx, "ana", id, schema.TypeText)
	if err != nil {
		t.Fatalf("AddField: %v", err)
	}
	doc, err = svc.UpdateField(ctx, "ana", id, nameID, json.RawMessage(`{"label":"Name","is_required":true,"min_length":2}`))
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	_, shiftID, err := svc.AddField(ctx, "ana", id, schema.TypeSelect)
	if err != nil {
		t.Fatalf("AddField select: %v", err)
	}
	doc, err = svc.MoveField(ctx, "ana", id, shiftID, 0)
	if err != nil {
		t.Fatalf("MoveField: %v", err)
	}
	if doc.Fields[0].ID != shiftID || doc.Fields[1].ID != nameID {
		t.Fatalf("order = %s, %s", doc.Fields[0].ID, doc.Fields[1].ID)
	}

	doc, err = svc.Publish(ctx, "ana", id)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if doc.Form.Status != schema.StatusPublished {
		t.Fatalf("status = %s", doc.Form.Status)
	}
	if _, fields, _ := mem.Load(ctx, id); len(fields) != 2 {
		t.Fatalf("stored fields = %d", len(fields))
	}

	opt := doc.Fields[0].Options[0].Value
	res, err := svc.Submit(ctx, "volunteer-signup", schema.Values{shiftID: opt, nameID: "A"}, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.OK() || res.Errors[0].Code() != validation.CodeMinLength {
		t.Fatalf("expected min_length failure, got %v", res.Errors)
	}
	res, err = svc.Submit(ctx, "volunteer-signup", schema.Values{shiftID: opt, nameID: "Ana", "ghost": 1}, false)
	if err != nil || !res.OK() {
		t.Fatalf("Submit valid = %v, %v", res.Errors, err)
	}
	if diff := cmp.Diff(schema.Values{shiftID: opt, nameID: "Ana"}, res.Payload); diff != "" {
		t.Fatalf("payload diff (-want +got)\n%s", diff)
	}

	if _, err := svc.Unpublish(ctx, "ana", id); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
	if _, err := svc.Submit(ctx, "volunteer-signup", schema.Values{}, false); !errors.Is(err, schema.ErrNotAccepting) {
		t.Fatalf("submit to draft = %v", err)
	}

	d.Wait()
	want := []string{
		events.FormSaved, events.FormSaved, events.FormSaved, events.FormSaved, events.FormSaved,
		events.FormPublished, events.SubmissionAccepted, events.FormUnpublished,
	}
	got := rec.names()
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	count := func(xs []string) map[string]int {
		m := map[string]int{}
		for _, x := range xs {
			m[x]++
		}
		return m
	}
	if diff := cmp.Diff(count(want), count(got)); diff != "" {
		t.Fatalf("events diff (-want +got)\n%s", diff)
	}
}

func TestSubmissionPolicy(t *testing.T) {
	ctx := context.Background()
	limit := 1
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(t, WithClock(func() time.Time { return now }))
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "RSVP", MaxSubmissions: &limit, RequiresAuth: true})
	if _, _, err := svc.AddField(ctx, "ana", doc.Form.ID, schema.TypeCheckbox); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if _, err := svc.Publish(ctx, "ana", doc.Form.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := svc.Submit(ctx, "rsvp", schema.Values{}, false); !errors.Is(err, schema.ErrNotAccepting) {
		t.Fatalf("anonymous submit = %v", err)
	}
	if res, err := svc.Submit(ctx, "rsvp", schema.Values{}, true); err != nil || !res.OK() {
		t.Fatalf("first submit = %v, %v", res.Errors, err)
	}
	if _, err := svc.Submit(ctx, "rsvp", schema.Values{}, true); !errors.Is(err, schema.ErrNotAccepting) {
		t.Fatalf("submit over limit = %v", err)
	}
	if _, err := svc.Submit(ctx, "nope", schema.Values{}, true); !IsNotFound(err) {
		t.Fatalf("unknown slug = %v", err)
	}
}

func TestRejectedMutationsLeaveFormUntouched(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "Poll"})
	id := doc.Form.ID
	doc, fid, _ := svc.AddField(ctx, "ana", id, schema.TypeRadio)

	tests := []struct {
		name  string
		patch string
		want  error
	}{
		{"empty options", `{"options":[]}`, builder.ErrEmptyOptions},
		{"duplicate options", `{"options":[{"value":"a","label":"A"},{"value":"a","label":"B"}]}`, builder.ErrDuplicateOption},
		{"self rule", `{"conditional_logic":{"action":"show","logic":"all","rules":[{"field_id":"` + fid + `","operator":"is_empty"}]}}`, builder.ErrInvalidRule},
		{"unknown type", `{"field_type":"hologram"}`, schema.ErrUnknownFieldType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdateField(ctx, "ana", id, fid, json.RawMessage(tt.patch)); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			after, err := svc.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if diff := cmp.Diff(doc, after); diff != "" {
				t.Fatalf("form changed (-want +got)\n%s", diff)
			}
		})
	}

	if _, err := svc.UpdateField(ctx, "ana", id, "missing", json.RawMessage(`{}`)); !IsNotFound(err) {
		t.Fatalf("missing field = %v", err)
	}
	if _, err := svc.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("missing form = %v", err)
	}
}

func TestReplaceAndDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "Intake"})
	id := doc.Form.ID
	doc, fid, _ := svc.AddField(ctx, "ana", id, schema.TypeEmail)

	doc, copyID, err := svc.DuplicateField(ctx, "ana", id, fid)
	if err != nil {
		t.Fatalf("DuplicateField: %v", err)
	}
	if len(doc.Fields) != 2 || doc.Fields[1].ID != copyID || doc.Fields[1].Type != schema.TypeEmail {
		t.Fatalf("fields after duplicate = %+v", doc.Fields)
	}

	bad := doc
	bad.Fields = append([]schema.FormField{}, doc.Fields...)
	bad.Fields[1].ID = bad.Fields[0].ID
	if _, err := svc.Replace(ctx, "ana", id, bad); !errors.Is(err, builder.ErrInvalidModel) {
		t.Fatalf("replace with duplicate ids = %v", err)
	}

	next := doc
	next.Form.Name = "Patient intake"
	next.Form.Status = schema.StatusPublished
	next.Fields = doc.Fields[:1]
	got, err := svc.Replace(ctx, "ana", id, next)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got.Form.Name != "Patient intake" || got.Form.Status != schema.StatusDraft || len(got.Fields) != 1 {
		t.Fatalf("replaced = %+v fields=%d", got.Form, len(got.Fields))
	}

	got, err = svc.UpdateForm(ctx, "ana", id, json.RawMessage(`{"success_message":"Thanks!","status":"published"}`))
	if err != nil {
		t.Fatalf("UpdateForm: %v", err)
	}
	if got.Form.SuccessMessage != "Thanks!" || got.Form.Status != schema.StatusDraft {
		t.Fatalf("updated form = %+v", got.Form)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, id); !IsNotFound(err) {
		t.Fatalf("Get deleted = %v", err)
	}
}

func TestVisibilityAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "Trip"})
	id := doc.Form.ID
	_, a, _ := svc.AddField(ctx, "ana", id, schema.TypeCheckbox)
	_, b, _ := svc.AddField(ctx, "ana", id, schema.TypeText)
	patch := fmt.Sprintf(`{"is_required":true,"conditional_logic":{"action":"show","logic":"all","rules":[{"field_id":%q,"operator":"is_not_empty"}]}}`, a)
	if _, err := svc.UpdateField(ctx, "ana", id, b, json.RawMessage(patch)); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}

	vis, err := svc.Visibility(ctx, id, schema.Values{a: false})
	if err != nil {
		t.Fatalf("Visibility: %v", err)
	}
	if !vis[a] || vis[b] {
		t.Fatalf("visibility = %v", vis)
	}
	res, err := svc.Validate(ctx, id, schema.Values{a: true})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.OK() || res.Errors[0].FieldID() != b {
		t.Fatalf("expected required error on %s, got %v", b, res.Errors)
	}
}

func TestConcurrentEditsAreSerialized(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := New(mem)
	doc, err := svc.Create(ctx, "ana", schema.Form{Name: "Busy"})
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.AddField(ctx, "ana", doc.Form.ID, schema.TypeNumber); err != nil {
				t.Errorf("AddField: %v", err)
			}
		}()
	}
	wg.Wait()
	got, _ := svc.Get(ctx, doc.Form.ID)
	if len(got.Fields) != 20 {
		t.Fatalf("fields = %d, want 20", len(got.Fields))
	}
	for i, f := range got.Fields {
		if f.SortOrder != i {
			t.Fatalf("field %d has sort order %d", i, f.SortOrder)
		}
	}
}

func TestRevisionsAreRecorded(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(":memory:", "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.DB().Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	svc := New(s, WithRevisions(&audit.Recorder{DB: s.DB(), Driver: s.Driver()}), WithIDGenerator(seqIDs()))
	doc, err := svc.Create(ctx, "ana", schema.Form{Name: "History"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := svc.AddField(ctx, "bo", doc.Form.ID, schema.TypeRating); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if _, err := svc.Publish(ctx, "bo", doc.Form.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	revs, err := svc.Revisions(ctx, doc.Form.ID, 0, true)
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	var actions []string
	for _, r := range revs {
		actions = append(actions, r.Action)
	}
	if diff := cmp.Diff([]string{audit.ActionPublish, audit.ActionUpdate, audit.ActionCreate}, actions); diff != "" {
		t.Fatalf("actions diff (-want +got)\n%s", diff)
	}
	if len(revs[1].Changes.Added) != 1 || revs[1].Actor != "bo" {
		t.Fatalf("update revision = %+v", revs[1])
	}
	if _, err := svc.Revisions(ctx, "missing", 0, false); !IsNotFound(err) {
		t.Fatalf("revisions of missing form = %v", err)
	}
}

func TestSlugsStayUnique(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	a, err := svc.Create(ctx, "ana", schema.Form{Name: "Gala Dinner"})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := svc.Create(ctx, "ana", schema.Form{Name: "Gala Dinner"})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if a.Form.Slug != "gala-dinner" || b.Form.Slug != "gala-dinner-2" {
		t.Fatalf("slugs = %q, %q", a.Form.Slug, b.Form.Slug)
	}
	c, _ := svc.Create(ctx, "ana", schema.Form{Name: "Other", Slug: "gala-dinner"})
	if c.Form.Slug != "gala-dinner-3" {
		t.Fatalf("explicit slug = %q", c.Form.Slug)
	}

	if _, _, err := svc.AddField(ctx, "ana", a.Form.ID, schema.TypeText); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Publish(ctx, "ana", a.Form.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateForm(ctx, "ana", b.Form.ID, json.RawMessage(`{"description":"Second seating"}`)); err != nil {
		t.Fatalf("edit b: %v", err)
	}
	if res, err := svc.Submit(ctx, "gala-dinner", schema.Values{}, false); err != nil || !res.OK() || res.FormID != a.Form.ID {
		t.Fatalf("submit after editing b = %+v, %v", res, err)
	}

	if _, err := svc.UpdateForm(ctx, "ana", b.Form.ID, json.RawMessage(`{"slug":"gala-dinner"}`)); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("slug change onto a = %v", err)
	}
	next := b
	next.Form.Slug = "gala-dinner"
	if _, err := svc.Replace(ctx, "ana", b.Form.ID, next); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("replace onto a = %v", err)
	}
	next.Form.Slug = ""
	got, err := svc.Replace(ctx, "ana", b.Form.ID, next)
	if err != nil || got.Form.Slug != "gala-dinner-2" {
		t.Fatalf("replace without slug = %q, %v", got.Form.Slug, err)
	}
	got, err = svc.UpdateForm(ctx, "ana", b.Form.ID, json.RawMessage(`{"slug":"gala-dinner-late"}`))
	if err != nil || got.Form.Slug != "gala-dinner-late" {
		t.Fatalf("free slug change = %q, %v", got.Form.Slug, err)
	}
}

func TestFieldTypeChangeThroughJSON(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "Feedback"})
	id := doc.Form.ID
	_, fid, _ := svc.AddField(ctx, "ana", id, schema.TypeText)

	tests := []struct {
		patch string
		want  schema.Settings
	}{
		{`{"field_type":"rating"}`, &schema.RatingSettings{MaxRating: 5}},
		{`{"field_type":"scale"}`, &schema.ScaleSettings{Min: 1, Max: 10}},
		{`{"field_type":"heading"}`, &schema.HeadingSettings{HeadingSize: "h2"}},
		{`{"field_type":"file"}`, &schema.FileSettings{MaxFiles: 1, MaxFileSize: 10}},
	}
	for _, tt := range tests {
		got, err := svc.UpdateField(ctx, "ana", id, fid, json.RawMessage(tt.patch))
		if err != nil {
			t.Fatalf("%s: %v", tt.patch, err)
		}
		if diff := cmp.Diff(tt.want, got.Fields[0].Settings); diff != "" {
			t.Fatalf("%s: settings diff (-want +got)\n%s", tt.patch, diff)
		}
	}

	var put struct {
		Form   schema.Form        `json:"form"`
		Fields []schema.FormField `json:"fields"`
	}
	body := `{"form":{"name":"Feedback"},"fields":[{"id":"r","field_type":"rating","label":"Rate the venue"}]}`
	if err := json.Unmarshal([]byte(body), &put); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Replace(ctx, "ana", id, codec.New(put.Form, put.Fields))
	if err != nil {
		t.Fatalf("replace with rating lacking settings: %v", err)
	}
	if diff := cmp.Diff(schema.Settings(&schema.RatingSettings{MaxRating: 5}), got.Fields[0].Settings); diff != "" {
		t.Fatalf("replaced settings diff (-want +got)\n%s", diff)
	}
}

func TestLastFieldOfPublishedForm(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "Sign-in sheet"})
	id := doc.Form.ID
	doc, fid, _ := svc.AddField(ctx, "ana", id, schema.TypeEmail)
	doc, err := svc.Publish(ctx, "ana", id)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.DeleteField(ctx, "ana", id, fid); !errors.Is(err, builder.ErrPublishEmpty) {
		t.Fatalf("delete last field = %v", err)
	}
	empty := doc
	empty.Fields = nil
	if _, err := svc.Replace(ctx, "ana", id, empty); !errors.Is(err, builder.ErrPublishEmpty) {
		t.Fatalf("replace with no fields = %v", err)
	}
	after, _ := svc.Get(ctx, id)
	if after.Form.Status != schema.StatusPublished || len(after.Fields) != 1 {
		t.Fatalf("form changed: status=%s fields=%d", after.Form.Status, len(after.Fields))
	}

	if _, err := svc.Unpublish(ctx, "ana", id); err != nil {
		t.Fatal(err)
	}
	if after, err = svc.DeleteField(ctx, "ana", id, fid); err != nil || len(after.Fields) != 0 {
		t.Fatalf("delete from draft = %d fields, %v", len(after.Fields), err)
	}
}

func TestLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	doc, _ := svc.Create(ctx, "ana", schema.Form{Name: "Short lived"})
	id := doc.Form.ID
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = svc.AddField(ctx, "ana", id, schema.TypeText)
		}()
	}
	wg.Wait()
	for i := 0; i < 5; i++ {
		if _, err := svc.UpdateForm(ctx, "ana", fmt.Sprintf("unknown-%d", i), json.RawMessage(`{}`)); !IsNotFound(err) {
			t.Fatalf("unknown form = %v", err)
		}
	}
	if err := svc.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	svc.mu.Lock()
	n := len(svc.locks)
	svc.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d lock entries left", n)
	}
}
