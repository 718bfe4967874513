package builder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/gcform/pkg/schema"
)

func seqIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("f%d", n)
	})
}

func newBuilder(t *testing.T, types ...schema.FieldType) (*Builder, []string) {
	t.Helper()
	b := New(schema.Form{ID: "form1", Name: "Gala Signup"}, seqIDs())
	ids := make([]string, 0, len(types))
	for _, typ := range types {
		id, err := b.AddField(typ)
		if err != nil {
			t.Fatalf("add %s: %v", typ, err)
		}
		ids = append(ids, id)
	}
	return b, ids
}

func order(b *Builder) []string {
	var ids []string
	for _, f := range b.Fields() {
		ids = append(ids, f.ID)
	}
	return ids
}

func assertInvariants(t *testing.T, b *Builder) {
	t.Helper()
	fields := b.Fields()
	ids := make(map[string]schema.FieldType, len(fields))
	for i, f := range fields {
		if f.SortOrder != i {
			t.Fatalf("field %s sort_order=%d at position %d", f.ID, f.SortOrder, i)
		}
		if _, dup := ids[f.ID]; dup {
			t.Fatalf("duplicate id %s", f.ID)
		}
		ids[f.ID] = f.Type
	}
	for _, f := range fields {
		if f.Logic == nil {
			continue
		}
		if len(f.Logic.Rules) == 0 {
			t.Fatalf("field %s keeps empty conditional logic", f.ID)
		}
		for _, r := range f.Logic.Rules {
			typ, ok := ids[r.FieldID]
			if !ok || r.FieldID == f.ID || typ.IsLayout() {
				t.Fatalf("field %s has invalid rule target %s", f.ID, r.FieldID)
			}
		}
	}
}

func showWhen(target, value string) Mutation {
	return func(f *schema.FormField) {
		f.Logic = &schema.ConditionalLogic{
			Action: schema.ActionShow,
			Logic:  schema.MatchAll,
			Rules:  []schema.Rule{{FieldID: target, Operator: schema.OpEquals, Value: value}},
		}
	}
}

func TestAddFieldSelectDefaults(t *testing.T) {
	b, _ := newBuilder(t, schema.TypeText, schema.TypeEmail)
	id, err := b.AddField(schema.TypeSelect)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	f, _ := b.Field(id)
	want := []schema.Option{{Value: "option_1", Label: "Option 1"}, {Value: "option_2", Label: "Option 2"}}
	if diff := cmp.Diff(want, f.Options); diff != "" {
		t.Fatalf("options diff (-want +got)\n%s", diff)
	}
	if f.SortOrder != 2 {
		t.Fatalf("sort_order = %d, want 2", f.SortOrder)
	}
	if b.Selected() != id {
		t.Fatalf("selected = %q, want %q", b.Selected(), id)
	}
	if f.FormID != "form1" {
		t.Fatalf("form_id = %q", f.FormID)
	}
}

func TestAddFieldTypeDefaults(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeRating, schema.TypeScale, schema.TypeHeading)
	r, _ := b.Field(ids[0])
	if s := r.Settings.(*schema.RatingSettings); s.MaxRating != 5 {
		t.Fatalf("max_rating = %d", s.MaxRating)
	}
	sc, _ := b.Field(ids[1])
	if s := sc.Settings.(*schema.ScaleSettings); s.Min != 1 || s.Max != 10 {
		t.Fatalf("scale = %d..%d", s.Min, s.Max)
	}
	h, _ := b.Field(ids[2])
	if s := h.Settings.(*schema.HeadingSettings); s.HeadingSize != "h2" {
		t.Fatalf("heading_size = %q", s.HeadingSize)
	}
	if _, err := b.AddField("hologram"); !errors.Is(err, schema.ErrUnknownFieldType) {
		t.Fatalf("unknown type err = %v", err)
	}
}

func TestReorder(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeText, schema.TypeEmail, schema.TypePhone)
	if err := b.Reorder(ids[2], 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if diff := cmp.Diff([]string{ids[2], ids[0], ids[1]}, order(b)); diff != "" {
		t.Fatalf("order diff (-want +got)\n%s", diff)
	}
	assertInvariants(t, b)

	if err := b.Reorder(ids[2], 99); err != nil {
		t.Fatalf("reorder clamp: %v", err)
	}
	if diff := cmp.Diff([]string{ids[0], ids[1], ids[2]}, order(b)); diff != "" {
		t.Fatalf("clamped order diff (-want +got)\n%s", diff)
	}
	if err := b.Reorder(ids[1], -5); err != nil {
		t.Fatalf("reorder clamp low: %v", err)
	}
	if got := order(b)[0]; got != ids[1] {
		t.Fatalf("first = %s, want %s", got, ids[1])
	}
	if err := b.Reorder("nope", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestMoveUpDown(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeText, schema.TypeEmail, schema.TypePhone)
	if err := b.MoveDown(ids[0]); err != nil {
		t.Fatal(err)
	}
	if err := b.MoveUp(ids[2]); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{ids[1], ids[2], ids[0]}, order(b)); diff != "" {
		t.Fatalf("order diff (-want +got)\n%s", diff)
	}
	v := b.Version()
	if err := b.MoveUp(ids[1]); err != nil {
		t.Fatal(err)
	}
	if b.Version() != v {
		t.Fatalf("moving the first field up should not count as a change")
	}
}

func TestDeleteFieldSanitizesRules(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeSelect, schema.TypeText, schema.TypeText)
	a, bid, c := ids[0], ids[1], ids[2]
	if err := b.UpdateField(bid, showWhen(a, "option_1")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := b.UpdateField(c, func(f *schema.FormField) {
		f.Logic = &schema.ConditionalLogic{Action: schema.ActionHide, Logic: schema.MatchAny, Rules: []schema.Rule{
			{FieldID: a, Operator: schema.OpIsEmpty},
			{FieldID: bid, Operator: schema.OpContains, Value: "x"},
		}}
	}); err != nil {
		t.Fatalf("update c: %v", err)
	}
	if err := b.Select(a); err != nil {
		t.Fatal(err)
	}

	if err := b.DeleteField(a); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fb, _ := b.Field(bid)
	if fb.Logic != nil {
		t.Fatalf("expected logic cleared, got %+v", fb.Logic)
	}
	fc, _ := b.Field(c)
	want := []schema.Rule{{FieldID: bid, Operator: schema.OpContains, Value: "x"}}
	if diff := cmp.Diff(want, fc.Logic.Rules); diff != "" {
		t.Fatalf("rules diff (-want +got)\n%s", diff)
	}
	if b.Selected() != "" {
		t.Fatalf("selection not cleared")
	}
	assertInvariants(t, b)

	before := b.Fields()
	v := b.Version()
	if err := b.DeleteField(a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if diff := cmp.Diff(before, b.Fields()); diff != "" {
		t.Fatalf("second delete changed model (-want +got)\n%s", diff)
	}
	if b.Version() != v {
		t.Fatalf("second delete bumped version")
	}
}

func TestDuplicateField(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeRadio, schema.TypeText, schema.TypeEmail)
	if err := b.UpdateField(ids[1], showWhen(ids[0], "option_2")); err != nil {
		t.Fatal(err)
	}
	dup, err := b.DuplicateField(ids[1])
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	d, _ := b.Field(dup)
	src, _ := b.Field(ids[1])
	if d.Label != src.Label+" (Copy)" {
		t.Fatalf("label = %q", d.Label)
	}
	if d.SortOrder != 3 {
		t.Fatalf("sort_order = %d, want 3", d.SortOrder)
	}
	if d.Logic.Rules[0].FieldID != ids[0] {
		t.Fatalf("duplicate rule retargeted to %s", d.Logic.Rules[0].FieldID)
	}
	// the copy must not share memory with the original
	if err := b.UpdateField(dup, func(f *schema.FormField) { f.Logic.Rules[0].Value = "option_1" }); err != nil {
		t.Fatal(err)
	}
	src, _ = b.Field(ids[1])
	if src.Logic.Rules[0].Value != "option_2" {
		t.Fatalf("original rule mutated through copy")
	}
	if _, err := b.DuplicateField("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	assertInvariants(t, b)
}

func TestUpdateFieldRejectsInvalid(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeSelect, schema.TypeText, schema.TypeHeading)
	sel, txt, head := ids[0], ids[1], ids[2]
	tests := []struct {
		name string
		id   string
		m    Mutation
		want error
	}{
		{"self reference", txt, showWhen(txt, "a"), ErrInvalidRule},
		{"unknown target", txt, showWhen("ghost", "a"), ErrInvalidRule},
		{"layout target", txt, showWhen(head, "a"), ErrInvalidRule},
		{"missing value", txt, func(f *schema.FormField) {
			f.Logic = &schema.ConditionalLogic{Action: schema.ActionShow, Logic: schema.MatchAll,
				Rules: []schema.Rule{{FieldID: sel, Operator: schema.OpGreaterThan}}}
		}, ErrInvalidRule},
		{"bad operator", txt, func(f *schema.FormField) {
			f.Logic = &schema.ConditionalLogic{Action: schema.ActionShow, Logic: schema.MatchAll,
				Rules: []schema.Rule{{FieldID: sel, Operator: "matches", Value: "x"}}}
		}, ErrInvalidRule},
		{"duplicate option", sel, func(f *schema.FormField) {
			f.Options = append(f.Options, schema.Option{Value: "option_1", Label: "Again"})
		}, ErrDuplicateOption},
		{"empty options", sel, func(f *schema.FormField) { f.Options = nil }, ErrEmptyOptions},
		{"bad pattern", txt, func(f *schema.FormField) { f.Pattern = "([a-z" }, ErrInvalidField},
		{"min above max", txt, func(f *schema.FormField) {
			lo, hi := 5, 2
			f.MinLength, f.MaxLength = &lo, &hi
		}, ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := b.Fields()
			v := b.Version()
			err := b.UpdateField(tt.id, tt.m)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if diff := cmp.Diff(before, b.Fields()); diff != "" {
				t.Fatalf("rejected update changed model (-want +got)\n%s", diff)
			}
			if b.Version() != v {
				t.Fatalf("rejected update bumped version")
			}
		})
	}
	if err := b.UpdateField("ghost", func(*schema.FormField) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestUpdateFieldKeepsIdentity(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeText, schema.TypeEmail)
	err := b.UpdateField(ids[1], func(f *schema.FormField) {
		f.ID = "hijack"
		f.SortOrder = 9
		f.Label = "Work email"
		f.Width = schema.WidthHalf
	})
	if err != nil {
		t.Fatal(err)
	}
	f, ok := b.Field(ids[1])
	if !ok || f.SortOrder != 1 || f.Label != "Work email" || f.Width != schema.WidthHalf {
		t.Fatalf("unexpected field %+v", f)
	}
	if _, ok := b.Field("hijack"); ok {
		t.Fatalf("id changed")
	}
}

func TestUpdateFieldTypeChange(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeText, schema.TypeSelect)
	if err := b.UpdateField(ids[1], showWhen(ids[0], "yes")); err != nil {
		t.Fatal(err)
	}
	if err := b.UpdateField(ids[0], func(f *schema.FormField) { f.Type = schema.TypeDivider }); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("err = %v", err)
	}
	if err := b.UpdateField(ids[1], func(f *schema.FormField) { f.Type = schema.TypeRating }); err != nil {
		t.Fatal(err)
	}
	f, _ := b.Field(ids[1])
	if f.Options != nil {
		t.Fatalf("options kept on rating field")
	}
	if s, ok := f.Settings.(*schema.RatingSettings); !ok || s.MaxRating != 5 {
		t.Fatalf("settings = %#v", f.Settings)
	}
}

type recordingSaver struct {
	calls  int
	err    error
	form   schema.Form
	fields []schema.FormField
}

func (s *recordingSaver) Save(_ context.Context, form schema.Form, fields []schema.FormField) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.form, s.fields = form, fields
	return nil
}

func TestSaveAndDirty(t *testing.T) {
	ctx := context.Background()
	b, _ := newBuilder(t)
	if b.Dirty() {
		t.Fatalf("new session is dirty")
	}
	s := &recordingSaver{}
	if err := b.Publish(ctx, s); !errors.Is(err, ErrPublishEmpty) {
		t.Fatalf("publish empty err = %v", err)
	}
	if s.calls != 0 {
		t.Fatalf("saver called for empty publish")
	}

	if _, err := b.AddField(schema.TypeText); err != nil {
		t.Fatal(err)
	}
	if !b.Dirty() {
		t.Fatalf("expected dirty after add")
	}

	s.err = errors.New("boom")
	if err := b.Save(ctx, s); err == nil {
		t.Fatalf("expected save error")
	}
	if !b.Dirty() {
		t.Fatalf("failed save cleared dirty")
	}

	s.err = nil
	if err := b.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if b.Dirty() {
		t.Fatalf("dirty after save")
	}
	if len(s.fields) != 1 || s.form.Status != schema.StatusDraft {
		t.Fatalf("saved %d fields, status %s", len(s.fields), s.form.Status)
	}

	if err := b.Publish(ctx, s); err != nil {
		t.Fatal(err)
	}
	if s.form.Status != schema.StatusPublished || b.Form().Status != schema.StatusPublished {
		t.Fatalf("status not published")
	}
	if b.Dirty() {
		t.Fatalf("dirty after publish")
	}

	s.err = errors.New("offline")
	if err := b.Unpublish(ctx, s); err == nil {
		t.Fatal("expected error")
	}
	if b.Form().Status != schema.StatusPublished {
		t.Fatalf("failed unpublish changed status")
	}
}

func TestUpdateFormKeepsStatus(t *testing.T) {
	b, _ := newBuilder(t, schema.TypeText)
	b.UpdateForm(func(f *schema.Form) {
		f.Status = schema.StatusPublished
		f.ID = "other"
		f.NotificationEmails = []string{"a@x.org", "A@x.org ", "", "b@x.org"}
	})
	f := b.Form()
	if f.Status != schema.StatusDraft || f.ID != "form1" {
		t.Fatalf("form = %+v", f)
	}
	if diff := cmp.Diff([]string{"a@x.org", "b@x.org"}, f.NotificationEmails); diff != "" {
		t.Fatalf("emails diff (-want +got)\n%s", diff)
	}
	if !b.Dirty() {
		t.Fatalf("expected dirty")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	b, ids := newBuilder(t, schema.TypeSelect, schema.TypeText, schema.TypeHeading, schema.TypeCheckboxes)
	if err := b.UpdateField(ids[1], showWhen(ids[0], "option_1")); err != nil {
		t.Fatal(err)
	}
	if err := b.Reorder(ids[3], 0); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(b.Form(), b.Fields())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(b.Fields(), loaded.Fields()); diff != "" {
		t.Fatalf("round trip diff (-want +got)\n%s", diff)
	}
	if loaded.Dirty() {
		t.Fatalf("loaded session is dirty")
	}
}

func TestLoadRepairsAndRejects(t *testing.T) {
	text := func(id string, order int) schema.FormField {
		return schema.FormField{ID: id, Type: schema.TypeText, Label: id, SortOrder: order, Settings: &schema.InputSettings{}}
	}
	a, c := text("a", 4), text("c", 9)
	c.Logic = &schema.ConditionalLogic{Action: schema.ActionShow, Logic: schema.MatchAll,
		Rules: []schema.Rule{{FieldID: "deleted", Operator: schema.OpIsNotEmpty}}}
	b, err := Load(schema.Form{ID: "f"}, []schema.FormField{c, a})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, order(b)); diff != "" {
		t.Fatalf("order diff (-want +got)\n%s", diff)
	}
	assertInvariants(t, b)

	if _, err := Load(schema.Form{ID: "f"}, []schema.FormField{a, a}); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("duplicate ids err = %v", err)
	}
	self := text("s", 0)
	self.Logic = &schema.ConditionalLogic{Action: schema.ActionShow, Logic: schema.MatchAll,
		Rules: []schema.Rule{{FieldID: "s", Operator: schema.OpIsEmpty}}}
	if _, err := Load(schema.Form{ID: "f"}, []schema.FormField{self}); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("self rule err = %v", err)
	}
}

func TestLoadExtremeSortOrders(t *testing.T) {
	field := func(id string, order int) schema.FormField {
		return schema.FormField{ID: id, Type: schema.TypeText, Label: id, SortOrder: order, Settings: &schema.InputSettings{}}
	}
	in := []schema.FormField{field("max", math.MaxInt), field("min", math.MinInt), field("zero", 0), field("neg", -1)}
	b, err := Load(schema.Form{ID: "f"}, in)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"min", "neg", "zero", "max"}, order(b)); diff != "" {
		t.Fatalf("order diff (-want +got)\n%s", diff)
	}
	assertInvariants(t, b)
}

func TestDeleteLastFieldOfPublishedForm(t *testing.T) {
	ctx := context.Background()
	b, ids := newBuilder(t, schema.TypeText, schema.TypeEmail)
	s := &recordingSaver{}
	if err := b.Publish(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := b.DeleteField(ids[0]); err != nil {
		t.Fatalf("delete with a field left: %v", err)
	}
	if err := b.DeleteField(ids[1]); !errors.Is(err, ErrPublishEmpty) {
		t.Fatalf("delete last published field err = %v", err)
	}
	if diff := cmp.Diff([]string{ids[1]}, order(b)); diff != "" {
		t.Fatalf("refused delete changed fields (-want +got)\n%s", diff)
	}

	if err := b.Unpublish(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := b.DeleteField(ids[1]); err != nil {
		t.Fatalf("delete last draft field: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("len = %d", b.Len())
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []schema.FieldType{schema.TypeText, schema.TypeSelect, schema.TypeCheckboxes, schema.TypeNumber, schema.TypeHeading}
	b, _ := newBuilder(t)
	pick := func() string {
		ids := order(b)
		if len(ids) == 0 {
			return "none"
		}
		return ids[rng.Intn(len(ids))]
	}
	for i := 0; i < 500; i++ {
		switch rng.Intn(5) {
		case 0, 1:
			_, _ = b.AddField(types[rng.Intn(len(types))])
		case 2:
			_ = b.DeleteField(pick())
		case 3:
			_, _ = b.DuplicateField(pick())
		case 4:
			_ = b.Reorder(pick(), rng.Intn(12)-2)
		}
		if id, target := pick(), pick(); id != target {
			_ = b.UpdateField(id, func(f *schema.FormField) {
				f.Logic = &schema.ConditionalLogic{Action: schema.ActionShow, Logic: schema.MatchAny,
					Rules: []schema.Rule{{FieldID: target, Operator: schema.OpIsNotEmpty}}}
			})
		}
		assertInvariants(t, b)
	}
}
