package audit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/gcform/pkg/schema"
)

func TestUnifiedDiffCountsKeys(t *testing.T) {
	before := []byte(`{"name":"Gala","status":"draft"}`)
	after := []byte(`{"status":"published","name":"Gala","slug":"gala"}`)
	unified, added, removed := UnifiedDiff(before, after)
	if added != 2 || removed != 1 {
		t.Fatalf("added=%d removed=%d\n%s", added, removed, unified)
	}
	if !strings.Contains(unified, `+  "slug": "gala"`) {
		t.Fatalf("diff missing slug line:\n%s", unified)
	}
	if _, a, r := UnifiedDiff(nil, before); a != 2 || r != 0 {
		t.Fatalf("creation diff added=%d removed=%d", a, r)
	}
}

func TestNormalizeJSONStable(t *testing.T) {
	a := NormalizeJSON([]byte(`{"b":1,"a":{"d":2,"c":3}}`))
	b := NormalizeJSON([]byte(`{"a":{"c":3,"d":2},"b":1}`))
	if a != b {
		t.Fatalf("normalized differ:\n%s\n%s", a, b)
	}
	if NormalizeJSON([]byte("not json")) != "not json" {
		t.Fatalf("invalid JSON should pass through")
	}
}

func TestCompareFields(t *testing.T) {
	f := func(id string, order int, label string) schema.FormField {
		return schema.FormField{ID: id, Type: schema.TypeText, Label: label, SortOrder: order, Settings: &schema.InputSettings{}}
	}
	before := []schema.FormField{f("a", 0, "A"), f("b", 1, "B"), f("c", 2, "C")}
	after := []schema.FormField{f("b", 0, "B"), f("c", 1, "C!"), f("d", 2, "D")}
	got := CompareFields(before, after)
	want := FieldChanges{Added: []string{"d"}, Removed: []string{"a"}, Changed: []string{"c"}, Moved: []string{"b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes diff (-want +got)\n%s", diff)
	}
	if !CompareFields(before, before).Empty() {
		t.Fatalf("identical lists reported changes")
	}
}
