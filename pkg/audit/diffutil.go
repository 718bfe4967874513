package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/faciam-dev/gcform/pkg/schema"
)

// NormalizeJSON formats and sorts keys so that JSON diffs are stable.
func NormalizeJSON(b []byte) string {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// encoding/json writes map keys sorted
	_ = enc.Encode(v)
	return strings.TrimRight(buf.String(), "\n")
}

// UnifiedDiff returns a unified diff of two JSON documents and counts of
// added and removed key lines.
func UnifiedDiff(beforeJSON, afterJSON []byte) (unified string, added, removed int) {
	var a, b []string
	if len(beforeJSON) > 0 {
		a = difflib.SplitLines(NormalizeJSON(beforeJSON) + "\n")
	}
	if len(afterJSON) > 0 {
		b = difflib.SplitLines(NormalizeJSON(afterJSON) + "\n")
	}
	diff := difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}
	s, _ := difflib.GetUnifiedDiffString(diff)
	added, removed = countChanges(s)
	return s, added, removed
}

// countChanges counts only JSON key lines in a unified diff.
func countChanges(unified string) (add, del int) {
	sc := bufio.NewScanner(strings.NewReader(unified))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if !strings.Contains(line, "\":") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			add++
		case strings.HasPrefix(line, "-"):
			del++
		}
	}
	return
}

// FieldChanges lists field ids that differ between two field lists.
type FieldChanges struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Moved   []string `json:"moved,omitempty"`
}

// Empty reports whether no field changed.
func (c FieldChanges) Empty() bool {
	return len(c.Added)+len(c.Removed)+len(c.Changed)+len(c.Moved) == 0
}

// CompareFields classifies the fields of two versions of a form. A field
// whose only difference is its sort order is reported as moved.
func CompareFields(before, after []schema.FormField) FieldChanges {
	old := make(map[string]schema.FormField, len(before))
	for _, f := range before {
		old[f.ID] = f
	}
	var res FieldChanges
	seen := make(map[string]bool, len(after))
	for _, f := range after {
		seen[f.ID] = true
		prev, ok := old[f.ID]
		if !ok {
			res.Added = append(res.Added, f.ID)
			continue
		}
		moved := prev.SortOrder != f.SortOrder
		prev.SortOrder = f.SortOrder
		switch {
		case !sameField(prev, f):
			res.Changed = append(res.Changed, f.ID)
		case moved:
			res.Moved = append(res.Moved, f.ID)
		}
	}
	for id := range old {
		if !seen[id] {
			res.Removed = append(res.Removed, id)
		}
	}
	sort.Strings(res.Removed)
	return res
}

// sameField compares the serialized forms, which also covers the settings
// variant behind its interface.
func sameField(a, b schema.FormField) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}
