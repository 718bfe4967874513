// Package audit keeps the revision history of forms.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	diffutil "github.com/faciam-dev/gcform/pkg/audit"
	"github.com/faciam-dev/gcform/pkg/codec"
	"github.com/faciam-dev/gcform/pkg/metrics"
	"github.com/faciam-dev/gcform/pkg/schema"
)

// Actions recorded for a form.
const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionPublish   = "publish"
	ActionUnpublish = "unpublish"
)

// Revision is one recorded change of a form.
type Revision struct {
	ID        int64                 `json:"id"`
	FormID    string                `json:"form_id"`
	Actor     string                `json:"actor"`
	Action    string                `json:"action"`
	Added     int                   `json:"added"`
	Removed   int                   `json:"removed"`
	Changes   diffutil.FieldChanges `json:"changes"`
	Diff      string                `json:"diff,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// Recorder writes form revisions to the database. A nil Recorder or one
// without a DB records nothing.
type Recorder struct {
	DB     *sql.DB
	Driver string // postgres, mysql or sqlite3
	Prefix string

	now func() time.Time
}

func (r *Recorder) table() string { return r.Prefix + "form_revisions" }

func (r *Recorder) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}

// Write records the change from before to after. before is nil for a newly
// created form.
func (r *Recorder) Write(ctx context.Context, actor, action string, before, after *codec.Document) error {
	if r == nil || r.DB == nil {
		return nil
	}
	if after == nil {
		return fmt.Errorf("audit: revision of %s without a document", action)
	}
	var beforeJSON []byte
	var err error
	if before != nil {
		if beforeJSON, err = json.Marshal(before); err != nil {
			return err
		}
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return err
	}
	_, added, removed := diffutil.UnifiedDiff(beforeJSON, afterJSON)
	changes := diffutil.CompareFields(fieldsOf(before), after.Fields)
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return err
	}

	q := fmt.Sprintf("INSERT INTO %s(form_id, actor, action, before_json, after_json, added_count, removed_count, changes, created_at) VALUES (?,?,?,?,?,?,?,?,?)", r.table())
	if r.Driver == "postgres" {
		q = fmt.Sprintf("INSERT INTO %s(form_id, actor, action, before_json, after_json, added_count, removed_count, changes, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)", r.table())
	}
	var beforeArg any
	if beforeJSON != nil {
		beforeArg = string(beforeJSON)
	}
	if _, err := r.DB.ExecContext(ctx, q, after.Form.ID, actor, action, beforeArg, string(afterJSON), added, removed, string(changesJSON), r.clock()); err != nil {
		metrics.AuditErrors.WithLabelValues(action).Inc()
		return err
	}
	return nil
}

// List returns the newest revisions of a form first. limit <= 0 means 50.
// Unified diffs are rendered when withDiff is set.
func (r *Recorder) List(ctx context.Context, formID string, limit int, withDiff bool) ([]Revision, error) {
	if r == nil || r.DB == nil {
		return []Revision{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf("SELECT id, form_id, actor, action, before_json, after_json, added_count, removed_count, changes, created_at FROM %s WHERE form_id=? ORDER BY id DESC LIMIT ?", r.table())
	if r.Driver == "postgres" {
		q = fmt.Sprintf("SELECT id, form_id, actor, action, before_json, after_json, added_count, removed_count, changes, created_at FROM %s WHERE form_id=$1 ORDER BY id DESC LIMIT $2", r.table())
	}
	rows, err := r.DB.QueryContext(ctx, q, formID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res := []Revision{}
	for rows.Next() {
		var (
			rev           Revision
			before, after sql.NullString
			changes       sql.NullString
		)
		if err := rows.Scan(&rev.ID, &rev.FormID, &rev.Actor, &rev.Action, &before, &after, &rev.Added, &rev.Removed, &changes, &rev.CreatedAt); err != nil {
			return nil, err
		}
		if changes.Valid && changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &rev.Changes); err != nil {
				return nil, fmt.Errorf("revision %d: %w", rev.ID, err)
			}
		}
		if withDiff {
			rev.Diff, _, _ = diffutil.UnifiedDiff(nullBytes(before), nullBytes(after))
		}
		res = append(res, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func fieldsOf(d *codec.Document) []schema.FormField {
	if d == nil {
		return nil
	}
	return d.Fields
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
