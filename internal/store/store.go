// Package store persists forms and their ordered fields.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/faciam-dev/gcform/pkg/schema"
)

// ErrNotFound is returned for unknown form ids or slugs.
var ErrNotFound = errors.New("form not found")

// ErrSlugTaken is returned when saving a form whose slug belongs to another
// form.
var ErrSlugTaken = errors.New("slug already in use")

// Summary is a form listing row.
type Summary struct {
	ID        string        `json:"id"`
	Slug      string        `json:"slug"`
	Name      string        `json:"name"`
	Status    schema.Status `json:"status"`
	Fields    int           `json:"fields"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Record is a stored form with its fields in order.
type Record struct {
	Form      schema.Form
	Fields    []schema.FormField
	UpdatedAt time.Time
}

// SQLStore stores forms in an SQL database. The forms table keeps the form
// settings as a JSON document next to indexed columns; each field is a row
// holding its JSON definition.
type SQLStore struct {
	db     *sql.DB
	driver string
	prefix string
	now    func() time.Time
}

// New returns a store for db. driver is postgres, mysql or sqlite3 and
// prefix is prepended to every table name.
func New(db *sql.DB, driver, prefix string) *SQLStore {
	return &SQLStore{db: db, driver: driver, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

// DB returns the underlying connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Driver returns the driver name the store was created with.
func (s *SQLStore) Driver() string { return s.driver }

// Prefix returns the table prefix.
func (s *SQLStore) Prefix() string { return s.prefix }

func (s *SQLStore) table(name string) string {
	return s.prefix + name
}

// ph returns the n-th (1-based) bind placeholder for the driver.
func (s *SQLStore) ph(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Save replaces the stored form and its fields in one transaction. It
// implements builder.Saver.
func (s *SQLStore) Save(ctx context.Context, form schema.Form, fields []schema.FormField) error {
	doc, err := json.Marshal(form)
	if err != nil {
		return err
	}
	defs := make([][]byte, len(fields))
	for i, f := range fields {
		if defs[i], err = json.Marshal(f); err != nil {
			return fmt.Errorf("encode field %s: %w", f.ID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	forms := s.table("forms")
	var owner string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE slug=%s AND id<>%s`, forms, s.ph(1), s.ph(2)), form.Slug, form.ID).Scan(&owner)
	switch {
	case err == nil:
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s is used by %s", ErrSlugTaken, form.Slug, owner)
	case !errors.Is(err, sql.ErrNoRows):
		_ = tx.Rollback()
		return fmt.Errorf("check slug %s: %w", form.Slug, err)
	}
	var upsert string
	switch s.driver {
	case "postgres":
		upsert = fmt.Sprintf(`INSERT INTO %s (id, slug, name, status, document, updated_at) VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO UPDATE SET slug=EXCLUDED.slug, name=EXCLUDED.name, status=EXCLUDED.status, document=EXCLUDED.document, updated_at=EXCLUDED.updated_at`, forms)
	case "mysql":
		upsert = fmt.Sprintf("INSERT INTO %s (id, slug, name, status, document, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE slug=VALUES(slug), name=VALUES(name), status=VALUES(status), document=VALUES(document), updated_at=VALUES(updated_at)", forms)
	default:
		upsert = fmt.Sprintf(`INSERT INTO %s (id, slug, name, status, document, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO UPDATE SET slug=excluded.slug, name=excluded.name, status=excluded.status, document=excluded.document, updated_at=excluded.updated_at`, forms)
	}
	if _, err := tx.ExecContext(ctx, upsert, form.ID, form.Slug, form.Name, string(form.Status), string(doc), s.now()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save form %s: %w", form.ID, err)
	}

	fieldsTbl := s.table("form_fields")
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE form_id=%s`, fieldsTbl, s.ph(1)), form.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear fields of %s: %w", form.ID, err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (form_id, id, sort_order, field_type, label, definition) VALUES (%s, %s, %s, %s, %s, %s)`,
		fieldsTbl, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	for i, f := range fields {
		if _, err := tx.ExecContext(ctx, insert, form.ID, f.ID, f.SortOrder, string(f.Type), f.Label, string(defs[i])); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save field %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// Load returns a form and its fields ordered by sort_order.
func (s *SQLStore) Load(ctx context.Context, id string) (schema.Form, []schema.FormField, error) {
	rec, err := s.load(ctx, "id", id)
	if err != nil {
		return schema.Form{}, nil, err
	}
	return rec.Form, rec.Fields, nil
}

// BySlug returns the form with the given slug.
func (s *SQLStore) BySlug(ctx context.Context, slug string) (Record, error) {
	return s.load(ctx, "slug", slug)
}

func (s *SQLStore) load(ctx context.Context, col, key string) (Record, error) {
	q := fmt.Sprintf(`SELECT document, updated_at FROM %s WHERE %s=%s ORDER BY updated_at DESC LIMIT 1`, s.table("forms"), col, s.ph(1))
	var (
		doc string
		rec Record
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&doc, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(doc), &rec.Form); err != nil {
		return Record{}, fmt.Errorf("decode form %s: %w", key, err)
	}
	rec.Fields, err = s.fields(ctx, rec.Form.ID)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLStore) fields(ctx context.Context, formID string) ([]schema.FormField, error) {
	q := fmt.Sprintf(`SELECT definition FROM %s WHERE form_id=%s ORDER BY sort_order, id`, s.table("form_fields"), s.ph(1))
	rows, err := s.db.QueryContext(ctx, q, formID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res := []schema.FormField{}
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return nil, err
		}
		var f schema.FormField
		if err := json.Unmarshal([]byte(def), &f); err != nil {
			return nil, fmt.Errorf("decode field of %s: %w", formID, err)
		}
		res = append(res, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// List returns all forms ordered by name.
func (s *SQLStore) List(ctx context.Context) ([]Summary, error) {
	q := fmt.Sprintf(`SELECT f.id, f.slug, f.name, f.status, f.updated_at, COUNT(ff.id) FROM %s f LEFT JOIN %s ff ON ff.form_id = f.id GROUP BY f.id, f.slug, f.name, f.status, f.updated_at ORDER BY f.name, f.id`,
		s.table("forms"), s.table("form_fields"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res := []Summary{}
	for rows.Next() {
		var (
			sum    Summary
			status string
		)
		if err := rows.Scan(&sum.ID, &sum.Slug, &sum.Name, &status, &sum.UpdatedAt, &sum.Fields); err != nil {
			return nil, err
		}
		sum.Status = schema.Status(status)
		res = append(res, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ListPublished returns every published form with its fields.
func (s *SQLStore) ListPublished(ctx context.Context) ([]Record, error) {
	q := fmt.Sprintf(`SELECT document, updated_at FROM %s WHERE status=%s ORDER BY updated_at`, s.table("forms"), s.ph(1))
	rows, err := s.db.QueryContext(ctx, q, string(schema.StatusPublished))
	if err != nil {
		return nil, err
	}
	var res []Record
	for rows.Next() {
		var (
			doc string
			rec Record
		)
		if err := rows.Scan(&doc, &rec.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(doc), &rec.Form); err != nil {
			_ = rows.Close()
			return nil, err
		}
		res = append(res, rec)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	// the cursor must be closed first when the pool holds one connection
	for i := range res {
		if res[i].Fields, err = s.fields(ctx, res[i].Form.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// CountPublished returns the number of published forms.
func (s *SQLStore) CountPublished(ctx context.Context) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status=%s`, s.table("forms"), s.ph(1))
	var n int
	if err := s.db.QueryRowContext(ctx, q, string(schema.StatusPublished)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes a form and its fields.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE form_id=%s`, s.table("form_fields"), s.ph(1)), id); err != nil {
		_ = tx.Rollback()
		return err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=%s`, s.table("forms"), s.ph(1)), id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}
