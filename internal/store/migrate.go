package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/faciam-dev/gcform/pkg/util"
)

// Open detects the driver from dsn, opens the database and returns a store.
func Open(dsn, prefix string) (*SQLStore, error) {
	driver, err := util.DetectDriver(dsn)
	if err != nil {
		return nil, err
	}
	source, err := util.DataSource(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	return New(db, driver, prefix), nil
}

// Migrate creates the form, field, revision and failed-event tables when
// missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.ddl() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) ddl() []string {
	forms, fields, revs, dlq := s.table("forms"), s.table("form_fields"), s.table("form_revisions"), s.table("events_failed")
	switch s.driver {
	case "postgres":
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(64) PRIMARY KEY,
    slug VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    status VARCHAR(16) NOT NULL,
    document TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`, forms),
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_slug_key ON %s (slug)`, forms, forms),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    form_id VARCHAR(64) NOT NULL,
    id VARCHAR(64) NOT NULL,
    sort_order INTEGER NOT NULL,
    field_type VARCHAR(32) NOT NULL,
    label TEXT NOT NULL,
    definition TEXT NOT NULL,
    PRIMARY KEY (form_id, id)
)`, fields),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    form_id VARCHAR(64) NOT NULL,
    actor VARCHAR(255) NOT NULL,
    action VARCHAR(32) NOT NULL,
    before_json TEXT,
    after_json TEXT,
    added_count INTEGER NOT NULL DEFAULT 0,
    removed_count INTEGER NOT NULL DEFAULT 0,
    changes TEXT,
    created_at TIMESTAMPTZ NOT NULL
)`, revs),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(64) NOT NULL,
    subject VARCHAR(64) NOT NULL,
    payload TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    last_error TEXT,
    failed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, dlq),
		}
	case "mysql":
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(64) PRIMARY KEY,
    slug VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    status VARCHAR(16) NOT NULL,
    document LONGTEXT NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    UNIQUE KEY slug_key (slug)
)`, forms),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    form_id VARCHAR(64) NOT NULL,
    id VARCHAR(64) NOT NULL,
    sort_order INT NOT NULL,
    field_type VARCHAR(32) NOT NULL,
    label TEXT NOT NULL,
    definition LONGTEXT NOT NULL,
    PRIMARY KEY (form_id, id)
)`, fields),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    form_id VARCHAR(64) NOT NULL,
    actor VARCHAR(255) NOT NULL,
    action VARCHAR(32) NOT NULL,
    before_json LONGTEXT,
    after_json LONGTEXT,
    added_count INT NOT NULL DEFAULT 0,
    removed_count INT NOT NULL DEFAULT 0,
    changes TEXT,
    created_at DATETIME(6) NOT NULL,
    INDEX form_idx (form_id)
)`, revs),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(64) NOT NULL,
    subject VARCHAR(64) NOT NULL,
    payload LONGTEXT NOT NULL,
    attempts INT NOT NULL,
    last_error TEXT,
    failed_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`, dlq),
		}
	default:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    document TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`, forms),
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_slug_key ON %s (slug)`, forms, forms),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    form_id TEXT NOT NULL,
    id TEXT NOT NULL,
    sort_order INTEGER NOT NULL,
    field_type TEXT NOT NULL,
    label TEXT NOT NULL,
    definition TEXT NOT NULL,
    PRIMARY KEY (form_id, id)
)`, fields),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    form_id TEXT NOT NULL,
    actor TEXT NOT NULL,
    action TEXT NOT NULL,
    before_json TEXT,
    after_json TEXT,
    added_count INTEGER NOT NULL DEFAULT 0,
    removed_count INTEGER NOT NULL DEFAULT 0,
    changes TEXT,
    created_at TIMESTAMP NOT NULL
)`, revs),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    subject TEXT NOT NULL,
    payload TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    last_error TEXT,
    failed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, dlq),
		}
	}
}
