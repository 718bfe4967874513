package util

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// DetectDriver returns the database/sql driver name for a DSN.
// Supported: postgres/postgresql and mysql URLs, and sqlite given as a
// file: URI, a sqlite3:// URL or a path ending in .db.
func DetectDriver(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "file:") || strings.HasSuffix(dsn, ".db") || dsn == ":memory:" {
		return "sqlite3", nil
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	switch parsedURL.Scheme {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unknown scheme: %s", parsedURL.Scheme)
	}
}

// DataSource converts a DSN into the form the driver expects. MySQL URLs
// become go-sql-driver DSNs with parseTime enabled; sqlite URLs lose their
// scheme. Other DSNs pass through.
func DataSource(driver, dsn string) (string, error) {
	switch driver {
	case "mysql":
		if !strings.HasPrefix(dsn, "mysql://") {
			return dsn, nil
		}
		u, err := url.Parse(dsn)
		if err != nil {
			return "", err
		}
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
		cfg.ParseTime = true
		for k, v := range u.Query() {
			if k == "parseTime" {
				continue
			}
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			cfg.Params[k] = v[0]
		}
		return cfg.FormatDSN(), nil
	case "sqlite3":
		for _, p := range []string{"sqlite3://", "sqlite://"} {
			if strings.HasPrefix(dsn, p) {
				return strings.TrimPrefix(dsn, p), nil
			}
		}
	}
	return dsn, nil
}
