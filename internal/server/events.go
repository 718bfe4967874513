package server

import (
	"database/sql"

	"github.com/faciam-dev/gcform/internal/events"
	"github.com/faciam-dev/gcform/internal/logger"
	pkgutil "github.com/faciam-dev/gcform/pkg/util"
)

// Events builds the event dispatcher from the YAML file named by
// FORM_EVENTS_CONFIG. Failed deliveries go to the events_failed table when
// db is set. The returned func closes the sinks.
func Events(db *sql.DB, driver, tablePrefix string) (*events.Dispatcher, func() error, error) {
	cfg, err := events.LoadConfig(pkgutil.GetEnv("FORM_EVENTS_CONFIG", ""))
	if err != nil {
		return nil, nil, err
	}
	var dlq events.DLQ
	if db != nil {
		dlq = &events.SQLDLQ{DB: db, Driver: driver, TablePrefix: tablePrefix}
	}
	d, closeFn, err := events.Build(cfg, dlq)
	if err != nil {
		return nil, nil, err
	}
	logger.L.Info("event sinks", "count", d.Len())
	return d, closeFn, nil
}
