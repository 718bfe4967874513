package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/faciam-dev/gcform/internal/audit"
	"github.com/faciam-dev/gcform/internal/formcache"
	"github.com/faciam-dev/gcform/internal/logger"
	"github.com/faciam-dev/gcform/internal/server"
	"github.com/faciam-dev/gcform/internal/service"
	"github.com/faciam-dev/gcform/internal/store"
	"github.com/faciam-dev/gcform/pkg/metrics"
	"github.com/faciam-dev/gcform/pkg/util"
)

// repository is what the server needs from either store.
type repository interface {
	service.Repository
	ListPublished(ctx context.Context) ([]store.Record, error)
	CountPublished(ctx context.Context) (int, error)
}

func main() {
	dsn := flag.String("dsn", util.GetEnv("FORM_DSN", ""), "database DSN; empty keeps forms in memory")
	driver := flag.String("driver", "", "database driver (postgres, mysql, sqlite3); detected from the DSN when empty")
	tblPrefix := flag.String("table-prefix", util.GetEnv("TABLE_PREFIX", "gcform_"), "table name prefix")
	addr := flag.String("addr", util.GetEnv("FORM_ADDR", ":8080"), "listen address")
	openapi := flag.String("openapi", "", "write OpenAPI JSON and exit")
	cacheInterval := flag.Duration("cache-interval", 30*time.Second, "reload interval of the published form cache")
	logFormat := flag.String("log-format", util.GetEnv("LOG_FORMAT", "text"), "log format (text or json)")
	logLevel := flag.String("log-level", util.GetEnv("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	logger.Set(logger.New(os.Stdout, *logFormat, *logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		repo   repository = store.NewMemory()
		rec               = &audit.Recorder{}
		db     *sql.DB
		drv    string
	)
	if *dsn != "" {
		detected, err := util.DetectDriver(*dsn)
		if err != nil {
			logger.L.Error("detect driver", "dsn", *dsn, "err", err)
			os.Exit(1)
		}
		if *driver != "" && *driver != detected {
			logger.L.Error("driver mismatch", "driver", *driver, "expected", detected)
			os.Exit(1)
		}
		st, err := store.Open(*dsn, *tblPrefix)
		if err != nil {
			logger.L.Error("db open", "err", err)
			os.Exit(1)
		}
		defer st.DB().Close()
		if err := st.Migrate(ctx); err != nil {
			logger.L.Error("migrate", "err", err)
			os.Exit(1)
		}
		repo, db, drv = st, st.DB(), st.Driver()
		rec = &audit.Recorder{DB: db, Driver: drv, Prefix: *tblPrefix}
		logger.L.Info("database ready", "driver", drv, "table_prefix", *tblPrefix)
	} else {
		logger.L.Warn("no DSN given; forms are kept in memory")
	}

	dispatcher, closeEvents, err := server.Events(db, drv, *tblPrefix)
	if err != nil {
		logger.L.Error("events", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeEvents(); err != nil {
			logger.L.Error("close event sinks", "err", err)
		}
	}()

	zl, err := zap.NewProduction()
	if err != nil {
		logger.L.Error("zap logger", "err", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	cache, err := formcache.New(ctx, repo.ListPublished, 0, formcache.WithLogger(zl.Sugar()))
	if err != nil {
		logger.L.Error("load published forms", "err", err)
		os.Exit(1)
	}

	svc := service.New(repo,
		service.WithRevisions(rec),
		service.WithCache(cache),
		service.WithEvents(dispatcher),
	)
	api := server.New(svc, server.ConfigFromEnv())

	if *openapi != "" {
		data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
		if err != nil {
			logger.L.Error("marshal openapi", "err", err)
			os.Exit(1)
		}
		p := filepath.Clean(*openapi)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			logger.L.Error("write openapi", "err", err)
			os.Exit(1)
		}
		return
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(*cacheInterval).Do(func() {
		if err := cache.Reload(ctx); err != nil {
			logger.L.Error("reload published forms", "err", err)
		}
		if err := metrics.RefreshPublished(ctx, repo); err != nil {
			logger.L.Error("refresh published gauge", "err", err)
		}
	}); err != nil {
		logger.L.Error("schedule cache reload", "err", err)
	}
	s.StartAsync()
	defer s.Stop()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.Adapter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			logger.L.Error("shutdown", "err", err)
		}
	}()

	logger.L.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}
}
