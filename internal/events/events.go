package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faciam-dev/gcform/internal/logger"
)

// Event names emitted by the form service.
const (
	FormSaved          = "form.saved"
	FormPublished      = "form.published"
	FormUnpublished    = "form.unpublished"
	SubmissionAccepted = "submission.accepted"
)

// Event represents a notification payload. Subject is the form id.
type Event struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Time    time.Time `json:"time"`
	Data    any       `json:"data"`
}

// New returns an event with a fresh id and the current time.
func New(name, subject string, data any) Event {
	return Event{ID: uuid.NewString(), Name: name, Subject: subject, Time: time.Now().UTC(), Data: data}
}

// FormData is the payload of form lifecycle events.
type FormData struct {
	FormID  string `json:"form_id"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Fields  int    `json:"fields"`
	Actor   string `json:"actor,omitempty"`
	Version uint64 `json:"version"`
}

// SubmissionData is the payload of submission.accepted. Values holds only
// the visible input fields.
type SubmissionData struct {
	FormID string         `json:"form_id"`
	Slug   string         `json:"slug"`
	Values map[string]any `json:"values"`
}

// Sink publishes events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Event) error { return f(ctx, e) }

// DLQ stores failed events.
type DLQ interface {
	Store(ctx context.Context, e Event, attempts int, lastErr string) error
}

// Dispatcher broadcasts events to multiple sinks with retries.
type Dispatcher struct {
	sinks        []Sink
	maxAttempts  int
	initialDelay time.Duration
	dlq          DLQ
	wg           sync.WaitGroup
}

// Config provides dispatcher settings.
type Config struct {
	Sinks struct {
		Webhook WebhookConfig `yaml:"webhook"`
		Redis   RedisConfig   `yaml:"redis"`
		Kafka   KafkaConfig   `yaml:"kafka"`
	} `yaml:"sinks"`
	Retry RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// NewDispatcher creates a dispatcher from sinks and retry config. Nil sinks
// are skipped.
func NewDispatcher(cfg Config, dlq DLQ, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{maxAttempts: 3, initialDelay: time.Second}
	if cfg.Retry.MaxAttempts > 0 {
		d.maxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay > 0 {
		d.initialDelay = cfg.Retry.InitialDelay
	}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	d.dlq = dlq
	return d
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.sinks)
}

// Dispatch sends the event to all sinks asynchronously. Delivery outlives
// the request, so cancellation of ctx is not propagated to the sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()
			d.retrySend(ctx, sink, e)
		}(s)
	}
}

// Wait blocks until every dispatched event was delivered or parked in the
// DLQ.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

func (d *Dispatcher) retrySend(ctx context.Context, s Sink, e Event) {
	delay := d.initialDelay
	var err error
	for i := 1; i <= d.maxAttempts; i++ {
		if err = s.Emit(ctx, e); err == nil {
			return
		}
		if i == d.maxAttempts {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	logger.L.Warn("event delivery failed", "event", e.Name, "id", e.ID, "attempts", d.maxAttempts, "err", err)
	if d.dlq != nil {
		if derr := d.dlq.Store(ctx, e, d.maxAttempts, err.Error()); derr != nil {
			logger.L.Error("store failed event", "event", e.Name, "id", e.ID, "err", derr)
		}
	}
}

// SQLDLQ stores failed events in the database.
type SQLDLQ struct {
	DB          *sql.DB
	Driver      string
	TablePrefix string
}

// Store inserts the failed event.
func (q *SQLDLQ) Store(ctx context.Context, e Event, attempts int, lastErr string) error {
	if q == nil || q.DB == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tbl := q.TablePrefix + "events_failed"
	var stmt string
	if q.Driver == "postgres" {
		stmt = fmt.Sprintf("INSERT INTO %s(name, subject, payload, attempts, last_error) VALUES ($1, $2, $3, $4, $5)", tbl)
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s(name, subject, payload, attempts, last_error) VALUES (?, ?, ?, ?, ?)", tbl)
	}
	_, err = q.DB.ExecContext(ctx, stmt, e.Name, e.Subject, string(data), attempts, lastErr)
	return err
}
