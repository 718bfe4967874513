package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
)

type memDLQ struct {
	mu     sync.Mutex
	events []Event
	errs   []string
}

func (q *memDLQ) Store(_ context.Context, e Event, _ int, lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
	q.errs = append(q.errs, lastErr)
	return nil
}

func TestDispatcherRetriesThenDLQ(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	failing := SinkFunc(func(context.Context, Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("unavailable")
	})
	delivered := make(chan Event, 1)
	ok := SinkFunc(func(_ context.Context, e Event) error {
		delivered <- e
		return nil
	})

	var cfg Config
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialDelay = time.Millisecond
	dlq := &memDLQ{}
	var nilSink Sink
	d := NewDispatcher(cfg, dlq, failing, nilSink, ok)
	if d.Len() != 2 {
		t.Fatalf("Len = %d", d.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := New(FormPublished, "f1", FormData{FormID: "f1", Status: "published"})
	d.Dispatch(ctx, e)
	cancel()
	d.Wait()

	if calls != 3 {
		t.Fatalf("attempts = %d", calls)
	}
	if got := <-delivered; got.ID != e.ID {
		t.Fatalf("delivered %s", got.ID)
	}
	if len(dlq.events) != 1 || dlq.events[0].ID != e.ID || dlq.errs[0] != "unavailable" {
		t.Fatalf("dlq = %+v %v", dlq.events, dlq.errs)
	}
}

func TestWebhookSinkSigns(t *testing.T) {
	got := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- r
		bodies <- b
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSink(WebhookConfig{Enabled: true, Endpoint: srv.URL, Secret: "s3cret"})
	if err := s.Emit(context.Background(), New(FormSaved, "f1", FormData{FormID: "f1"})); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	r, body := <-got, <-bodies
	if r.Header.Get(EventHeader) != FormSaved {
		t.Fatalf("event header = %q", r.Header.Get(EventHeader))
	}
	if !Verify("s3cret", body, r.Header.Get(SignatureHeader)) {
		t.Fatalf("signature %q does not verify", r.Header.Get(SignatureHeader))
	}
	if Verify("other", body, r.Header.Get(SignatureHeader)) {
		t.Fatalf("signature verified with wrong secret")
	}

	if NewWebhookSink(WebhookConfig{Endpoint: srv.URL}) != nil {
		t.Fatalf("disabled webhook built a sink")
	}
}

func TestWebhookSinkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	s := NewWebhookSink(WebhookConfig{Enabled: true, Endpoint: srv.URL})
	if err := s.Emit(context.Background(), New(FormSaved, "f1", nil)); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestRedisSinkPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisSink(RedisConfig{Enabled: true, DSN: "redis://" + mr.Addr(), PerEvent: true})
	if err != nil {
		t.Fatalf("NewRedisSink: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	sub := s.Client.Subscribe(ctx, DefaultChannel+"."+SubmissionAccepted)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	e := New(SubmissionAccepted, "f1", SubmissionData{FormID: "f1", Values: map[string]any{"name": "Ana"}})
	if err := s.Emit(ctx, e); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	select {
	case msg := <-sub.Channel():
		var back Event
		if err := json.Unmarshal([]byte(msg.Payload), &back); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if back.ID != e.ID || back.Subject != "f1" {
			t.Fatalf("received %+v", back)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
	}
}

func TestKafkaSinkKeysBySubject(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	prod := mocks.NewAsyncProducer(t, cfg)
	var sent *sarama.ProducerMessage
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		sent = m
		return nil
	})
	s := &KafkaSink{Producer: prod, Topic: "forms"}
	if err := s.Emit(context.Background(), New(FormUnpublished, "f9", nil)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	<-prod.Successes()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	key, _ := sent.Key.Encode()
	if string(key) != "f9" || sent.Topic != "forms" {
		t.Fatalf("message key=%s topic=%s", key, sent.Topic)
	}
}

func TestLoadConfigAndBuild(t *testing.T) {
	mr := miniredis.RunT(t)
	path := filepath.Join(t.TempDir(), "events.yaml")
	yml := "sinks:\n  redis:\n    enabled: true\n    dsn: redis://" + mr.Addr() + "\n  webhook:\n    enabled: false\nretry:\n  max_attempts: 5\n  initial_delay: 10ms\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialDelay != 10*time.Millisecond {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	d, closeFn, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("sinks = %d", d.Len())
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	empty, err := LoadConfig("")
	if err != nil || empty.Sinks.Redis.Enabled {
		t.Fatalf("empty config = %+v, %v", empty, err)
	}
}

func TestSQLDLQStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	q := &SQLDLQ{DB: db, Driver: "postgres", TablePrefix: "app_"}
	mock.ExpectExec(`INSERT INTO app_events_failed\(name, subject, payload, attempts, last_error\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs(FormSaved, "f1", sqlmock.AnyArg(), 3, "timeout").
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := q.Store(context.Background(), New(FormSaved, "f1", nil), 3, "timeout"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
