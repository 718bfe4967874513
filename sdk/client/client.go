// Package client is a REST client for the form API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/faciam-dev/gcform/pkg/codec"
)

// Client provides REST access to the form API.
type Client interface {
	FieldTypes(ctx context.Context) ([]FieldTypeGroup, error)
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (codec.Document, error)
	Create(ctx context.Context, name, description string) (codec.Document, error)
	Replace(ctx context.Context, id string, doc codec.Document) (codec.Document, error)
	UpdateForm(ctx context.Context, id string, patch map[string]any) (codec.Document, error)
	Delete(ctx context.Context, id string) error

	AddField(ctx context.Context, id, fieldType string) (codec.Document, string, error)
	UpdateField(ctx context.Context, id, fieldID string, patch map[string]any) (codec.Document, error)
	DeleteField(ctx context.Context, id, fieldID string) (codec.Document, error)
	DuplicateField(ctx context.Context, id, fieldID string) (codec.Document, string, error)
	MoveField(ctx context.Context, id, fieldID string, position int) (codec.Document, error)

	Publish(ctx context.Context, id string) (codec.Document, error)
	Unpublish(ctx context.Context, id string) (codec.Document, error)

	Visibility(ctx context.Context, id string, values map[string]any) (map[string]bool, error)
	Validate(ctx context.Context, id string, values map[string]any) (Report, error)
	Revisions(ctx context.Context, id string, limit int, withDiff bool) ([]Revision, error)
	Submit(ctx context.Context, slug string, values map[string]any) (Receipt, error)
}

type httpClient struct {
	base string
	http *resty.Client
}

type Option func(*httpClient)

// WithToken sets the Authorization token
func WithToken(tok string) Option {
	return func(c *httpClient) {
		if tok != "" {
			c.http.SetAuthToken(tok)
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.SetTimeout(d)
	}
}

// WithRetry retries requests that failed with a transport error or a 5xx
// response.
func WithRetry(count int) Option {
	return func(c *httpClient) {
		c.http.SetRetryCount(count).
			SetRetryWaitTime(200 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			})
	}
}

// New returns a Client for the given base URL.
func New(base string, opts ...Option) Client {
	c := &httpClient{base: strings.TrimRight(base, "/"), http: resty.New()}
	c.http.SetHeader("Accept", "application/json")
	for _, o := range opts {
		o(c)
	}
	return c
}

// Error is a non-2xx response of the API.
type Error struct {
	Status int
	Title  string
	Detail string
	Fields []FieldProblem
}

// FieldProblem locates one failure inside the request.
type FieldProblem struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%d: %s", e.Status, msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

func restyErr(resp *resty.Response) error {
	e := &Error{Status: resp.StatusCode()}
	var body struct {
		Title  string         `json:"title"`
		Detail string         `json:"detail"`
		Errors []FieldProblem `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		e.Title, e.Detail, e.Fields = body.Title, body.Detail, body.Errors
	}
	return e
}

func (c *httpClient) path(parts ...string) string {
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return c.base + "/v1/" + strings.Join(parts, "/")
}

func (c *httpClient) do(ctx context.Context, method, u string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, u)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restyErr(resp)
	}
	return nil
}

func (c *httpClient) document(ctx context.Context, method, u string, body any) (codec.Document, error) {
	var doc codec.Document
	if err := c.do(ctx, method, u, body, &doc); err != nil {
		return codec.Document{}, err
	}
	return doc, nil
}

type fieldChange struct {
	FieldID string         `json:"field_id"`
	Form    codec.Document `json:"form"`
}

func (c *httpClient) fieldChange(ctx context.Context, u string, body any) (codec.Document, string, error) {
	var out fieldChange
	if err := c.do(ctx, http.MethodPost, u, body, &out); err != nil {
		return codec.Document{}, "", err
	}
	return out.Form, out.FieldID, nil
}

func (c *httpClient) FieldTypes(ctx context.Context) ([]FieldTypeGroup, error) {
	var out []FieldTypeGroup
	if err := c.do(ctx, http.MethodGet, c.path("field-types"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	if err := c.do(ctx, http.MethodGet, c.path("forms"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) Get(ctx context.Context, id string) (codec.Document, error) {
	return c.document(ctx, http.MethodGet, c.path("forms", id), nil)
}

func (c *httpClient) Create(ctx context.Context, name, description string) (codec.Document, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	return c.document(ctx, http.MethodPost, c.path("forms"), body)
}

func (c *httpClient) Replace(ctx context.Context, id string, doc codec.Document) (codec.Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return codec.Document{}, err
	}
	return c.document(ctx, http.MethodPut, c.path("forms", id), b)
}

func (c *httpClient) UpdateForm(ctx context.Context, id string, patch map[string]any) (codec.Document, error) {
	return c.document(ctx, http.MethodPatch, c.path("forms", id), patch)
}

func (c *httpClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.path("forms", id), nil, nil)
}

func (c *httpClient) AddField(ctx context.Context, id, fieldType string) (codec.Document, string, error) {
	return c.fieldChange(ctx, c.path("forms", id, "fields"), map[string]any{"type": fieldType})
}

func (c *httpClient) UpdateField(ctx context.Context, id, fieldID string, patch map[string]any) (codec.Document, error) {
	return c.document(ctx, http.MethodPatch, c.path("forms", id, "fields", fieldID), patch)
}

func (c *httpClient) DeleteField(ctx context.Context, id, fieldID string) (codec.Document, error) {
	return c.document(ctx, http.MethodDelete, c.path("forms", id, "fields", fieldID), nil)
}

func (c *httpClient) DuplicateField(ctx context.Context, id, fieldID string) (codec.Document, string, error) {
	return c.fieldChange(ctx, c.path("forms", id, "fields", fieldID, "duplicate"), nil)
}

func (c *httpClient) MoveField(ctx context.Context, id, fieldID string, position int) (codec.Document, error) {
	return c.document(ctx, http.MethodPost, c.path("forms", id, "fields", fieldID, "move"), map[string]any{"position": position})
}

func (c *httpClient) Publish(ctx context.Context, id string) (codec.Document, error) {
	return c.document(ctx, http.MethodPost, c.path("forms", id, "publish"), nil)
}

func (c *httpClient) Unpublish(ctx context.Context, id string) (codec.Document, error) {
	return c.document(ctx, http.MethodPost, c.path("forms", id, "unpublish"), nil)
}

func (c *httpClient) Visibility(ctx context.Context, id string, values map[string]any) (map[string]bool, error) {
	var out struct {
		Visible map[string]bool `json:"visible"`
	}
	if err := c.do(ctx, http.MethodPost, c.path("forms", id, "visibility"), valuesBody(values), &out); err != nil {
		return nil, err
	}
	return out.Visible, nil
}

func (c *httpClient) Validate(ctx context.Context, id string, values map[string]any) (Report, error) {
	var out Report
	if err := c.do(ctx, http.MethodPost, c.path("forms", id, "validate"), valuesBody(values), &out); err != nil {
		return Report{}, err
	}
	return out, nil
}

func (c *httpClient) Revisions(ctx context.Context, id string, limit int, withDiff bool) ([]Revision, error) {
	u := c.path("forms", id, "revisions")
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if withDiff {
		q.Set("diff", "true")
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var out []Revision
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) Submit(ctx context.Context, slug string, values map[string]any) (Receipt, error) {
	var out Receipt
	if err := c.do(ctx, http.MethodPost, c.path("submit", slug), valuesBody(values), &out); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

func valuesBody(values map[string]any) map[string]any {
	if values == nil {
		values = map[string]any{}
	}
	return map[string]any{"values": values}
}
