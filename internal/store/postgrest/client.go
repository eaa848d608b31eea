// Package postgrest implements store.Store against a PostgREST endpoint such
// as the one exposed by Supabase under /rest/v1.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pgrst "github.com/supabase-community/postgrest-go"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
)

const defaultTimeout = 30 * time.Second

// Client talks to PostgREST using the published anon key.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	schema    string
	transport http.RoundTripper
	timeout   time.Duration
	logger    *log.Logger
}

var _ store.Store = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc's transport and honours its
// timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc.Transport != nil {
			c.transport = hc.Transport
		} else {
			c.transport = http.DefaultTransport
		}
		if hc.Timeout > 0 {
			c.timeout = hc.Timeout
		}
	}
}

// WithSchema selects a non-default Postgres schema via Accept-Profile and
// Content-Profile.
func WithSchema(schema string) Option {
	return func(c *Client) { c.schema = schema }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger.WithComponent(log.ComponentStorage) }
}

// New creates a client for the project URL (e.g. https://xyz.supabase.co).
// The REST path /rest/v1 is appended unless already present.
func New(projectURL, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing api key")
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(projectURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/rest/v1") {
		u.Path += "/rest/v1"
	}
	c := &Client{
		baseURL:   u,
		apiKey:    apiKey,
		transport: newPooledTransport(),
		timeout:   defaultTimeout,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newPooledTransport keeps connections alive between requests with bounded
// dial and header timeouts.
func newPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Select implements GET /{table}?select=*&order=...&limit=...
func (c *Client) Select(ctx context.Context, t store.Table, q store.Query, dest any) error {
	for _, o := range q.Order {
		if !store.ValidColumn(o.Column) {
			return &store.Error{Op: store.OpSelect, Table: t, Message: "invalid order column " + strconv.Quote(o.Column)}
		}
	}
	return c.do(ctx, store.OpSelect, t, dest, func(pc *pgrst.Client) *pgrst.FilterBuilder {
		fb := pc.From(string(t)).Select("*", "", false)
		for _, o := range q.Order {
			fb = fb.Order(o.Column, &pgrst.OrderOpts{Ascending: o.Ascending})
		}
		if q.Limit > 0 {
			fb = fb.Limit(q.Limit, "")
		}
		return fb
	})
}

// Insert implements POST /{table}. The created rows are only returned when
// dest asks for them.
func (c *Client) Insert(ctx context.Context, t store.Table, rows any, dest any) error {
	if err := store.CheckWritable(store.OpInsert, t, "", false); err != nil {
		return err
	}
	body, err := marshal(store.OpInsert, t, rows)
	if err != nil {
		return err
	}
	returning := "minimal"
	if dest != nil {
		returning = "representation"
	}
	return c.do(ctx, store.OpInsert, t, dest, func(pc *pgrst.Client) *pgrst.FilterBuilder {
		return pc.From(string(t)).Insert(body, false, "", returning, "")
	})
}

// Update implements PATCH /{table}?id=eq.{id}.
func (c *Client) Update(ctx context.Context, t store.Table, id core.ID, patch any) error {
	if err := store.CheckWritable(store.OpUpdate, t, id, true); err != nil {
		return err
	}
	body, err := marshal(store.OpUpdate, t, patch)
	if err != nil {
		return err
	}
	return c.do(ctx, store.OpUpdate, t, nil, func(pc *pgrst.Client) *pgrst.FilterBuilder {
		return pc.From(string(t)).Update(body, "minimal", "").Eq("id", id.String())
	})
}

// Delete implements DELETE /{table}?id=eq.{id}.
func (c *Client) Delete(ctx context.Context, t store.Table, id core.ID) error {
	if err := store.CheckWritable(store.OpDelete, t, id, true); err != nil {
		return err
	}
	return c.do(ctx, store.OpDelete, t, nil, func(pc *pgrst.Client) *pgrst.FilterBuilder {
		return pc.From(string(t)).Delete("minimal", "").Eq("id", id.String())
	})
}

// Ping fetches a single client row to verify URL and key.
func (c *Client) Ping(ctx context.Context) error {
	var rows []json.RawMessage
	return c.Select(ctx, store.Clients, store.Query{Limit: 1}, &rows)
}

// do runs one query. Every call gets its own pgrst.Client whose transport
// is bound to ctx, since the library does not take a context itself.
func (c *Client) do(ctx context.Context, op store.Op, t store.Table, dest any, build func(*pgrst.Client) *pgrst.FilterBuilder) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rt := &boundTransport{ctx: ctx, base: c.transport, logger: c.logger, op: op, table: t}
	pc := pgrst.NewClient(c.baseURL.String(), c.schema, nil).
		SetApiKey(c.apiKey).
		SetAuthToken(c.apiKey)
	pc.Transport.Parent = rt

	payload, _, err := build(pc).Execute()
	switch {
	case rt.failure != nil:
		return rt.failure
	case err != nil:
		return &store.Error{Op: op, Table: t, Err: err}
	}
	if dest == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return &store.Error{Op: op, Table: t, Status: rt.status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func marshal(op store.Op, t store.Table, v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &store.Error{Op: op, Table: t, Err: fmt.Errorf("marshal body: %w", err)}
	}
	return b, nil
}

// boundTransport carries the caller's context into the library's requests
// and keeps the status and error body that the library would flatten into a
// string.
type boundTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	logger *log.Logger
	op     store.Op
	table  store.Table

	status  int
	failure *store.Error
}

func (b *boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := b.base.RoundTrip(req.WithContext(b.ctx))
	if err != nil {
		return nil, err
	}
	b.status = resp.StatusCode
	b.logger.DebugContext(b.ctx, "PostgREST request",
		log.FieldMethod, req.Method,
		log.FieldTable, string(b.table),
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	b.failure = decodeError(b.op, b.table, resp.StatusCode, payload)
	resp.Body = io.NopCloser(bytes.NewReader(payload))
	return resp, nil
}

func decodeError(op store.Op, t store.Table, status int, payload []byte) *store.Error {
	e := &store.Error{Op: op, Table: t, Status: status}
	var ae pgrst.ExecuteError
	if err := json.Unmarshal(payload, &ae); err == nil && ae.Message != "" {
		e.Code = ae.Code
		e.Message = ae.Message
		if ae.Details != "" {
			e.Message += " (" + ae.Details + ")"
		}
		return e
	}
	e.Message = strings.TrimSpace(string(payload))
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
