// Package fhirclient talks to the external FHIR server that owns patient,
// questionnaire and questionnaire response records.
package fhirclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gofhir "github.com/SanteonNL/go-fhir-client"
	"github.com/rs/zerolog"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
	"golang.org/x/oauth2"
)

const mimeFHIRJSON = "application/fhir+json"

// ErrNotFound is returned when the FHIR server answers 404 or 410.
var ErrNotFound = errors.New("fhir resource not found")

// ErrForeignLink is returned when a search page points outside the base URL.
var ErrForeignLink = errors.New("fhir link leaves the server base url")

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fhir %s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Its transport is wrapped,
// not replaced.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTokenSource sets the bearer token provider.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(cl *Client) { cl.tokens = ts }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client wraps the FHIR REST client with typed errors, bearer tokens and
// request logging. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	api    gofhir.Client
	http   *http.Client
	tokens oauth2.TokenSource
	logger zerolog.Logger
}

// New creates a Client rooted at baseURL (e.g. https://x.fhir.azurehealthcareapis.com).
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse fhir base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("fhir base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}

	next := c.http.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	if c.tokens != nil {
		next = &oauth2.Transport{Source: c.tokens, Base: next}
	}
	httpClient := *c.http
	httpClient.Transport = &transport{next: next, logger: c.logger}
	c.http = &httpClient

	cfg := gofhir.DefaultConfig()
	c.api = gofhir.New(base, c.http, &cfg)
	return c, nil
}

// BaseURL returns the server root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Read fetches path (e.g. "Patient/123") into out.
func (c *Client) Read(ctx context.Context, path string, out any) error {
	ctx, ex := track(ctx)
	return ex.check(http.MethodGet, path, c.api.ReadWithContext(ctx, path, out))
}

// Search runs a type-level search and returns the first page.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (*fhir.Bundle, error) {
	ctx, ex := track(ctx)
	var b fhir.Bundle
	if err := ex.check(http.MethodGet, resourceType, c.api.SearchWithContext(ctx, resourceType, params, &b)); err != nil {
		return nil, err
	}
	return &b, nil
}

// SearchAll follows "next" links until the result set is exhausted or limit
// entries were collected. A limit of 0 means no limit. Links to another
// scheme or host are refused so the bearer token never leaves the server.
func (c *Client) SearchAll(ctx context.Context, resourceType string, params url.Values, limit int) ([]fhir.BundleEntry, error) {
	b, err := c.Search(ctx, resourceType, params)
	if err != nil {
		return nil, err
	}
	entries := b.Entry
	for next := nextLink(b); next != "" && (limit == 0 || len(entries) < limit); next = nextLink(b) {
		u, err := c.sameOrigin(next)
		if err != nil {
			return nil, err
		}
		b = &fhir.Bundle{}
		if err := c.page(ctx, u, b); err != nil {
			return nil, err
		}
		entries = append(entries, b.Entry...)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *Client) sameOrigin(link string) (*url.URL, error) {
	u, err := c.base.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse next link: %w", err)
	}
	if !strings.EqualFold(u.Scheme, c.base.Scheme) || !strings.EqualFold(u.Host, c.base.Host) {
		return nil, fmt.Errorf("%w: %s://%s", ErrForeignLink, u.Scheme, u.Host)
	}
	return u, nil
}

// page fetches a continuation page. Servers hand these out as opaque
// absolute URLs, so they bypass the path-based search API.
func (c *Client) page(ctx context.Context, u *url.URL, out *fhir.Bundle) error {
	ctx, ex := track(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept", mimeFHIRJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return ex.check(http.MethodGet, u.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ex.check(http.MethodGet, u.Path, fmt.Errorf("search page %s", u.Redacted()))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search page: %w", err)
	}
	return nil
}

// Create POSTs a new resource. The resource type is taken from resource. The
// server's representation is decoded into out.
func (c *Client) Create(ctx context.Context, resource, out any) error {
	ctx, ex := track(ctx)
	return ex.check(http.MethodPost, fmt.Sprintf("%T", resource), c.api.CreateWithContext(ctx, resource, out))
}

// Update PUTs resource at path, creating it if the server allows
// client-assigned ids.
func (c *Client) Update(ctx context.Context, path string, resource, out any) error {
	ctx, ex := track(ctx)
	return ex.check(http.MethodPut, path, c.api.UpdateWithContext(ctx, path, resource, out))
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, path string) error {
	ctx, ex := track(ctx)
	return ex.check(http.MethodDelete, path, c.api.DeleteWithContext(ctx, path))
}

// exchange records the HTTP status of the last request made with its context.
type exchange struct {
	status int
}

type exchangeKey struct{}

func track(ctx context.Context) (context.Context, *exchange) {
	ex := &exchange{}
	return context.WithValue(ctx, exchangeKey{}, ex), ex
}

func (ex *exchange) check(method, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case ex.status == http.StatusNotFound || ex.status == http.StatusGone:
		return fmt.Errorf("fhir %s %s: %w", method, path, ErrNotFound)
	case ex.status >= 300:
		return &StatusError{Method: method, Path: path, StatusCode: ex.status, Err: err}
	default:
		return fmt.Errorf("fhir %s %s: %w", method, path, err)
	}
}

// transport logs every FHIR request and reports its status to the exchange
// carried by the request context.
type transport struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.Redacted()).Msg("fhir request failed")
		return nil, err
	}
	if ex, ok := req.Context().Value(exchangeKey{}).(*exchange); ok {
		ex.status = resp.StatusCode
	}
	t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("fhir request")
	return resp, nil
}
