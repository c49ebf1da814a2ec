// Package gateway is the typed HTTP client for the marketplace REST API.
// Every request carries the current bearer credential; a 401 anywhere runs
// the single global unauthorized handler.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 15 * time.Second

// TokenSource yields the bearer credential to attach.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithUnauthorizedHandler installs the global 401 side effect, typically
// session logout plus navigation to sign-in.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// Client executes API requests against a base URL such as
// http://localhost:8080/api.
type Client struct {
	base           *url.URL
	http           *http.Client
	tokens         TokenSource
	timeout        time.Duration
	log            zerolog.Logger
	onUnauthorized func(ctx context.Context)
}

// New builds a client. tokens may be nil for anonymous use.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		tokens:  tokens,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Auth returns the auth resource.
func (c *Client) Auth() *AuthAPI { return &AuthAPI{c: c} }

// Gigs returns the gig resource.
func (c *Client) Gigs() *GigAPI { return &GigAPI{c: c} }

// Orders returns the order resource.
func (c *Client) Orders() *OrderAPI { return &OrderAPI{c: c} }

// Reviews returns the review resource.
func (c *Client) Reviews() *ReviewAPI { return &ReviewAPI{c: c} }

// Messages returns the messaging resource.
func (c *Client) Messages() *MessageAPI { return &MessageAPI{c: c} }

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and decodes the "data" envelope into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response", Err: err}
		}
		payload := env.Data
		if len(payload) == 0 {
			payload = raw
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response", Err: err}
		}
		return nil
	}

	apiErr := decodeError(resp.StatusCode, raw)
	if apiErr.Kind == KindUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized(context.WithoutCancel(ctx))
	}
	return apiErr
}

func decodeError(status int, raw []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Message = body.Error
		if e.Message == "" {
			e.Message = body.Message
		}
		e.Fields = body.Fields
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// ErrMissingID is returned when a call needs a resource id and got none.
var ErrMissingID = errors.New("missing resource id")

func escape(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	return url.PathEscape(id), nil
}
