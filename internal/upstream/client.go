package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/metrics"
)

// ErrNoToken is returned when an authenticated call is made without a session token.
var ErrNoToken = errors.New("no session token in context")

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s %s: status %d", e.Method, e.Path, e.Status)
}

// IsStatus reports whether err is a StatusError carrying the given status code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == status
	}
	return false
}

type tokenKey struct{}

// WithToken attaches the upstream session token used for the Authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached with WithToken.
func TokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Client speaks JSON to the platform REST API.
type Client struct {
	base    *url.URL
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q must be http or https", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = defaultHTTPClient(opts.Timeout)
	}
	return &Client{base: base, http: hc, log: opts.Logger, metrics: opts.Metrics}, nil
}

func defaultHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   6 * time.Second,
		KeepAlive: 15 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConnsPerHost: 16,
		},
	}
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do sends one request. path is in escaped form, so segments built with url.PathEscape
// reach the upstream unchanged. A nil body sends no payload; a nil out discards the
// response body. The metrics endpoint label is the unexpanded path, so callers pass
// templated paths through Endpoint when ids are embedded.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return fmt.Errorf("upstream path %q: %w", path, err)
	}
	u := *c.base
	u.Path = c.base.Path + decoded
	u.RawPath = c.base.EscapedPath() + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok, ok := TokenFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	endpoint := endpointFrom(ctx, path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstreamRequest(method, endpoint, 0, time.Since(start))
		c.log.Debug().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("upstream request failed")
		return fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstreamRequest(method, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upstream %s %s: %w", method, path, err)
	}
	return nil
}

type endpointKey struct{}

// Endpoint labels the next request's metrics with a templated path (e.g.
// "/dns/transactions/{id}/responses") instead of the concrete one.
func Endpoint(ctx context.Context, template string) context.Context {
	return context.WithValue(ctx, endpointKey{}, template)
}

func endpointFrom(ctx context.Context, path string) string {
	if tpl, ok := ctx.Value(endpointKey{}).(string); ok && tpl != "" {
		return tpl
	}
	return path
}
