// Package quote fetches quotes from the finance API.
//
// Every endpoint answers with the same envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": "..."}
//
// Whatever goes wrong, Client returns a *kabuka.FetchError: transport
// failures and non-2xx statuses, bodies that are not the envelope (an HTML
// error page for instance), and envelopes reporting a failure. It never
// retries.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"golang.org/x/time/rate"

	"github.com/etnz/kabuka"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 10 * time.Second

// MaxBodySize bounds the response body read from the API.
const MaxBodySize = 1 << 20

// Client fetches quotes below a base URL.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is wrapped to tag
// and log requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		cp.Transport = newTracingTransport(hc.Transport)
		c.http = &cp
	}
}

// WithTimeout bounds every fetch, 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit spaces requests to at most rps per second, with bursts of
// burst requests. A non positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New returns a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: newTracingTransport(nil)},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues one GET to the endpoint of inst and returns its quote.
// A non nil error is always a *kabuka.FetchError.
func (c *Client) Fetch(ctx context.Context, inst kabuka.Instrument) (kabuka.Quote, error) {
	data, err := c.get(ctx, inst.Key, inst.Path)
	if err != nil {
		return kabuka.Quote{}, err
	}
	if _, ok := data.(map[string]any); !ok {
		return kabuka.Quote{}, kabuka.NewFetchError(kabuka.FetchFormat, inst.Key, nil, "data is not a quote object")
	}
	var q kabuka.Quote
	if err := remarshal(data, &q); err != nil {
		return kabuka.Quote{}, kabuka.NewFetchError(kabuka.FetchFormat, inst.Key, err, "unexpected quote shape: %v", err)
	}
	return q, nil
}

// FetchPortfolio reads the aggregate endpoint at path: an array of quotes,
// each with its embedded holding.
func (c *Client) FetchPortfolio(ctx context.Context, path string) ([]kabuka.Quote, error) {
	const key = "portfolio"
	data, err := c.get(ctx, key, path)
	if err != nil {
		return nil, err
	}
	items, ok := data.([]any)
	if !ok {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, nil, "data is not a list of quotes")
	}
	if len(items) == 0 {
		return nil, kabuka.NewFetchError(kabuka.FetchSemantic, key, nil, "no portfolio data available")
	}
	var quotes []kabuka.Quote
	if err := remarshal(items, &quotes); err != nil {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, err, "unexpected quote shape: %v", err)
	}
	return quotes, nil
}

// get performs the request and returns the envelope's data.
func (c *Client) get(ctx context.Context, key, path string) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, kabuka.NewFetchError(kabuka.FetchTransport, key, err, "rate limited: %v", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, kabuka.NewFetchError(kabuka.FetchTransport, key, err, "invalid request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, kabuka.NewFetchError(kabuka.FetchTransport, key, err, "request timed out after %v", c.timeout)
		}
		return nil, kabuka.NewFetchError(kabuka.FetchTransport, key, err, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, kabuka.NewFetchError(kabuka.FetchTransport, key, err, "cannot read response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, kabuka.NewFetchError(kabuka.FetchTransport, key, nil, "HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if len(body) > MaxBodySize {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, nil, "response body exceeds %d bytes", MaxBodySize)
	}
	return decodeEnvelope(key, body)
}

// decodeEnvelope checks the success flag and extracts data.
func decodeEnvelope(key string, body []byte) (any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, nil, "empty response body")
	}
	if body[0] == '<' {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, nil, "received HTML instead of JSON data")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, err, "invalid JSON: %v", err)
	}

	success, err := jsonpath.Get("$.success", doc)
	if err != nil {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, err, "response has no success flag")
	}
	if ok, _ := success.(bool); !ok {
		msg := "unknown error"
		if e, err := jsonpath.Get("$.error", doc); err == nil {
			if s, ok := e.(string); ok && s != "" {
				msg = s
			}
		}
		return nil, kabuka.NewFetchError(kabuka.FetchSemantic, key, nil, "%s", msg)
	}

	data, err := jsonpath.Get("$.data", doc)
	if err != nil || data == nil {
		return nil, kabuka.NewFetchError(kabuka.FetchFormat, key, err, "response has no data")
	}
	return data, nil
}

// remarshal converts a generic JSON value into v.
func remarshal(src, v any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("cannot encode: %w", err)
	}
	return json.Unmarshal(b, v)
}
