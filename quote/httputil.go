package quote

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/etnz/kabuka/logger"
)

// RequestIDHeader carries the id of every quote request.
const RequestIDHeader = "X-Request-ID"

// tracingTransport tags each request with an id and logs the round trip.
type tracingTransport struct {
	base http.RoundTripper
}

func newTracingTransport(base http.RoundTripper) *tracingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if t, ok := base.(*tracingTransport); ok {
		return t
	}
	return &tracingTransport{base: base}
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the request it was given.
	req = req.Clone(req.Context())
	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		req.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		logger.Debug().Err(err).
			Str("request_id", id).
			Str("method", req.Method).
			Str("url", req.URL.Host+req.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("quote request failed")
		return nil, err
	}
	logger.Debug().
		Str("request_id", id).
		Str("method", req.Method).
		Str("url", req.URL.Host+req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("quote request")
	return resp, nil
}
