package nethttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/actionlog/internal/adapter/transport"
)

// RequestLogger is the part of the action logger the round tripper reports to.
type RequestLogger interface {
	LogRequest(method, url string, data map[string]any) string
	LogResponse(requestID string, status int, durationMs float64, data map[string]any)
	LogResponseError(requestID string, err error, durationMs float64)
	CorrelationID() string
}

// RoundTripper records every outgoing request as a net.request event and its
// outcome as net.response, and propagates the correlation id.
type RoundTripper struct {
	next http.RoundTripper
	log  RequestLogger
	skip []string
}

type Option func(*RoundTripper)

// WithSkipPrefix leaves requests whose URL starts with prefix unrecorded. Use it
// for the collector endpoint so flushes are not logged as traffic.
func WithSkipPrefix(prefix string) Option {
	return func(rt *RoundTripper) {
		if prefix != "" {
			rt.skip = append(rt.skip, prefix)
		}
	}
}

// NewRoundTripper wraps next, or http.DefaultTransport when next is nil.
func NewRoundTripper(next http.RoundTripper, log RequestLogger, opts ...Option) *RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	rt := &RoundTripper{next: next, log: log}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	full := req.URL.String()
	for _, prefix := range rt.skip {
		if strings.HasPrefix(full, prefix) {
			return rt.next.RoundTrip(req)
		}
	}

	if req.Header.Get(transport.CorrelationHeader) == "" {
		if id := rt.log.CorrelationID(); id != "" {
			req = req.Clone(req.Context())
			req.Header.Set(transport.CorrelationHeader, id)
		}
	}

	target := *req.URL
	target.RawQuery = ""
	target.Fragment = ""
	target.User = nil

	start := time.Now()
	requestID := rt.log.LogRequest(req.Method, target.String(), map[string]any{"host": req.URL.Host})

	resp, err := rt.next.RoundTrip(req)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		rt.log.LogResponseError(requestID, err, elapsed)
		return nil, err
	}

	rt.log.LogResponse(requestID, resp.StatusCode, elapsed, map[string]any{
		"method": req.Method,
		"url":    target.String(),
	})
	return resp, nil
}
