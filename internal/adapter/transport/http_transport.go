package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/actionlog/internal/domain"
)

const (
	// DefaultPath is where the collector accepts batches.
	DefaultPath = "/api/analytics/logs"

	CorrelationHeader = "X-Correlation-ID"
	RequestIDHeader   = "X-Request-ID"
)

// StatusError is returned when the collector answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector responded with status %d", e.StatusCode)
}

// HTTPTransport posts batches to the collector as {"logs": [...]}.
type HTTPTransport struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPTransport creates a transport for the collector at url. A nil client
// gets a plain http.Client with the given timeout.
func NewHTTPTransport(url string, client *http.Client, timeout time.Duration, logger *slog.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{
		url:    url,
		client: client,
		logger: logger.With("component", "http_transport"),
	}
}

// URL returns the collector endpoint, so instrumentation can skip its own traffic.
func (t *HTTPTransport) URL() string { return t.url }

// Send implements domain.Transport.
func (t *HTTPTransport) Send(ctx context.Context, events []domain.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	body, err := json.Marshal(domain.Batch{Logs: events})
	if err != nil {
		return fmt.Errorf("failed to marshal log batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if id := events[0].CorrelationID; id != "" {
		req.Header.Set(CorrelationHeader, id)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post log batch: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	t.logger.Debug("posted log batch", "count", len(events), "bytes", len(body))
	return nil
}
