package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/usecase"
)

// MockCollectUseCase is a mock implementation of CollectUseCase.
type MockCollectUseCase struct {
	CollectFunc func(ctx context.Context, batch domain.Batch) error
	received    []domain.Batch
}

func (m *MockCollectUseCase) Collect(ctx context.Context, batch domain.Batch) error {
	m.received = append(m.received, batch)
	if m.CollectFunc != nil {
		return m.CollectFunc(ctx, batch)
	}
	return nil
}

func TestCollectHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		method         string
		contentType    string
		body           string
		collectErr     error
		maxBytes       int64
		expectedStatus int
		expectedBody   string
		expectedLogs   int
	}{
		{
			name:           "Valid batch",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"logs": [{"event_type": "ui.click", "level": "info", "message": "click save_button"}]}`,
			expectedStatus: http.StatusAccepted,
			expectedBody:   "",
			expectedLogs:   1,
		},
		{
			name:           "Content-Type with charset",
			method:         http.MethodPost,
			contentType:    "application/json; charset=utf-8",
			body:           `{"logs": []}`,
			expectedStatus: http.StatusAccepted,
			expectedBody:   "",
		},
		{
			name:           "Invalid Method",
			method:         http.MethodGet,
			contentType:    "application/json",
			body:           `{}`,
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   "Method Not Allowed\n",
		},
		{
			name:           "Unsupported Content-Type",
			method:         http.MethodPost,
			contentType:    "text/plain",
			body:           `hello`,
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedBody:   "Unsupported Media Type: text/plain\n",
		},
		{
			name:           "Bad JSON",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"logs": [`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Bad Request: Failed to decode JSON\n",
		},
		{
			name:           "Unknown level",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"logs": [{"level": "loud"}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Bad Request: Failed to decode JSON\n",
		},
		{
			name:           "Invalid event",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"logs": [{"event_type": "ui.hover"}]}`,
			collectErr:     fmt.Errorf("%w: logs[0]: unknown event type", usecase.ErrInvalidEvent),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Bad Request: invalid log event: logs[0]: unknown event type\n",
			expectedLogs:   1,
		},
		{
			name:           "Sink error",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"logs": []}`,
			collectErr:     errors.New("disk full"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error\n",
		},
		{
			name:           "Payload Too Large",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"logs": [{"message": "this payload is definitely too large for the test limit"}]}`,
			maxBytes:       50,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedBody:   "Payload Too Large\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUseCase := &MockCollectUseCase{
				CollectFunc: func(ctx context.Context, batch domain.Batch) error {
					return tt.collectErr
				},
			}
			maxBytes := tt.maxBytes
			if maxBytes == 0 {
				maxBytes = 1024
			}
			m := metrics.NewCollectorMetrics(prometheus.NewRegistry())
			handler := NewCollectHandler(mockUseCase, logger, maxBytes, m)

			req := httptest.NewRequest(tt.method, "/api/analytics/logs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", status, tt.expectedStatus)
			}
			if body := rr.Body.String(); body != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %q want %q", body, tt.expectedBody)
			}
			if tt.expectedLogs > 0 {
				if len(mockUseCase.received) != 1 || len(mockUseCase.received[0].Logs) != tt.expectedLogs {
					t.Errorf("use case received %+v", mockUseCase.received)
				}
			}
		})
	}
}

func TestSSEBroker_BroadcastsRate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewSSEBroker(ctx, 20*time.Millisecond, logger)
	srv := httptest.NewServer(broker)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for broker.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	lines := make(chan string, 100)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
			}
		}
		close(lines)
	}()

	// Keep reporting until a tick carries the counts.
	batch := []domain.LogEvent{{Type: domain.EventClick}, {Type: domain.EventClick}, {Type: domain.EventSubmit}}
	for time.Now().Before(deadline) {
		broker.ReportBatch(batch)
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			var msg SSEMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				t.Fatalf("bad message %q: %v", line, err)
			}
			if msg.Total == 0 {
				continue
			}
			if msg.Rate <= 0 || msg.ByType["ui.click"] == 0 || msg.ByType["ui.click"] != 2*msg.ByType["ui.submit"] {
				t.Errorf("unexpected message %+v", msg)
			}
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("no message with counts received")
}
