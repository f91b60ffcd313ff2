package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/V4T54L/actionlog/internal/domain"
)

func TestHTTPTransport_Send(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Posts batch body", func(t *testing.T) {
		var got domain.Batch
		var gotPath, gotCorrelation, gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotCorrelation = r.Header.Get(CorrelationHeader)
			gotContentType = r.Header.Get("Content-Type")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL+DefaultPath, nil, time.Second, logger)
		events := []domain.LogEvent{
			{ID: "1", CorrelationID: "corr", Type: domain.EventClick, Level: domain.LevelInfo, Data: map[string]any{"element": "save_button"}},
			{ID: "2", CorrelationID: "corr", Type: domain.EventSubmit, Level: domain.LevelInfo},
		}

		if err := tr.Send(context.Background(), events); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotPath != DefaultPath {
			t.Errorf("path got %q, want %q", gotPath, DefaultPath)
		}
		if gotCorrelation != "corr" {
			t.Errorf("correlation header got %q", gotCorrelation)
		}
		if gotContentType != "application/json" {
			t.Errorf("content type got %q", gotContentType)
		}
		if len(got.Logs) != 2 || got.Logs[0].Type != domain.EventClick || got.Logs[0].Data["element"] != "save_button" {
			t.Errorf("unexpected batch: %+v", got)
		}
		if got.Logs[0].Level != domain.LevelInfo {
			t.Errorf("level did not round trip: %v", got.Logs[0].Level)
		}
	})

	t.Run("Non-2xx is a failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL, nil, time.Second, logger)
		err := tr.Send(context.Background(), []domain.LogEvent{{ID: "1"}})

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status got %d", statusErr.StatusCode)
		}
	})

	t.Run("Network error is a failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		tr := NewHTTPTransport(url, nil, time.Second, logger)
		if err := tr.Send(context.Background(), []domain.LogEvent{{ID: "1"}}); err == nil {
			t.Fatal("expected an error for a closed server")
		}
	})

	t.Run("Empty batch is a no-op", func(t *testing.T) {
		tr := NewHTTPTransport("http://127.0.0.1:1", nil, time.Second, logger)
		if err := tr.Send(context.Background(), nil); err != nil {
			t.Errorf("expected nil for empty batch, got %v", err)
		}
	})
}
