package nethttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/V4T54L/actionlog/internal/adapter/transport"
)

type call struct {
	kind   string
	id     string
	method string
	url    string
	status int
	err    error
}

type fakeLogger struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeLogger) LogRequest(method, url string, data map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "request", id: "r1", method: method, url: url})
	return "r1"
}

func (f *fakeLogger) LogResponse(requestID string, status int, durationMs float64, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "response", id: requestID, status: status})
}

func (f *fakeLogger) LogResponseError(requestID string, err error, durationMs float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "error", id: requestID, err: err})
}

func (f *fakeLogger) CorrelationID() string { return "corr-1" }

func TestRoundTripper(t *testing.T) {
	var gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = r.Header.Get(transport.CorrelationHeader)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	log := &fakeLogger{}
	client := &http.Client{Transport: NewRoundTripper(nil, log)}

	resp, err := client.Get(srv.URL + "/items?email=a@b.c")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotCorrelation != "corr-1" {
		t.Errorf("correlation header not propagated, got %q", gotCorrelation)
	}
	if len(log.calls) != 2 {
		t.Fatalf("expected request and response, got %+v", log.calls)
	}
	req, res := log.calls[0], log.calls[1]
	if req.method != http.MethodGet || req.url != srv.URL+"/items" {
		t.Errorf("unexpected request record %+v", req)
	}
	if strings.Contains(req.url, "email") {
		t.Error("query string should not be recorded")
	}
	if res.kind != "response" || res.id != "r1" || res.status != http.StatusNotFound {
		t.Errorf("unexpected response record %+v", res)
	}
}

type failingTransport struct{ err error }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, f.err }

func TestRoundTripper_NetworkError(t *testing.T) {
	boom := errors.New("connection refused")
	log := &fakeLogger{}
	rt := NewRoundTripper(failingTransport{err: boom}, log)

	req := httptest.NewRequest(http.MethodPost, "http://api.example.com/orders", nil)
	if _, err := rt.RoundTrip(req); !errors.Is(err, boom) {
		t.Fatalf("expected the transport error, got %v", err)
	}
	if len(log.calls) != 2 || log.calls[1].kind != "error" || !errors.Is(log.calls[1].err, boom) {
		t.Errorf("unexpected records %+v", log.calls)
	}
	if req.Header.Get(transport.CorrelationHeader) != "" {
		t.Error("the caller's request must not be modified")
	}
}

func TestRoundTripper_SkipsCollector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	log := &fakeLogger{}
	client := &http.Client{Transport: NewRoundTripper(nil, log, WithSkipPrefix(srv.URL+transport.DefaultPath))}

	resp, err := client.Post(srv.URL+transport.DefaultPath, "application/json", strings.NewReader(`{"logs":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if len(log.calls) != 0 {
		t.Errorf("collector traffic should not be recorded, got %+v", log.calls)
	}
}
