package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/actionlog/internal/domain"
)

// SSEMessage is one tick of the live collector stream.
type SSEMessage struct {
	Rate   float64        `json:"rate"`
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

type batchReport struct {
	count  int
	byType map[string]int
}

// SSEBroker manages SSE client connections and broadcasts the received event
// rate once per interval.
type SSEBroker struct {
	logger   *slog.Logger
	interval time.Duration
	clients  map[chan []byte]struct{}
	mu       sync.RWMutex
	reports  chan batchReport
}

// NewSSEBroker creates a new SSEBroker and starts its processing loop.
func NewSSEBroker(ctx context.Context, interval time.Duration, logger *slog.Logger) *SSEBroker {
	if interval <= 0 {
		interval = time.Second
	}
	broker := &SSEBroker{
		logger:   logger.With("component", "sse_broker"),
		interval: interval,
		clients:  make(map[chan []byte]struct{}),
		reports:  make(chan batchReport, 1000),
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles new client connections for the SSE stream.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messageChan := make(chan []byte, 4)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ReportBatch implements usecase.BatchObserver.
func (b *SSEBroker) ReportBatch(events []domain.LogEvent) {
	report := batchReport{count: len(events), byType: make(map[string]int)}
	for _, e := range events {
		report.byType[string(e.Type)]++
	}
	select {
	case b.reports <- report:
	default:
		// Never block the collect path.
		b.logger.Warn("SSE report channel is full, dropping report")
	}
}

// Clients returns the number of connected stream clients.
func (b *SSEBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *SSEBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// Slow client, skip this tick.
		}
	}
}

func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var count int
	byType := make(map[string]int)
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-b.reports:
			count += r.count
			for t, n := range r.byType {
				byType[t] += n
			}
		case <-ticker.C:
			now := time.Now()
			rate := 0.0
			if elapsed := now.Sub(last).Seconds(); elapsed > 0 {
				rate = float64(count) / elapsed
			}

			jsonData, err := json.Marshal(SSEMessage{Rate: rate, Total: count, ByType: byType})
			if err != nil {
				b.logger.Error("failed to marshal SSE message", "error", err)
				continue
			}
			b.broadcast(jsonData)

			last = now
			count = 0
			byType = make(map[string]int)
		}
	}
}
