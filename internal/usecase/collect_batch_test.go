package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	appmetrics "github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/domain/mocks"
)

type recordingObserver struct {
	batches [][]domain.LogEvent
}

func (r *recordingObserver) ReportBatch(events []domain.LogEvent) {
	r.batches = append(r.batches, events)
}

func validEvent(id string) domain.LogEvent {
	return domain.LogEvent{
		ID:        id,
		SessionID: "s-1",
		Type:      domain.EventClick,
		Level:     domain.LevelInfo,
		Timestamp: "2026-01-02T03:04:05.123Z",
		Message:   "click save_button",
	}
}

func TestCollectBatchUseCase_Collect(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		events    []domain.LogEvent
		sinkErr   error
		wantErr   error
		wantSunk  int
		wantCalls int
	}{
		{
			name:      "Valid batch",
			events:    []domain.LogEvent{validEvent("1"), validEvent("2")},
			wantSunk:  2,
			wantCalls: 1,
		},
		{
			name:   "Empty batch",
			events: nil,
		},
		{
			name: "Unknown event type",
			events: func() []domain.LogEvent {
				e := validEvent("1")
				e.Type = "ui.hover"
				return []domain.LogEvent{validEvent("0"), e}
			}(),
			wantErr: ErrInvalidEvent,
		},
		{
			name: "Bad timestamp",
			events: func() []domain.LogEvent {
				e := validEvent("1")
				e.Timestamp = "yesterday"
				return []domain.LogEvent{e}
			}(),
			wantErr: ErrInvalidEvent,
		},
		{
			name: "Missing session",
			events: func() []domain.LogEvent {
				e := validEvent("1")
				e.SessionID = ""
				return []domain.LogEvent{e}
			}(),
			wantErr: ErrInvalidEvent,
		},
		{
			name:      "Sink failure",
			events:    []domain.LogEvent{validEvent("1")},
			sinkErr:   errors.New("disk full"),
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &mocks.MockTransport{SendErr: tt.sinkErr}
			observer := &recordingObserver{}
			m := appmetrics.NewCollectorMetrics(prometheus.NewRegistry())
			uc := NewCollectBatchUseCase(sink, observer, m, testLogger())

			err := uc.Collect(ctx, domain.Batch{Logs: tt.events})

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.sinkErr != nil:
				if !errors.Is(err, tt.sinkErr) {
					t.Fatalf("expected sink error, got %v", err)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}

			if sink.Calls() != tt.wantCalls {
				t.Errorf("sink calls = %d, want %d", sink.Calls(), tt.wantCalls)
			}
			if tt.sinkErr == nil && len(sink.AllEvents()) != tt.wantSunk {
				t.Errorf("sunk %d events, want %d", len(sink.AllEvents()), tt.wantSunk)
			}
			if err == nil && tt.wantSunk > 0 {
				if len(observer.batches) != 1 {
					t.Errorf("expected observer to see the batch")
				}
				if got := counterValue(t, m.EventsReceived); got != float64(tt.wantSunk) {
					t.Errorf("events received = %v, want %d", got, tt.wantSunk)
				}
			}
			if err != nil && len(observer.batches) != 0 {
				t.Error("observer should not see a rejected batch")
			}
		})
	}
}
