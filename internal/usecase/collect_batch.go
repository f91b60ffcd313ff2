package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	appmetrics "github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/domain"
	applog "github.com/V4T54L/actionlog/internal/pkg/logger"
)

// ErrInvalidEvent is returned when a batch contains an event that fails validation.
// The whole batch is rejected.
var ErrInvalidEvent = errors.New("invalid log event")

// BatchObserver is notified of every accepted batch, e.g. the SSE broker.
type BatchObserver interface {
	ReportBatch(events []domain.LogEvent)
}

// CollectBatchUseCase is the development collector's side of the transport
// contract: it validates a received batch, prints each event to the console
// and hands the batch to an optional sink.
type CollectBatchUseCase struct {
	sink     domain.Transport
	observer BatchObserver
	metrics  *appmetrics.CollectorMetrics
	logger   *slog.Logger
}

// NewCollectBatchUseCase creates a CollectBatchUseCase. sink, observer and m may be nil.
func NewCollectBatchUseCase(sink domain.Transport, observer BatchObserver, m *appmetrics.CollectorMetrics, logger *slog.Logger) *CollectBatchUseCase {
	return &CollectBatchUseCase{
		sink:     sink,
		observer: observer,
		metrics:  m,
		logger:   logger.With("component", "collector"),
	}
}

// Collect validates and records batch.
func (uc *CollectBatchUseCase) Collect(ctx context.Context, batch domain.Batch) error {
	for i := range batch.Logs {
		if err := validateEvent(&batch.Logs[i]); err != nil {
			return fmt.Errorf("%w: logs[%d]: %v", ErrInvalidEvent, i, err)
		}
	}
	if len(batch.Logs) == 0 {
		return nil
	}

	for _, e := range batch.Logs {
		uc.logger.Log(ctx, applog.SlogLevel(e.Level), e.Message,
			"event_type", string(e.Type),
			"event_id", e.ID,
			"session_id", e.SessionID,
			"correlation_id", e.CorrelationID,
			"url", e.Context.URL,
		)
	}

	if uc.sink != nil {
		if err := uc.sink.Send(ctx, batch.Logs); err != nil {
			return fmt.Errorf("failed to write batch to sink: %w", err)
		}
	}
	if uc.metrics != nil {
		uc.metrics.EventsReceived.Add(float64(len(batch.Logs)))
	}
	if uc.observer != nil {
		uc.observer.ReportBatch(batch.Logs)
	}
	return nil
}

func validateEvent(e *domain.LogEvent) error {
	if _, err := domain.ParseEventType(string(e.Type)); err != nil {
		return err
	}
	if e.Level < domain.LevelDebug || e.Level > domain.LevelError {
		return fmt.Errorf("level out of range: %d", int(e.Level))
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		return fmt.Errorf("bad timestamp %q", e.Timestamp)
	}
	if e.SessionID == "" {
		return errors.New("missing session_id")
	}
	return nil
}
