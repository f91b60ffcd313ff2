package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	appmetrics "github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/adapter/pii"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/pkg/clock"
	applog "github.com/V4T54L/actionlog/internal/pkg/logger"
)

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxBufferSize = 100

	// timestampLayout renders millisecond ISO-8601 in UTC, e.g. 2026-10-14T09:30:00.123Z.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	maxStackBytes   = 4096
)

// Options configures a Logger. Zero values fall back to the defaults.
type Options struct {
	MinLevel      domain.Level
	FlushInterval time.Duration
	MaxBufferSize int

	// Development mirrors every event to the slog logger and reports failed
	// or dropped flushes as warnings. Off in production builds.
	Development bool

	UserAgent     string
	InitialURL    string
	CaptureMemory bool

	Clock    clock.Clock
	Sessions domain.SessionStore
	Overflow domain.OverflowRepository
	Metrics  *appmetrics.PipelineMetrics
}

// DefaultOptions returns the options used when nothing is overridden.
func DefaultOptions() Options {
	return Options{
		MinLevel:      domain.LevelInfo,
		FlushInterval: DefaultFlushInterval,
		MaxBufferSize: DefaultMaxBufferSize,
		Development:   true,
	}
}

// Logger is the Emitter: it builds events, scrubs them, buffers them and
// flushes them to the Transport. Create one with NewLogger, call Start to run
// the flush loop and Shutdown to stop it.
type Logger struct {
	opts      Options
	transport domain.Transport
	redactor  *pii.Redactor
	identity  *Identity
	buffer    *EventBuffer
	clock     clock.Clock
	metrics   *appmetrics.PipelineMetrics
	logger    *slog.Logger

	location atomic.Value // string
	closed   atomic.Bool

	// flushMu serialises flushes; overflowPending is guarded by it.
	flushMu         sync.Mutex
	overflowPending bool

	hooksMu    sync.RWMutex
	routeHooks []func(from, to string)

	flushSignal chan struct{}

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	stopped     bool
}

// NewLogger creates a Logger. A nil redactor gets the default denylist.
func NewLogger(transport domain.Transport, redactor *pii.Redactor, opts Options, logger *slog.Logger) *Logger {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = DefaultMaxBufferSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if redactor == nil {
		redactor = pii.NewRedactor(nil, logger)
	}

	l := &Logger{
		opts:            opts,
		transport:       transport,
		redactor:        redactor,
		identity:        NewIdentity(opts.Sessions, logger),
		buffer:          NewEventBuffer(opts.MaxBufferSize),
		clock:           opts.Clock,
		metrics:         opts.Metrics,
		logger:          logger.With("component", "action_logger"),
		overflowPending: opts.Overflow != nil,
		flushSignal:     make(chan struct{}, 1),
	}
	l.location.Store(opts.InitialURL)
	return l
}

// Start runs the periodic flush loop until ctx is cancelled or Shutdown is called.
// Calling Start more than once has no effect.
func (l *Logger) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.cancel != nil || l.stopped {
		return
	}

	// Resolve the session up front so the first emit does not wait on the store.
	l.identity.SessionID(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	ticker := l.clock.NewTicker(l.opts.FlushInterval)

	go l.run(runCtx, ticker)
}

func (l *Logger) run(ctx context.Context, ticker *clock.Ticker) {
	defer close(l.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.buffer.Len() > 0 {
				_ = l.Flush(ctx)
			}
		case <-l.flushSignal:
			_ = l.Flush(ctx)
		}
	}
}

// Shutdown stops the flush loop, sends what is left in the buffer and closes
// the overflow outbox. The returned error is the final flush's error.
func (l *Logger) Shutdown(ctx context.Context) error {
	l.lifecycleMu.Lock()
	if l.stopped {
		l.lifecycleMu.Unlock()
		return nil
	}
	l.stopped = true
	l.closed.Store(true)
	cancel, done := l.cancel, l.done
	l.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := l.Flush(ctx)
	if l.opts.Overflow != nil {
		if cerr := l.opts.Overflow.Close(); cerr != nil {
			l.logger.Error("failed to close overflow WAL", "error", cerr)
		}
	}
	return err
}

func (l *Logger) triggerFlush() {
	select {
	case l.flushSignal <- struct{}{}:
	default:
		// A flush is already pending.
	}
}

// Flush drains the buffer and sends it. On failure the earliest events are
// put back up to the buffer cap and the rest are dropped (or spilled to the
// overflow outbox when one is configured).
func (l *Logger) Flush(ctx context.Context) error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	batch := l.buffer.Drain()
	if len(batch) == 0 {
		return nil
	}

	start := l.clock.Now()
	err := l.transport.Send(ctx, batch)
	if l.metrics != nil {
		l.metrics.FlushDuration.Observe(l.clock.Now().Sub(start).Seconds())
	}

	if err != nil {
		kept, dropped := l.buffer.Requeue(batch)
		spilled := l.spill(ctx, dropped)
		if l.metrics != nil {
			l.metrics.FlushesTotal.WithLabelValues("error").Inc()
			l.metrics.EventsRequeued.Add(float64(kept))
			l.metrics.EventsDropped.Add(float64(len(dropped) - spilled))
		}
		l.devWarn("failed to flush event batch",
			"error", err,
			"batch", len(batch),
			"requeued", kept,
			"dropped", len(dropped)-spilled,
			"spilled", spilled,
		)
		l.updateBufferGauge()
		return fmt.Errorf("failed to flush %d events: %w", len(batch), err)
	}

	if l.metrics != nil {
		l.metrics.FlushesTotal.WithLabelValues("ok").Inc()
		l.metrics.EventsSent.Add(float64(len(batch)))
	}
	l.updateBufferGauge()
	l.logger.Debug("flushed event batch", "count", len(batch))

	if l.overflowPending {
		l.replayOverflow(ctx)
	}
	return nil
}

// spill writes dropped events to the overflow outbox and returns how many made it.
// Must be called with flushMu held.
func (l *Logger) spill(ctx context.Context, dropped []domain.LogEvent) int {
	if len(dropped) == 0 || l.opts.Overflow == nil {
		return 0
	}
	n := 0
	for _, event := range dropped {
		if err := l.opts.Overflow.Write(ctx, event); err != nil {
			l.devWarn("failed to spill dropped event to overflow WAL", "error", err, "event_id", event.ID)
			continue
		}
		n++
	}
	if n > 0 {
		l.overflowPending = true
		if l.metrics != nil {
			l.metrics.WALSpilled.Add(float64(n))
		}
	}
	return n
}

// replayOverflow sends spilled events in buffer-sized chunks and truncates the
// outbox once all of them were accepted. Must be called with flushMu held.
func (l *Logger) replayOverflow(ctx context.Context) {
	var chunk []domain.LogEvent
	sent := 0
	send := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := l.transport.Send(ctx, chunk); err != nil {
			return err
		}
		sent += len(chunk)
		chunk = nil
		return nil
	}

	err := l.opts.Overflow.Replay(ctx, func(event domain.LogEvent) error {
		chunk = append(chunk, event)
		if len(chunk) >= l.buffer.Cap() {
			return send()
		}
		return nil
	})
	if err == nil {
		err = send()
	}
	if l.metrics != nil && sent > 0 {
		l.metrics.EventsSent.Add(float64(sent))
	}
	if err != nil {
		l.devWarn("overflow replay failed, will retry after the next successful flush", "error", err, "sent", sent)
		return
	}

	if err := l.opts.Overflow.Truncate(ctx); err != nil {
		l.logger.Error("failed to truncate overflow WAL after replay", "error", err)
		return
	}
	l.overflowPending = false
}

// Emit builds an event from spec and appends it to the buffer. It never
// panics and never fails; events below the minimum level are discarded.
// After Shutdown nothing flushes the buffer again, so events are dropped.
func (l *Logger) Emit(spec domain.EventSpec) {
	if l.closed.Load() {
		if l.metrics != nil {
			l.metrics.EventsDropped.Inc()
		}
		l.devWarn("event emitted after shutdown dropped", "event_type", string(spec.Type))
		return
	}
	if spec.Level < l.opts.MinLevel {
		if l.metrics != nil {
			l.metrics.EventsFiltered.Inc()
		}
		return
	}

	event := l.build(spec)
	flush := l.buffer.Append(event)

	if l.metrics != nil {
		l.metrics.EventsTotal.WithLabelValues(string(event.Type), event.Level.String()).Inc()
		l.updateBufferGauge()
	}
	if l.opts.Development {
		l.mirror(event)
	}
	if flush {
		l.triggerFlush()
	}
}

func (l *Logger) build(spec domain.EventSpec) domain.LogEvent {
	id := l.identity.Snapshot(context.Background())
	return domain.LogEvent{
		ID:            uuid.NewString(),
		CorrelationID: id.CorrelationID,
		SessionID:     id.SessionID,
		UserID:        id.UserID,
		Type:          spec.Type,
		Timestamp:     l.clock.Now().UTC().Format(timestampLayout),
		Level:         spec.Level,
		Message:       spec.Message,
		Data:          l.prepareData(spec.Data),
		Error:         spec.Error,
		Performance:   spec.Performance,
		Context: domain.EventContext{
			URL:         l.Location(),
			UserAgent:   l.opts.UserAgent,
			Component:   spec.Component,
			HandlerName: spec.HandlerName,
		},
	}
}

// prepareData scrubs the payload and replaces values that cannot be encoded.
// If anything panics the payload is salvaged instead of lost.
func (l *Logger) prepareData(data map[string]any) (out map[string]any) {
	if len(data) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("recovered while preparing event data", "panic", fmt.Sprint(r))
			out = l.salvage(data)
		}
	}()

	scrubbed, _ := l.redactor.Redact(data)
	out = make(map[string]any, len(scrubbed))
	for k, v := range scrubbed {
		out[k] = encodable(v)
	}
	return out
}

// salvage keeps scalar values, redacts denylisted keys and describes the rest.
func (l *Logger) salvage(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if l.redactor.Denied(k) {
			out[k] = pii.RedactedPlaceholder
			continue
		}
		switch v.(type) {
		case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
			out[k] = v
		case float64:
			out[k] = encodable(v)
		default:
			out[k] = fmt.Sprintf("[omitted %T]", v)
		}
	}
	return out
}

// encodable returns v unchanged when it encodes as JSON and a marker otherwise.
func encodable(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("[unserializable %T]", v)
		}
	}()
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("[unserializable %T]", v)
	}
	return v
}

func (l *Logger) mirror(event domain.LogEvent) {
	attrs := []any{"event_type", string(event.Type), "event_id", event.ID}
	if event.Context.HandlerName != "" {
		attrs = append(attrs, "handler", event.Context.HandlerName)
	}
	if len(event.Data) > 0 {
		attrs = append(attrs, "data", event.Data)
	}
	if event.Error != nil {
		attrs = append(attrs, "error", event.Error.Message)
	}
	if event.Performance != nil {
		attrs = append(attrs, "duration_ms", event.Performance.DurationMs)
	}
	l.logger.Log(context.Background(), applog.SlogLevel(event.Level), event.Message, attrs...)
}

// devWarn logs at warn in development and at debug otherwise.
func (l *Logger) devWarn(msg string, args ...any) {
	if l.opts.Development {
		l.logger.Warn(msg, args...)
		return
	}
	l.logger.Debug(msg, args...)
}

func (l *Logger) updateBufferGauge() {
	if l.metrics != nil {
		l.metrics.BufferLength.Set(float64(l.buffer.Len()))
	}
}
