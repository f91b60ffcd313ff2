package domain

import (
	"fmt"
	"strings"
)

// EventType classifies a LogEvent. The set is closed.
type EventType string

const (
	EventClick        EventType = "ui.click"
	EventSubmit       EventType = "ui.submit"
	EventRouteChange  EventType = "ui.route_change"
	EventDeadElement  EventType = "ui.dead_element"
	EventRequest      EventType = "net.request"
	EventResponse     EventType = "net.response"
	EventHandlerStart EventType = "handler.start"
	EventHandlerOk    EventType = "handler.ok"
	EventHandlerError EventType = "handler.err"
	EventErrorBound   EventType = "error.boundary"
)

var knownEventTypes = map[EventType]struct{}{
	EventClick:        {},
	EventSubmit:       {},
	EventRouteChange:  {},
	EventDeadElement:  {},
	EventRequest:      {},
	EventResponse:     {},
	EventHandlerStart: {},
	EventHandlerOk:    {},
	EventHandlerError: {},
	EventErrorBound:   {},
}

// ParseEventType validates a wire value against the closed set of event types.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if _, ok := knownEventTypes[t]; !ok {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Level is the severity of a LogEvent, ordered debug < info < warn < error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts debug, info, warn (or warning) and error, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ErrorInfo is the serialisable form of an error captured with an event.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Performance carries timing for handler and network events.
type Performance struct {
	DurationMs  float64 `json:"duration_ms"`
	MemoryUsage uint64  `json:"memory_usage,omitempty"`
}

// EventContext describes where the event was emitted from.
type EventContext struct {
	URL         string `json:"url"`
	UserAgent   string `json:"user_agent"`
	Component   string `json:"component,omitempty"`
	HandlerName string `json:"handler_name,omitempty"`
}

// LogEvent is the canonical client event shipped to the collector.
// It is not modified after the Emitter appends it to the buffer.
type LogEvent struct {
	ID            string         `json:"event_id"`
	CorrelationID string         `json:"correlation_id"`
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id,omitempty"`
	Type          EventType      `json:"event_type"`
	Timestamp     string         `json:"timestamp"`
	Level         Level          `json:"level"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	Error         *ErrorInfo     `json:"error,omitempty"`
	Performance   *Performance   `json:"performance,omitempty"`
	Context       EventContext   `json:"context"`
}

// EventSpec is the caller-supplied part of an event. Identity, timestamp and
// page context are stamped by the Emitter.
type EventSpec struct {
	Type        EventType
	Level       Level
	Message     string
	Data        map[string]any
	Error       *ErrorInfo
	Performance *Performance
	Component   string
	HandlerName string
}

// Batch is the wire body posted to the collector.
type Batch struct {
	Logs []LogEvent `json:"logs"`
}
