package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"runtime/metrics"
	"strings"

	"github.com/google/uuid"

	"github.com/V4T54L/actionlog/internal/domain"
)

// LogClick records a click on elementID.
func (l *Logger) LogClick(elementID string, data map[string]any) {
	l.Emit(domain.EventSpec{
		Type:    domain.EventClick,
		Level:   domain.LevelInfo,
		Message: "click " + elementID,
		Data:    merge(data, map[string]any{"element": elementID}),
	})
}

// LogSubmit records a form submission.
func (l *Logger) LogSubmit(formID string, data map[string]any) {
	l.Emit(domain.EventSpec{
		Type:    domain.EventSubmit,
		Level:   domain.LevelInfo,
		Message: "submit " + formID,
		Data:    merge(data, map[string]any{"form": formID}),
	})
}

// LogRouteChange records a navigation, moves the page location to `to` and
// notifies route hooks such as an attached auditor.
func (l *Logger) LogRouteChange(from, to string) {
	l.SetLocation(to)
	l.Emit(domain.EventSpec{
		Type:    domain.EventRouteChange,
		Level:   domain.LevelInfo,
		Message: "route " + from + " -> " + to,
		Data:    map[string]any{"from": from, "to": to},
	})

	l.hooksMu.RLock()
	hooks := append([]func(string, string){}, l.routeHooks...)
	l.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(from, to)
	}
}

// LogRequest records an outgoing request and returns the id that pairs it with
// its response.
func (l *Logger) LogRequest(method, url string, data map[string]any) string {
	requestID := uuid.NewString()
	l.Emit(domain.EventSpec{
		Type:    domain.EventRequest,
		Level:   domain.LevelInfo,
		Message: method + " " + url,
		Data:    merge(data, map[string]any{"request_id": requestID, "method": method, "url": url}),
	})
	return requestID
}

// LogResponse records the response to requestID. Status 400 and above is
// error level, 300 and above is warn, anything else is info.
func (l *Logger) LogResponse(requestID string, status int, durationMs float64, data map[string]any) {
	l.Emit(domain.EventSpec{
		Type:        domain.EventResponse,
		Level:       levelForStatus(status),
		Message:     fmt.Sprintf("response %d", status),
		Data:        merge(data, map[string]any{"request_id": requestID, "status": status}),
		Performance: &domain.Performance{DurationMs: durationMs},
	})
}

// LogResponseError records a request that failed before any response arrived.
func (l *Logger) LogResponseError(requestID string, err error, durationMs float64) {
	l.Emit(domain.EventSpec{
		Type:        domain.EventResponse,
		Level:       domain.LevelError,
		Message:     "request failed",
		Data:        map[string]any{"request_id": requestID},
		Error:       newErrorInfo(err, ""),
		Performance: &domain.Performance{DurationMs: durationMs},
	})
}

func levelForStatus(status int) domain.Level {
	switch {
	case status >= 400:
		return domain.LevelError
	case status >= 300:
		return domain.LevelWarn
	}
	return domain.LevelInfo
}

// LogHandlerStart records the start of handler name and returns its handler id.
func (l *Logger) LogHandlerStart(name string, data map[string]any) string {
	handlerID := uuid.NewString()
	l.Emit(domain.EventSpec{
		Type:        domain.EventHandlerStart,
		Level:       domain.LevelInfo,
		Message:     "handler " + name + " started",
		Data:        merge(data, map[string]any{"handler_id": handlerID}),
		HandlerName: name,
	})
	return handlerID
}

// LogHandlerOk records a successful handler run.
func (l *Logger) LogHandlerOk(handlerID, name string, durationMs float64, data map[string]any) {
	l.Emit(domain.EventSpec{
		Type:        domain.EventHandlerOk,
		Level:       domain.LevelInfo,
		Message:     "handler " + name + " succeeded",
		Data:        merge(data, map[string]any{"handler_id": handlerID}),
		Performance: l.performance(durationMs),
		HandlerName: name,
	})
}

// LogHandlerError records a failed handler run.
func (l *Logger) LogHandlerError(handlerID, name string, err error, durationMs float64) {
	l.Emit(domain.EventSpec{
		Type:        domain.EventHandlerError,
		Level:       domain.LevelError,
		Message:     "handler " + name + " failed",
		Data:        map[string]any{"handler_id": handlerID},
		Error:       newErrorInfo(err, ""),
		Performance: l.performance(durationMs),
		HandlerName: name,
	})
}

// LogErrorBoundary records an error caught at a component boundary.
func (l *Logger) LogErrorBoundary(err error, componentStack string) {
	var data map[string]any
	if componentStack != "" {
		data = map[string]any{"component_stack": componentStack}
	}
	info := newErrorInfo(err, "")
	l.Emit(domain.EventSpec{
		Type:    domain.EventErrorBound,
		Level:   domain.LevelError,
		Message: "uncaught error: " + info.Message,
		Data:    data,
		Error:   info,
	})
}

func (l *Logger) performance(durationMs float64) *domain.Performance {
	p := &domain.Performance{DurationMs: durationMs}
	if l.opts.CaptureMemory {
		p.MemoryUsage = heapObjectBytes()
	}
	return p
}

const heapObjectsKey = "/memory/classes/heap/objects:bytes"

func heapObjectBytes() uint64 {
	sample := []metrics.Sample{{Name: heapObjectsKey}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// SetUserID sets the signed-in user for subsequent events.
func (l *Logger) SetUserID(id string) { l.identity.SetUserID(id) }

// ClearUserID marks subsequent events as anonymous.
func (l *Logger) ClearUserID() { l.identity.SetUserID("") }

// SetCorrelationID overrides the correlation id for subsequent events.
func (l *Logger) SetCorrelationID(id string) { l.identity.SetCorrelationID(id) }

func (l *Logger) CorrelationID() string { return l.identity.CorrelationID() }

func (l *Logger) SessionID() string { return l.identity.SessionID(context.Background()) }

// Identity exposes the identity state, e.g. to reset the session on sign-out.
func (l *Logger) Identity() *Identity { return l.identity }

// SetLocation sets the page URL stamped into event context.
func (l *Logger) SetLocation(url string) { l.location.Store(url) }

func (l *Logger) Location() string {
	url, _ := l.location.Load().(string)
	return url
}

// OnRouteChange registers a hook called after every LogRouteChange.
func (l *Logger) OnRouteChange(hook func(from, to string)) {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	l.routeHooks = append(l.routeHooks, hook)
}

// BufferLen returns the number of events waiting to be flushed.
func (l *Logger) BufferLen() int { return l.buffer.Len() }

// merge copies data and overlays fields. The caller's map is not modified.
func merge(data, fields map[string]any) map[string]any {
	out := make(map[string]any, len(data)+len(fields))
	for k, v := range data {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// newErrorInfo captures err for an event. stack defaults to the caller's stack.
func newErrorInfo(err error, stack string) *domain.ErrorInfo {
	if err == nil {
		return &domain.ErrorInfo{Name: "Error", Message: "unknown error", Stack: stack}
	}

	info := &domain.ErrorInfo{Name: errorName(err), Message: errorMessage(err), Stack: stack}
	var pe *PanicError
	if errors.As(err, &pe) && info.Stack == "" {
		info.Stack = pe.Stack
	}
	if info.Stack == "" {
		info.Stack = truncate(string(debug.Stack()), maxStackBytes)
	}
	return info
}

func errorName(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return "panic"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func errorMessage(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("[error message unavailable: %v]", r)
		}
	}()
	return err.Error()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
