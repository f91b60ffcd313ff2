package usecase

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrNoResult is recorded when an async handler's channel closes without a value.
var ErrNoResult = errors.New("async handler closed its result channel without a value")

// Result is the outcome of an asynchronous handler.
type Result[R any] struct {
	Value R
	Err   error
}

// PanicError describes a panic observed by the instrumentation. It is only
// recorded in events; the original panic value is re-raised unchanged.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Run calls fn as the handler name, emitting handler.start and then
// handler.ok or handler.err with the elapsed time. The value and error from fn
// are returned unchanged; a panic is recorded and re-raised with the same value.
func Run[R any](l *Logger, name string, fn func() (R, error)) (R, error) {
	start := l.clock.Now()
	handlerID := l.LogHandlerStart(name, nil)

	finished := false
	defer func() {
		if finished {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit; nothing to re-raise.
			return
		}
		l.LogHandlerError(handlerID, name, panicError(r), l.elapsedMs(start))
		panic(r)
	}()

	value, err := fn()
	finished = true

	if err != nil {
		l.LogHandlerError(handlerID, name, err, l.elapsedMs(start))
		return value, err
	}
	l.LogHandlerOk(handlerID, name, l.elapsedMs(start), nil)
	return value, nil
}

// Do is Run for handlers that only return an error.
func Do(l *Logger, name string, fn func() error) error {
	_, err := Run(l, name, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// WrapFunc returns fn instrumented as handler name.
func WrapFunc[A, R any](l *Logger, name string, fn func(A) (R, error)) func(A) (R, error) {
	return func(arg A) (R, error) {
		return Run(l, name, func() (R, error) { return fn(arg) })
	}
}

// RunAsync calls fn, which starts asynchronous work and returns a channel for
// its single result. The returned channel delivers that same Result after
// handler.ok or handler.err was emitted, then closes. If fn's channel closes
// without a value, or fn returns a nil channel, the returned one closes
// without a value after handler.err with ErrNoResult.
func RunAsync[R any](l *Logger, name string, fn func() <-chan Result[R]) <-chan Result[R] {
	start := l.clock.Now()
	handlerID := l.LogHandlerStart(name, nil)

	src := callAsync(l, handlerID, name, start, fn)

	out := make(chan Result[R], 1)
	if src == nil {
		l.LogHandlerError(handlerID, name, ErrNoResult, l.elapsedMs(start))
		close(out)
		return out
	}
	go func() {
		defer close(out)
		res, ok := <-src
		switch {
		case !ok:
			l.LogHandlerError(handlerID, name, ErrNoResult, l.elapsedMs(start))
			return
		case res.Err != nil:
			l.LogHandlerError(handlerID, name, res.Err, l.elapsedMs(start))
		default:
			l.LogHandlerOk(handlerID, name, l.elapsedMs(start), nil)
		}
		out <- res
	}()
	return out
}

// callAsync invokes fn, recording and re-raising a panic raised before fn returns.
func callAsync[R any](l *Logger, handlerID, name string, start time.Time, fn func() <-chan Result[R]) <-chan Result[R] {
	returned := false
	defer func() {
		if returned {
			return
		}
		if r := recover(); r != nil {
			l.LogHandlerError(handlerID, name, panicError(r), l.elapsedMs(start))
			panic(r)
		}
	}()
	src := fn()
	returned = true
	return src
}

// WrapAsync returns fn instrumented as asynchronous handler name.
func WrapAsync[A, R any](l *Logger, name string, fn func(A) <-chan Result[R]) func(A) <-chan Result[R] {
	return func(arg A) <-chan Result[R] {
		return RunAsync(l, name, func() <-chan Result[R] { return fn(arg) })
	}
}

// Go runs fn in a new goroutine and returns its result channel. It pairs with
// RunAsync when the work is an ordinary blocking function.
func Go[R any](fn func() (R, error)) <-chan Result[R] {
	ch := make(chan Result[R], 1)
	go func() {
		defer close(ch)
		v, err := fn()
		ch <- Result[R]{Value: v, Err: err}
	}()
	return ch
}

func panicError(r any) error {
	return &PanicError{Value: r, Stack: truncate(string(debug.Stack()), maxStackBytes)}
}

func (l *Logger) elapsedMs(start time.Time) float64 {
	return float64(l.clock.Now().Sub(start)) / float64(time.Millisecond)
}
