// Package clock abstracts the time operations used by the pipeline so that
// flush tickers, scan timers and handler durations can be driven by tests.
package clock

import "time"

// Clock is implemented by Real and by *FakeClock.
type Clock interface {
	// Now returns the current time. Values from Real carry a monotonic
	// reading, so Sub between two of them is immune to wall-clock jumps.
	Now() time.Time

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// AfterFunc calls f in its own goroutine (Real) or synchronously
	// during Advance (Fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Ticker is a periodic timer. C has capacity 1; late ticks are dropped.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns the ticker off. It does not close C.
func (t *Ticker) Stop() { t.stop() }

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the call. It reports false if the call already ran or was stopped.
func (t *Timer) Stop() bool { return t.stop() }
