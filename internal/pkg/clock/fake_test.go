package clock

import (
	"testing"
	"time"
)

func TestFakeClock_AfterFunc(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := 0
	c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(1 * time.Second)
	if fired != 0 {
		t.Fatalf("expected timer not to fire before deadline, fired %d", fired)
	}
	c.Advance(1 * time.Second)
	if fired != 1 {
		t.Fatalf("expected timer to fire once, fired %d", fired)
	}
	c.Advance(5 * time.Second)
	if fired != 1 {
		t.Errorf("one-shot timer fired again: %d", fired)
	}
}

func TestFakeClock_StopTimer(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("expected Stop to report an active timer")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestFakeClock_Ticker(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ticker := c.NewTicker(5 * time.Second)
	defer ticker.Stop()

	if c.PendingCount() != 1 {
		t.Fatalf("expected 1 pending waiter, got %d", c.PendingCount())
	}

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected a tick after one interval")
	}

	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Error("stopped ticker delivered a tick")
	default:
	}
}
