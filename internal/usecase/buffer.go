package usecase

import (
	"sync"

	"github.com/V4T54L/actionlog/internal/domain"
)

// EventBuffer is the in-memory queue between the Emitter and the Transport.
type EventBuffer struct {
	mu      sync.Mutex
	events  []domain.LogEvent
	maxSize int
}

// NewEventBuffer creates a buffer that asks for a flush at maxSize events.
func NewEventBuffer(maxSize int) *EventBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxBufferSize
	}
	return &EventBuffer{maxSize: maxSize}
}

// Append enqueues a fully built event. It reports whether a flush is due:
// the event is error level or the buffer reached its cap.
func (b *EventBuffer) Append(event domain.LogEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return event.Level == domain.LevelError || len(b.events) >= b.maxSize
}

// Drain takes the current contents. Later appends start a fresh slice.
func (b *EventBuffer) Drain() []domain.LogEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.events
	b.events = nil
	return batch
}

// Requeue puts back as many of the earliest events of a failed batch as fit
// under the cap, ahead of anything appended since the drain. Appends made
// while the batch was in flight are trimmed to the cap as well, keeping the
// earliest. It returns the events that did not fit, failed batch first.
func (b *EventBuffer) Requeue(batch []domain.LogEvent) (kept int, dropped []domain.LogEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) >= b.maxSize {
		dropped = make([]domain.LogEvent, 0, len(batch)+len(b.events)-b.maxSize)
		dropped = append(dropped, batch...)
		dropped = append(dropped, b.events[b.maxSize:]...)
		b.events = append([]domain.LogEvent(nil), b.events[:b.maxSize]...)
		return 0, dropped
	}

	room := b.maxSize - len(b.events)
	if room > len(batch) {
		room = len(batch)
	}

	merged := make([]domain.LogEvent, 0, room+len(b.events))
	merged = append(merged, batch[:room]...)
	merged = append(merged, b.events...)
	b.events = merged
	return room, batch[room:]
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Cap returns the configured size cap.
func (b *EventBuffer) Cap() int { return b.maxSize }
