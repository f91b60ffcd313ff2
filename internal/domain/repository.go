package domain

import "context"

// Transport delivers a batch of events to the remote collector.
// Any returned error is treated as a failed flush.
type Transport interface {
	Send(ctx context.Context, events []LogEvent) error
}

// SessionStore persists the session id for the lifetime of a session.
// Implementations decide what "session scoped" means (process memory, a TTL key, ...).
type SessionStore interface {
	// Load returns the stored session id. ok is false when nothing is stored.
	Load(ctx context.Context) (id string, ok bool, err error)

	// Save stores the session id, refreshing any expiry.
	Save(ctx context.Context, id string) error

	// Clear removes the stored session id so the next Load misses.
	Clear(ctx context.Context) error
}

// OverflowRepository is an optional on-disk outbox for events the buffer had to drop.
type OverflowRepository interface {
	// Write appends a dropped event to the outbox.
	Write(ctx context.Context, event LogEvent) error

	// Replay reads events from the outbox in write order and sends them to handler.
	Replay(ctx context.Context, handler func(event LogEvent) error) error

	// Truncate removes outbox segments that have been successfully replayed.
	Truncate(ctx context.Context) error

	// Close releases the underlying files.
	Close() error
}
