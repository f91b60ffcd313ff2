package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/V4T54L/actionlog/internal/domain"
)

// IdentitySnapshot is the identity stamped onto a single event.
type IdentitySnapshot struct {
	CorrelationID string
	SessionID     string
	UserID        string
}

// Identity holds the correlation, session and user ids for one Logger.
// Changes apply to events emitted afterwards; buffered events keep their labels.
type Identity struct {
	mu            sync.RWMutex
	correlationID string
	sessionID     string
	userID        string

	store  domain.SessionStore
	logger *slog.Logger
}

// NewIdentity creates an identity with a fresh correlation id. The session id
// is resolved from store on first use.
func NewIdentity(store domain.SessionStore, logger *slog.Logger) *Identity {
	return &Identity{
		correlationID: uuid.NewString(),
		store:         store,
		logger:        logger.With("component", "identity"),
	}
}

// Snapshot returns the current ids, resolving the session id if needed.
func (i *Identity) Snapshot(ctx context.Context) IdentitySnapshot {
	sessionID := i.SessionID(ctx)

	i.mu.RLock()
	defer i.mu.RUnlock()
	return IdentitySnapshot{
		CorrelationID: i.correlationID,
		SessionID:     sessionID,
		UserID:        i.userID,
	}
}

// SessionID returns the session id, loading it from the store or creating and
// persisting a new one on first use.
func (i *Identity) SessionID(ctx context.Context) string {
	i.mu.RLock()
	id := i.sessionID
	i.mu.RUnlock()
	if id != "" {
		return id
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sessionID != "" {
		return i.sessionID
	}
	i.sessionID = i.resolveSessionLocked(ctx)
	return i.sessionID
}

func (i *Identity) resolveSessionLocked(ctx context.Context) string {
	if i.store == nil {
		return uuid.NewString()
	}

	stored, ok, err := i.store.Load(ctx)
	if err != nil {
		// The session still needs an id; it just won't survive a restart.
		i.logger.Warn("failed to load session id, using an ephemeral one", "error", err)
		return uuid.NewString()
	}
	if ok {
		return stored
	}

	id := uuid.NewString()
	if err := i.store.Save(ctx, id); err != nil {
		i.logger.Warn("failed to persist new session id", "error", err)
	}
	return id
}

// ResetSession clears the stored session so a new id is created on next use.
func (i *Identity) ResetSession(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sessionID = ""
	if i.store == nil {
		return nil
	}
	return i.store.Clear(ctx)
}

func (i *Identity) CorrelationID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.correlationID
}

func (i *Identity) SetCorrelationID(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.correlationID = id
}

// SetUserID sets the signed-in user. An empty id means anonymous.
func (i *Identity) SetUserID(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userID = id
}

func (i *Identity) UserID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.userID
}
