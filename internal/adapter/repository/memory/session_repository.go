package memory

import (
	"context"
	"sync"
)

// SessionRepository keeps the session id in process memory, so a session
// lasts as long as the process.
type SessionRepository struct {
	mu sync.RWMutex
	id string
}

// NewSessionRepository creates an empty in-memory session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

func (r *SessionRepository) Load(ctx context.Context) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id, r.id != "", nil
}

func (r *SessionRepository) Save(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = ""
	return nil
}
