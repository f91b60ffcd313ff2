package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/actionlog/internal/domain"
)

// MockTransport is a mock implementation of domain.Transport for testing.
type MockTransport struct {
	mu      sync.Mutex
	Batches [][]domain.LogEvent
	SendErr error
	// Fail, when set, is consulted per call and overrides SendErr.
	Fail func(call int) error
	// Sent receives every batch after it is recorded, if non-nil.
	Sent  chan []domain.LogEvent
	calls int
}

func (m *MockTransport) Send(ctx context.Context, events []domain.LogEvent) error {
	m.mu.Lock()
	m.calls++
	call := m.calls
	err := m.SendErr
	if m.Fail != nil {
		err = m.Fail(call)
	}
	batch := append([]domain.LogEvent(nil), events...)
	m.Batches = append(m.Batches, batch)
	sent := m.Sent
	m.mu.Unlock()

	if sent != nil {
		sent <- batch
	}
	return err
}

// Calls returns how many times Send was invoked.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// AllEvents flattens every recorded batch in call order.
func (m *MockTransport) AllEvents() []domain.LogEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LogEvent
	for _, b := range m.Batches {
		out = append(out, b...)
	}
	return out
}

// MockSessionStore is an in-memory domain.SessionStore with injectable errors.
type MockSessionStore struct {
	mu      sync.Mutex
	ID      string
	LoadErr error
	SaveErr error
	Saves   int
}

func (m *MockSessionStore) Load(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return "", false, m.LoadErr
	}
	return m.ID, m.ID != "", nil
}

func (m *MockSessionStore) Save(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.ID = id
	m.Saves++
	return nil
}

func (m *MockSessionStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ID = ""
	return nil
}
