package mocks

import (
	"context"
	"sync"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// MockSessionStore keeps sessions in memory, indexed the same way the
// Redis adapter indexes them.
type MockSessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	byRefresh map[string]string
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions:  make(map[string]*domain.Session),
		byRefresh: make(map[string]string),
	}
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	if session.RefreshToken != "" {
		m.byRefresh[session.RefreshToken] = session.ID
	}
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRefresh[refreshToken]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(id)
	return nil
}

func (m *MockSessionStore) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		if session.UserID == userID {
			m.remove(id)
		}
	}
	return nil
}

// remove drops a session and its refresh index. Caller holds the lock.
func (m *MockSessionStore) remove(id string) {
	session, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)
	if session.RefreshToken != "" {
		delete(m.byRefresh, session.RefreshToken)
	}
}

// Helper methods for testing

func (m *MockSessionStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*domain.Session)
	m.byRefresh = make(map[string]string)
}

func (m *MockSessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
