package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Ensure MockConnectionStore implements ConnectionStore
var _ driven.ConnectionStore = (*MockConnectionStore)(nil)

// MockConnectionStore is an in-memory ConnectionStore for testing.
// Updates are recorded so tests can assert exactly which fields a
// transition wrote.
type MockConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]*domain.Connection
	nextID      int

	// Updates records every Update call in order
	Updates []RecordedUpdate

	// Custom behavior hooks (optional)
	GetFn    func(id string) (*domain.Connection, error)
	UpdateFn func(id string, upd domain.ConnectionUpdate) error
	ListFn   func() ([]*domain.Connection, error)
}

// RecordedUpdate is one Update call captured by the mock.
type RecordedUpdate struct {
	ID     string
	Update domain.ConnectionUpdate
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		connections: make(map[string]*domain.Connection),
	}
}

func (m *MockConnectionStore) Create(ctx context.Context, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.connections {
		if existing.Name == conn.Name {
			return domain.ErrAlreadyExists
		}
	}
	if conn.ID == "" {
		m.nextID++
		conn.ID = fmt.Sprintf("conn-%d", m.nextID)
	}
	m.connections[conn.ID] = cloneConnection(conn)
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	if m.GetFn != nil {
		return m.GetFn(id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneConnection(conn), nil
}

func (m *MockConnectionStore) GetByName(ctx context.Context, name string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		if conn.Name == name {
			return cloneConnection(conn), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockConnectionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Connection
	for _, conn := range m.connections {
		if conn.OwnerID == ownerID {
			result = append(result, cloneConnection(conn))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MockConnectionStore) List(ctx context.Context) ([]*domain.Connection, error) {
	if m.ListFn != nil {
		return m.ListFn()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		result = append(result, cloneConnection(conn))
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MockConnectionStore) Update(ctx context.Context, id string, upd domain.ConnectionUpdate) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, RecordedUpdate{ID: id, Update: upd})
	m.mu.Unlock()

	if m.UpdateFn != nil {
		return m.UpdateFn(id, upd)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Status != nil {
		conn.State = upd.Status.LifecycleState()
	}
	if upd.Profile != nil {
		conn.Profile = upd.Profile
	}
	if upd.ClearProfile {
		conn.Profile = nil
	}
	if upd.ConnectedAt != nil {
		conn.ConnectedAt = upd.ConnectedAt
	}
	if upd.ClearConnectedAt {
		conn.ConnectedAt = nil
	}
	if upd.QR != nil {
		conn.QR = upd.QR
	}
	if upd.ClearQR {
		conn.QR = nil
	}
	return nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.connections, id)
	return nil
}

// Helper methods for testing

func (m *MockConnectionStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = make(map[string]*domain.Connection)
	m.Updates = nil
}

func (m *MockConnectionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// UpdateCount returns how many Update calls were recorded.
func (m *MockConnectionStore) UpdateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Updates)
}

// LastUpdate returns the most recent recorded update, or nil.
func (m *MockConnectionStore) LastUpdate() *RecordedUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Updates) == 0 {
		return nil
	}
	upd := m.Updates[len(m.Updates)-1]
	return &upd
}

func sortNewestFirst(conns []*domain.Connection) {
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].CreatedAt.After(conns[j].CreatedAt)
	})
}

func cloneConnection(conn *domain.Connection) *domain.Connection {
	c := *conn
	if conn.QR != nil {
		qr := *conn.QR
		c.QR = &qr
	}
	if conn.Profile != nil {
		p := *conn.Profile
		c.Profile = &p
	}
	if conn.ConnectedAt != nil {
		t := *conn.ConnectedAt
		c.ConnectedAt = &t
	}
	return &c
}
