package mocks

import (
	"context"
	"sync"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Ensure MockNotifier implements Notifier
var _ driven.Notifier = (*MockNotifier)(nil)

// MockNotifier records delivered notifications for test assertions.
type MockNotifier struct {
	mu sync.Mutex

	// NotifyFn overrides delivery when set
	NotifyFn func(ownerID string, n domain.Notification) error

	// Sent records every delivered notification in order
	Sent []SentNotification
}

// SentNotification is one recorded delivery.
type SentNotification struct {
	OwnerID      string
	Notification domain.Notification
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, ownerID string, n domain.Notification) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentNotification{OwnerID: ownerID, Notification: n})
	m.mu.Unlock()
	if m.NotifyFn != nil {
		return m.NotifyFn(ownerID, n)
	}
	return nil
}

// Count returns how many notifications were delivered.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// Last returns the most recent notification, or nil.
func (m *MockNotifier) Last() *SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	n := m.Sent[len(m.Sent)-1]
	return &n
}

// Reset clears recorded notifications.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = nil
}
