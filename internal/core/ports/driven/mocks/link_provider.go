package mocks

import (
	"context"
	"sync"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Ensure MockLinkProvider implements LinkProvider
var _ driven.LinkProvider = (*MockLinkProvider)(nil)

// MockLinkProvider is a mock implementation of LinkProvider for testing.
// Every operation delegates to its hook when set; the defaults simulate a
// provider that issues QR codes and never sees a device link. Hooks may be
// swapped mid-test; reads go through the mutex.
type MockLinkProvider struct {
	mu sync.Mutex

	// Custom behavior hooks (optional)
	CreateInstanceFn func(name string) (*driven.CreateInstanceResult, error)
	FetchQRFn        func(name string) (*driven.QRPayload, error)
	FetchProfileFn   func(name string) (*domain.Profile, error)
	ProbeStatusFn    func(name string) (domain.ProbeOutcome, error)
	DisconnectFn     func(name string) error
	RemoveFn         func(name string) error

	// Call counters per operation
	CreateCalls     int
	FetchQRCalls    int
	ProfileCalls    int
	ProbeCalls      int
	DisconnectCalls int
	RemoveCalls     int

	// ProbedNames records the instance names probed, in order
	ProbedNames []string
}

// NewMockLinkProvider creates a new MockLinkProvider
func NewMockLinkProvider() *MockLinkProvider {
	return &MockLinkProvider{}
}

// SetFetchProfileFn swaps the profile hook under the lock, safe while a
// watch goroutine is polling.
func (m *MockLinkProvider) SetFetchProfileFn(fn func(name string) (*domain.Profile, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchProfileFn = fn
}

func (m *MockLinkProvider) CreateInstance(ctx context.Context, name string) (*driven.CreateInstanceResult, error) {
	m.mu.Lock()
	m.CreateCalls++
	fn := m.CreateInstanceFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return &driven.CreateInstanceResult{
		InstanceID: "inst-" + name,
		QRImage:    "data:image/png;base64,mock-qr-" + name,
	}, nil
}

func (m *MockLinkProvider) FetchQR(ctx context.Context, name string) (*driven.QRPayload, error) {
	m.mu.Lock()
	m.FetchQRCalls++
	fn := m.FetchQRFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return &driven.QRPayload{Image: "data:image/png;base64,mock-qr-" + name}, nil
}

func (m *MockLinkProvider) FetchProfile(ctx context.Context, name string) (*domain.Profile, error) {
	m.mu.Lock()
	m.ProfileCalls++
	fn := m.FetchProfileFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return nil, nil
}

func (m *MockLinkProvider) ProbeStatus(ctx context.Context, name string) (domain.ProbeOutcome, error) {
	m.mu.Lock()
	m.ProbeCalls++
	m.ProbedNames = append(m.ProbedNames, name)
	fn := m.ProbeStatusFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return domain.ProbeOutcome{State: domain.ProbeIndeterminate}, nil
}

func (m *MockLinkProvider) Disconnect(ctx context.Context, name string) error {
	m.mu.Lock()
	m.DisconnectCalls++
	fn := m.DisconnectFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return nil
}

func (m *MockLinkProvider) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	m.RemoveCalls++
	fn := m.RemoveFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return nil
}

// ProfileCallCount reads the profile counter under the lock.
func (m *MockLinkProvider) ProfileCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProfileCalls
}

// Reset clears counters and recorded names (useful between tests).
func (m *MockLinkProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = 0
	m.FetchQRCalls = 0
	m.ProfileCalls = 0
	m.ProbeCalls = 0
	m.DisconnectCalls = 0
	m.RemoveCalls = 0
	m.ProbedNames = nil
}
