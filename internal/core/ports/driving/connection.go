package driving

import (
	"context"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// CreateConnectionRequest represents a request to create a new connection
type CreateConnectionRequest struct {
	Name string `json:"name"`
}

// ConnectionService manages the WhatsApp-linking lifecycle of connections.
type ConnectionService interface {
	// Create validates the name, registers the instance with the provider and
	// persists the connection. The returned connection carries the initial QR
	// code and is awaiting a scan.
	Create(ctx context.Context, ownerID string, req CreateConnectionRequest) (*domain.Connection, error)

	// Get retrieves a connection by ID
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// List retrieves the connections of one owner, newest first
	List(ctx context.Context, ownerID string) ([]*domain.Connection, error)

	// ListAll retrieves every connection (admin only)
	ListAll(ctx context.Context) ([]*domain.Connection, error)

	// RequestQR fetches a fresh QR code for an existing connection and
	// restarts the scan window. Valid from any non-connected state.
	RequestQR(ctx context.Context, id string) (*domain.QRCode, error)

	// CancelScan abandons an in-progress scan: the watch stops and the
	// connection returns to disconnected.
	CancelScan(ctx context.Context, id string) error

	// ConfirmLinked checks whether a device has linked. It persists the
	// transition to connected the first time the full profile appears and is
	// idempotent after that.
	ConfirmLinked(ctx context.Context, id string) (*domain.Connection, error)

	// Disconnect unlinks the device. The local state change is authoritative
	// even when the provider call fails.
	Disconnect(ctx context.Context, id string) error

	// Delete removes the connection locally and best-effort on the provider.
	Delete(ctx context.Context, id string) error
}
