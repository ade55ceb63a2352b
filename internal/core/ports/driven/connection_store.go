package driven

import (
	"context"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// ConnectionStore handles connection persistence (PostgreSQL).
// The store is the system of record: local lifecycle state is a cache that
// is reconciled against it, never the other way around.
type ConnectionStore interface {
	// Create inserts a connection and assigns its ID
	Create(ctx context.Context, conn *domain.Connection) error

	// Get retrieves a connection by ID
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// GetByName retrieves a connection by its provider name
	GetByName(ctx context.Context, name string) (*domain.Connection, error)

	// ListByOwner retrieves all connections of one owner, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Connection, error)

	// List retrieves all connections, newest first
	List(ctx context.Context) ([]*domain.Connection, error)

	// Update applies a partial update; nil fields are left untouched
	Update(ctx context.Context, id string, upd domain.ConnectionUpdate) error

	// Delete deletes a connection
	Delete(ctx context.Context, id string) error
}
