package driven

import (
	"context"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// SessionStore persists console sessions. Implementations drop a
// session on their own once ExpiresAt passes, so callers never see a
// lapsed session as live.
type SessionStore interface {
	// Save stores a session until it expires. Saving an already
	// expired session is a no-op.
	Save(ctx context.Context, session *domain.Session) error

	// Get returns the session with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// GetByRefreshToken resolves a refresh token to its live session,
	// or ErrNotFound.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)

	// Delete revokes a single session. Deleting a session that no
	// longer exists is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByUser revokes every session the user holds.
	DeleteByUser(ctx context.Context, userID string) error
}
