package driving

import (
	"context"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// CreateUserRequest carries a new console account. Accounts start
// inactive until an admin activates them.
type CreateUserRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
}

// UpdateUserRequest carries a partial account update; nil fields keep
// their current value.
type UpdateUserRequest struct {
	Name   *string      `json:"name,omitempty"`
	Role   *domain.Role `json:"role,omitempty"`
	Active *bool        `json:"active,omitempty"`
}

// SetupRequest bootstraps the very first admin account on an empty
// install.
type SetupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SetupResponse is returned by the one-time setup endpoint.
type SetupResponse struct {
	User    *domain.User `json:"user"`
	Message string       `json:"message"`
}

// UserService manages console accounts. Everything except Setup sits
// behind the admin gate.
type UserService interface {
	// Setup creates the initial admin. It refuses once any account
	// exists.
	Setup(ctx context.Context, req SetupRequest) (*SetupResponse, error)

	// Create adds a new account.
	Create(ctx context.Context, req CreateUserRequest) (*domain.User, error)

	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves an account by its (normalized) email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns all accounts, newest first.
	List(ctx context.Context) ([]*domain.User, error)

	// Update applies a partial update. Deactivating an account also
	// revokes its sessions.
	Update(ctx context.Context, id string, req UpdateUserRequest) (*domain.User, error)

	// Activate lets the account log in.
	Activate(ctx context.Context, id string) error

	// Deactivate blocks logins and revokes the account's sessions.
	Deactivate(ctx context.Context, id string) error

	// Delete removes the account and its sessions.
	Delete(ctx context.Context, id string) error

	// SetPassword replaces the password and revokes existing sessions.
	SetPassword(ctx context.Context, id string, password string) error
}
