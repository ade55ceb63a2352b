package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrProviderUnavailable indicates the link provider could not complete
	// a required call (non-2xx or network failure)
	ErrProviderUnavailable = errors.New("link provider unavailable")

	// ErrCheckInProgress indicates a reconciliation run is already in flight
	ErrCheckInProgress = errors.New("status check already in progress")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// NameRule identifies which naming rule a connection name violated.
type NameRule string

const (
	RuleNameRequired    NameRule = "required"
	RuleNameWhitespace  NameRule = "whitespace"
	RuleNameTooShort    NameRule = "too_short"
	RuleNameTooLong     NameRule = "too_long"
	RuleNameInvalidChar NameRule = "invalid_character"
)

// ValidationError reports a rejected input together with the specific rule
// it violated, so the caller can render the violation inline.
type ValidationError struct {
	Field   string
	Rule    NameRule
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// RemoteError reports a hard failure from the link provider. Best-effort
// operations log these; create and QR refresh surface them to the caller.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("link provider %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("link provider %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped transport error, if any.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is makes every RemoteError match ErrProviderUnavailable.
func (e *RemoteError) Is(target error) bool {
	return target == ErrProviderUnavailable
}
