package driven

import (
	"context"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// CreateInstanceResult is the provider response to instance creation.
// Creation eagerly returns a scannable QR payload.
type CreateInstanceResult struct {
	InstanceID string
	QRImage    string
	QRCode     string
}

// QRPayload is a refreshed QR code for an existing instance.
type QRPayload struct {
	Image string
	Code  string
}

// LinkProvider is the remote WhatsApp-link service. Every operation is keyed
// by the connection name, the only identifier the provider understands.
//
// Failure semantics differ per operation: CreateInstance and FetchQR fail
// hard (domain.RemoteError); FetchProfile and ProbeStatus never return an
// error for non-2xx or unparseable bodies — they report "not linked" and
// "indeterminate" instead; Disconnect and Remove return errors that callers
// treat as best-effort.
type LinkProvider interface {
	// CreateInstance registers a new instance and returns its initial QR
	CreateInstance(ctx context.Context, name string) (*CreateInstanceResult, error)

	// FetchQR fetches a fresh QR payload for an existing instance
	FetchQR(ctx context.Context, name string) (*QRPayload, error)

	// FetchProfile probes for the linked device profile. A nil profile or a
	// partial one means the device has not linked yet.
	FetchProfile(ctx context.Context, name string) (*domain.Profile, error)

	// ProbeStatus checks the coarse connection status
	ProbeStatus(ctx context.Context, name string) (domain.ProbeOutcome, error)

	// Disconnect unlinks the device (best-effort)
	Disconnect(ctx context.Context, name string) error

	// Remove deletes the instance on the provider side (best-effort)
	Remove(ctx context.Context, name string) error
}
