package domain

import (
	"strings"
	"time"
)

// LifecycleState is the local lifecycle state of a connection as the console
// sees it. It is richer than the persisted status: "expired" and "loading"
// never reach the store.
type LifecycleState string

const (
	// StateDisconnected means no device is linked to this connection.
	StateDisconnected LifecycleState = "disconnected"

	// StateAwaitingScan means a QR code has been issued and we are waiting
	// for a device to scan it.
	StateAwaitingScan LifecycleState = "qr_code"

	// StateConnected means a device is linked and the profile is known.
	StateConnected LifecycleState = "connected"

	// StatePending is a transient state: a remote operation is in flight or
	// the provider reported something we could not classify.
	StatePending LifecycleState = "loading"

	// StateExpired means the QR code elapsed without a scan. A new QR must
	// be requested to leave this state.
	StateExpired LifecycleState = "expired"
)

// StoreStatus is the status value persisted in the connections table.
type StoreStatus string

const (
	StoreStatusActive       StoreStatus = "active"
	StoreStatusConnecting   StoreStatus = "connecting"
	StoreStatusDisconnected StoreStatus = "disconnected"
	StoreStatusInactive     StoreStatus = "inactive"
	StoreStatusError        StoreStatus = "error"
)

// StoreStatus maps a lifecycle state to its persisted representation.
// Transient local states all persist as "connecting".
func (s LifecycleState) StoreStatus() StoreStatus {
	switch s {
	case StateConnected:
		return StoreStatusActive
	case StateDisconnected:
		return StoreStatusDisconnected
	default:
		return StoreStatusConnecting
	}
}

// LifecycleState maps a persisted status back to a local lifecycle state.
func (s StoreStatus) LifecycleState() LifecycleState {
	switch s {
	case StoreStatusActive:
		return StateConnected
	case StoreStatusDisconnected, StoreStatusInactive:
		return StateDisconnected
	default:
		return StatePending
	}
}

// QRCode is the scannable payload attached to a connection while it is in
// StateAwaitingScan. Image is the rendered QR (data URI or base64), Code the
// textual pairing code some clients accept instead.
type QRCode struct {
	Image     string    `json:"image"`
	Code      string    `json:"code,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the QR code deadline has passed.
func (q *QRCode) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// Remaining returns the countdown left before expiry, floored at zero.
func (q *QRCode) Remaining(now time.Time) time.Duration {
	if q.Expired(now) {
		return 0
	}
	return q.ExpiresAt.Sub(now)
}

// Profile holds the WhatsApp account details reported by the provider once a
// device links. AvatarData optionally carries the downloaded picture.
type Profile struct {
	DisplayName string `json:"display_name"`
	Contact     string `json:"contact"`
	AvatarURL   string `json:"avatar_url"`
	AvatarData  string `json:"avatar_data,omitempty"`
}

// Complete reports whether the provider returned all three fields that a
// linked device is required to have. Partial data means "not yet linked".
func (p *Profile) Complete() bool {
	return p != nil && p.DisplayName != "" && p.Contact != "" && p.AvatarURL != ""
}

// Connection is a named WhatsApp-linking session. Name is the only key the
// remote provider understands and never changes after creation; ID is
// assigned by the store.
type Connection struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	OwnerID     string         `json:"owner_id"`
	State       LifecycleState `json:"state"`
	QR          *QRCode        `json:"qr,omitempty"`
	Profile     *Profile       `json:"profile,omitempty"`
	ConnectedAt *time.Time     `json:"connected_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ConnectionUpdate is a partial update applied to a stored connection.
// Nil pointer fields are left untouched, so tests can assert exactly which
// fields a given transition writes.
type ConnectionUpdate struct {
	Status           *StoreStatus
	Profile          *Profile
	ClearProfile     bool
	ConnectedAt      *time.Time
	ClearConnectedAt bool
	QR               *QRCode
	ClearQR          bool
}

// Empty reports whether the update would write nothing.
func (u ConnectionUpdate) Empty() bool {
	return u.Status == nil && u.Profile == nil && !u.ClearProfile &&
		u.ConnectedAt == nil && !u.ClearConnectedAt && u.QR == nil && !u.ClearQR
}

// ProbeState is the normalized outcome of a remote status probe.
type ProbeState string

const (
	ProbeConnected     ProbeState = "connected"
	ProbeDisconnected  ProbeState = "disconnected"
	ProbeIndeterminate ProbeState = "indeterminate"
)

// ParseProbeStatus normalizes a provider status token. Matching is
// case-insensitive; anything that is not recognizably open or closed is
// indeterminate, never an error.
func ParseProbeStatus(token string) ProbeState {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "open":
		return ProbeConnected
	case "close", "closed":
		return ProbeDisconnected
	default:
		return ProbeIndeterminate
	}
}

// LifecycleState maps a probe state to the lifecycle state it implies.
// Indeterminate maps to StatePending, which is never persisted as a
// confirmed change.
func (p ProbeState) LifecycleState() LifecycleState {
	switch p {
	case ProbeConnected:
		return StateConnected
	case ProbeDisconnected:
		return StateDisconnected
	default:
		return StatePending
	}
}

// ProbeOutcome is the canonical result of one status probe: a coarse state
// plus whatever profile fields the provider happened to include.
type ProbeOutcome struct {
	State   ProbeState
	Profile *Profile
}

// Connection name rules, checked in priority order by ValidateConnectionName.
const (
	NameMinLen = 3
	NameMaxLen = 30
)

// ValidateConnectionName checks a user-chosen connection name against the
// provider's naming rules. Rules are checked in a fixed priority order so
// the reported violation is deterministic: empty, whitespace, too-short,
// too-long, invalid-character.
func ValidateConnectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Rule: RuleNameRequired, Message: "connection name is required"}
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return &ValidationError{Field: "name", Rule: RuleNameWhitespace, Message: "connection name must not contain whitespace"}
	}
	if len(name) < NameMinLen {
		return &ValidationError{Field: "name", Rule: RuleNameTooShort, Message: "connection name must have at least 3 characters"}
	}
	if len(name) > NameMaxLen {
		return &ValidationError{Field: "name", Rule: RuleNameTooLong, Message: "connection name must have at most 30 characters"}
	}
	for _, r := range name {
		if !isNameRune(r) {
			return &ValidationError{Field: "name", Rule: RuleNameInvalidChar, Message: "only letters, digits, underscore and hyphen are allowed"}
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}
