package domain

// NotificationLevel classifies a user-facing notification.
type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a transient user-facing message. Only the two significant
// status transitions produce one; everything else stays in the logs.
type Notification struct {
	Level        NotificationLevel `json:"level"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	ConnectionID string            `json:"connection_id,omitempty"`
}

// ConnectionLost builds the notification for Connected -> Disconnected.
func ConnectionLost(conn *Connection) Notification {
	return Notification{
		Level:        NotifyError,
		Title:        "Connection lost",
		Message:      "Connection " + conn.Name + " was disconnected.",
		ConnectionID: conn.ID,
	}
}

// ConnectionRestored builds the notification for Disconnected -> Connected.
func ConnectionRestored(conn *Connection) Notification {
	return Notification{
		Level:        NotifyInfo,
		Title:        "Reconnected",
		Message:      "Connection " + conn.Name + " was restored.",
		ConnectionID: conn.ID,
	}
}
