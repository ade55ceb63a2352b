package driven

import (
	"context"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
)

// Notifier delivers transient user-facing notifications (Redis pub/sub in
// production, slog fallback when Redis is absent). Delivery is best-effort;
// reconciliation never blocks on it.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, n domain.Notification) error
}
