package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Notifier = (*Notifier)(nil)

const notifyChannelPrefix = "notify:"

// Notifier delivers user-facing notifications over Redis pub/sub. The
// console gateway subscribes to the owner's channel and forwards messages to
// connected clients; nobody listening is not an error.
type Notifier struct {
	client *redis.Client
}

// NewNotifier creates a new Redis-backed Notifier
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// Notify publishes a notification on the owner's channel
func (n *Notifier) Notify(ctx context.Context, ownerID string, notification domain.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := n.client.Publish(ctx, notifyChannelPrefix+ownerID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
