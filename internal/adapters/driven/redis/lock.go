package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockKeyPrefix = "conecta:lock:"

// Lock guards the reconciliation pass across console replicas. Each
// instance carries a random holder token so a replica can only release
// a lock it actually took; the TTL frees the lock if a holder dies
// mid-pass.
type Lock struct {
	client *redis.Client
	holder string
}

// NewLock creates a Redis-backed lock with a fresh holder token.
func NewLock(client *redis.Client) *Lock {
	token := make([]byte, 16)
	_, _ = rand.Read(token)
	return &Lock{
		client: client,
		holder: hex.EncodeToString(token),
	}
}

// Acquire takes the named lock with SET NX. The value is the holder
// token, so contention and self-release stay distinguishable.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+name, l.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// releaseScript deletes the lock only when this instance still holds
// it, so a lock that expired and was re-taken elsewhere stays put.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (l *Lock) Release(ctx context.Context, name string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + name}, l.holder).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
