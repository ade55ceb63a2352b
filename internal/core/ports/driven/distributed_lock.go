package driven

import (
	"context"
	"time"
)

// DistributedLock serializes work across console replicas. The status
// reconciler takes it before a pass so only one instance probes the
// gateway at a time.
type DistributedLock interface {
	// Acquire attempts to take the named lock for at most ttl.
	// Returns false without error when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release gives the lock back. Best effort: TTL-based backends
	// expire the lock on their own, and releasing a lock that is not
	// held is not an error.
	Release(ctx context.Context, name string) error
}
