package postgres

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock guards the reconciliation pass with PostgreSQL advisory
// locks when Redis is not configured. Advisory locks are session
// scoped rather than TTL based: the lock falls away when the holding
// connection closes, and the ttl argument is ignored.
type AdvisoryLock struct {
	db *DB
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db}
}

// lockID maps a lock name onto the 64-bit advisory lock keyspace.
func lockID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("conecta:lock:" + name))
	return int64(h.Sum64())
}

func (l *AdvisoryLock) Acquire(ctx context.Context, name string, _ time.Duration) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID(name)).Scan(&acquired)
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	// pg_advisory_unlock reports false when the lock was not held,
	// which matches the port's best-effort contract
	var released bool
	return l.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockID(name)).Scan(&released)
}
