package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestLock_Acquire(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lock := NewLock(client)
	acquired, err := lock.Acquire(ctx, "reconciler", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire a free lock")
	}
}

func TestLock_Acquire_Contended(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	first := NewLock(client)
	second := NewLock(client)

	if acquired, _ := first.Acquire(ctx, "reconciler", 10*time.Second); !acquired {
		t.Fatal("first instance should acquire")
	}
	acquired, err := second.Acquire(ctx, "reconciler", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if acquired {
		t.Error("second instance must not acquire a held lock")
	}
}

func TestLock_ReleaseFreesLock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	first := NewLock(client)
	second := NewLock(client)

	if acquired, _ := first.Acquire(ctx, "reconciler", 10*time.Second); !acquired {
		t.Fatal("first instance should acquire")
	}
	if err := first.Release(ctx, "reconciler"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	acquired, err := second.Acquire(ctx, "reconciler", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire after release")
	}
}

func TestLock_Release_OnlyOwnLock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	holder := NewLock(client)
	intruder := NewLock(client)

	if acquired, _ := holder.Acquire(ctx, "reconciler", 10*time.Second); !acquired {
		t.Fatal("holder should acquire")
	}

	// A release from a non-holder must not free the lock
	if err := intruder.Release(ctx, "reconciler"); err != nil {
		t.Fatalf("foreign release errored: %v", err)
	}
	if acquired, _ := intruder.Acquire(ctx, "reconciler", 10*time.Second); acquired {
		t.Error("lock was freed by a non-holder")
	}
}

func TestLock_Release_NotHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	if err := lock.Release(context.Background(), "reconciler"); err != nil {
		t.Errorf("releasing an unheld lock should be a no-op, got %v", err)
	}
}

func TestLock_ExpiresWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	first := NewLock(client)
	second := NewLock(client)

	if acquired, _ := first.Acquire(ctx, "reconciler", time.Minute); !acquired {
		t.Fatal("first instance should acquire")
	}
	mr.FastForward(2 * time.Minute)

	acquired, err := second.Acquire(ctx, "reconciler", time.Minute)
	if err != nil {
		t.Fatalf("acquire after expiry failed: %v", err)
	}
	if !acquired {
		t.Error("expected the lock to expire with its TTL")
	}
}

func TestLock_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	lock := NewLock(client)
	if _, err := lock.Acquire(context.Background(), "reconciler", time.Second); err == nil {
		t.Error("expected acquire to fail with backend down")
	}
}
