package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "rollup:5m", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "rollup:5m", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second acquire: want=%v got=%v", ErrLockHeld, err)
	}
	if _, err := l.Acquire(ctx, "rollup:1h", time.Minute); err != nil {
		t.Fatalf("other key should be free: %v", err)
	}
	release()
	if _, err := l.Acquire(ctx, "rollup:5m", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLocalLockerExpires(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	if _, err := l.Acquire(ctx, "k", time.Millisecond); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := l.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("expired lock should be reclaimable: %v", err)
	}
}
