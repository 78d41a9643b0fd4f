package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "ga"), mr
}

func TestCheckBlocksAfterBudget(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	p := Policy{Scope: "login", Max: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, p, "alice"); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if _, err := l.Hit(ctx, p, "alice"); err != nil {
			t.Fatalf("Hit error: %v", err)
		}
	}
	if err := l.Check(ctx, p, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, p, "bob"); err != nil {
		t.Fatalf("other identifier should not be limited: %v", err)
	}

	if !mr.Exists("ga:login:alice") {
		t.Fatal("expected counter key ga:login:alice")
	}
	if ttl := mr.TTL("ga:login:alice"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, p, "alice"); err != nil {
		t.Fatalf("expected window to expire: %v", err)
	}
}

func TestAllowAndReset(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	p := Policy{Scope: "create", Max: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, p, "x@example.com"); err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
	}
	if err := l.Allow(ctx, p, "x@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	n, err := l.Attempts(ctx, p, "x@example.com")
	if err != nil || n != 3 {
		t.Fatalf("Attempts = %d, %v; want 3", n, err)
	}

	if err := l.Reset(ctx, p, "x@example.com"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	n, err = l.Attempts(ctx, p, "x@example.com")
	if err != nil || n != 0 {
		t.Fatalf("Attempts after reset = %d, %v; want 0", n, err)
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	p := Policy{Scope: "login", Max: 1, Window: time.Minute}
	if err := l.Check(context.Background(), p, "alice"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := l.Hit(context.Background(), p, "alice"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
