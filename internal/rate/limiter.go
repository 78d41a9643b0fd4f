package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is a fixed-window budget for one scope.
type Policy struct {
	Scope  string
	Max    int
	Window time.Duration
}

// Limiter enforces fixed-window budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a rate [Limiter] backed by the given Redis client. Keys are
// written as "<prefix>:<scope>:<identifier>".
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Check reports ErrRateLimited when identifier has already used its budget
// in the current window. It does not count as an attempt.
func (l *Limiter) Check(ctx context.Context, p Policy, identifier string) error {
	count, err := l.redis.Get(ctx, l.key(p, identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(p.Max) {
		return ErrRateLimited
	}

	return nil
}

// Hit records one attempt and returns the count in the current window.
func (l *Limiter) Hit(ctx context.Context, p Policy, identifier string) (int64, error) {
	return l.incrementWithTTL(ctx, l.key(p, identifier), p.Window)
}

// Allow records one attempt and returns ErrRateLimited once the count
// exceeds the policy budget.
func (l *Limiter) Allow(ctx context.Context, p Policy, identifier string) error {
	count, err := l.Hit(ctx, p, identifier)
	if err != nil {
		return err
	}
	if count > int64(p.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for identifier.
func (l *Limiter) Reset(ctx context.Context, p Policy, identifier string) error {
	if err := l.redis.Del(ctx, l.key(p, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for identifier. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, p Policy, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(p, identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(p Policy, identifier string) string {
	return l.prefix + ":" + p.Scope + ":" + identifier
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
