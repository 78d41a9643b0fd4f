package rate

import "errors"

var (
	// ErrRateLimited is returned when an identifier has exhausted its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
