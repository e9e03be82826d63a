// Package ratelimit holds the in-process rate limiter used when Redis is not
// configured. Limits are per instance.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodial-wallet/internal/core/ports"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds memory; the map is reset when it is exceeded.
const maxTrackedKeys = 10000

// LocalStore implements ports.RateLimitStore with token buckets. A bucket
// holds limit tokens and refills at limit per window.
type LocalStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewLocalStore creates an empty limiter set.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

func (s *LocalStore) limiter(key string, limit int64, window time.Duration) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Buckets are keyed by their shape as well so a key can carry several limits.
	k := fmt.Sprintf("%s|%d|%d", key, limit, window)
	l, ok := s.limiters[k]
	if !ok {
		if len(s.limiters) >= maxTrackedKeys {
			s.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), int(limit))
		s.limiters[k] = l
	}
	return l
}

// Allow takes one token from the bucket for key.
func (s *LocalStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}
	now := s.now()
	l := s.limiter(key, limit, window)
	allowed := l.AllowN(now, 1)

	remaining := int64(l.TokensAt(now))
	resetAt := now
	if remaining < 1 {
		perToken := time.Duration(float64(window) / float64(limit))
		resetAt = now.Add(perToken)
	}
	return &ports.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(remaining, 0),
		ResetAt:   resetAt.Unix(),
	}, nil
}
