package gate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LimiterPolicy bounds inbound traffic on the public callback endpoint,
// which an adversary can hit with arbitrary request ids at any time. This
// is flood control, not protocol admission: the cooldown checks in Admit
// are a separate mechanism.
type LimiterPolicy struct {
	RPM   int
	Burst int
}

// LimiterStore abstracts the token bucket storage so multi-node
// deployments can share one limiter in Redis.
type LimiterStore interface {
	// Allow reports whether key may spend cost tokens.
	Allow(ctx context.Context, key string, policy LimiterPolicy, cost int) (bool, error)
}

// tokenBucket is a thread-safe token bucket.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(ratePerSec float64, capacity int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: ratePerSec,
		lastRefill: time.Now(),
	}
}

func (tb *tokenBucket) allow(cost int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens = tb.tokens + elapsed*tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	if tb.tokens >= float64(cost) {
		tb.tokens -= float64(cost)
		return true
	}
	return false
}

// InMemoryLimiterStore serves single-instance deployments.
type InMemoryLimiterStore struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

// NewInMemoryLimiterStore returns an empty in-process limiter.
func NewInMemoryLimiterStore() *InMemoryLimiterStore {
	return &InMemoryLimiterStore{buckets: make(map[string]*tokenBucket)}
}

// Allow implements LimiterStore.
func (s *InMemoryLimiterStore) Allow(ctx context.Context, key string, policy LimiterPolicy, cost int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	tb, exists := s.buckets[key]
	if !exists {
		rate := float64(policy.RPM) / 60.0
		if rate <= 0 {
			rate = 1
		}
		tb = newTokenBucket(rate, policy.Burst)
		s.buckets[key] = tb
	}
	s.mu.Unlock()

	return tb.allow(cost), nil
}

// CheckLimit is the fail-closed wrapper used on the callback path.
func CheckLimit(ctx context.Context, store LimiterStore, key string, policy LimiterPolicy) error {
	if store == nil {
		return fmt.Errorf("limiter: no store configured")
	}
	allowed, err := store.Allow(ctx, key, policy, 1)
	if err != nil {
		return fmt.Errorf("limiter check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("limiter: rate exceeded for %s", key)
	}
	return nil
}
