// Package ratelimit provides per-client token bucket rate limiting for the
// HTTP API. Buckets come from golang.org/x/time/rate; this package keys
// them by client and forgets idle clients.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// New creates a single token bucket.
// r is tokens per second, burst is the maximum burst size.
func New(r float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(r), burst)
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter provides per-key rate limiting.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
	cleanup  time.Duration // how long to keep idle limiters
	stopCh   chan struct{} // channel to stop the cleanup goroutine
	stopOnce sync.Once
	now      func() time.Time
}

// NewKeyed creates a per-key rate limiter.
func NewKeyed(r float64, burst int, cleanup time.Duration) *KeyedLimiter {
	kl := &KeyedLimiter{
		limiters: make(map[string]*entry),
		rate:     rate.Limit(r),
		burst:    burst,
		cleanup:  cleanup,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	if cleanup > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

// Close stops the cleanup goroutine and releases resources.
func (kl *KeyedLimiter) Close() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}

// Allow checks if a request for the given key is allowed.
func (kl *KeyedLimiter) Allow(key string) bool {
	now := kl.now()

	kl.mu.Lock()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.rate, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = now
	kl.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Prune removes limiters idle for longer than the cleanup interval whose
// bucket has refilled.
func (kl *KeyedLimiter) Prune() {
	now := kl.now()
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.cleanup && e.limiter.TokensAt(now) >= float64(kl.burst) {
			delete(kl.limiters, key)
		}
	}
}

// cleanupLoop periodically removes idle limiters.
func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Prune()
		}
	}
}
