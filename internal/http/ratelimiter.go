package http

import (
	"math"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter keyed by client, sized directly from
// RateLimiterSettings: Burst caps each bucket, RequestsPerSecond refills it,
// and ClientTTL drives eviction of idle buckets. Stop must be called on
// teardown to end the eviction loop.
type RateLimiter struct {
	settings RateLimiterSettings
	clock    func() time.Time

	mu      sync.Mutex
	buckets map[string]*tokenBucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

type tokenBucket struct {
	tokens  float64
	touched time.Time
}

// NewRateLimiter constructs a limiter from the server settings and starts its
// eviction loop.
func NewRateLimiter(settings RateLimiterSettings) *RateLimiter {
	rl := &RateLimiter{
		settings: settings,
		clock:    time.Now,
		buckets:  make(map[string]*tokenBucket),
		stopCh:   make(chan struct{}),
	}

	if settings.ClientTTL > 0 {
		go rl.evictLoop()
	}

	return rl
}

// Take consumes one token for key. When the bucket is empty it reports how
// long the client must wait for the next token, which the transport turns
// into a Retry-After header.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	if key == "" {
		key = "unknown"
	}

	now := rl.clock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: float64(rl.settings.Burst)}
		rl.buckets[key] = bucket
	} else if elapsed := now.Sub(bucket.touched).Seconds(); elapsed > 0 {
		refill := elapsed * rl.settings.RequestsPerSecond
		bucket.tokens = math.Min(bucket.tokens+refill, float64(rl.settings.Burst))
	}
	bucket.touched = now

	if bucket.tokens < 1 {
		deficit := (1 - bucket.tokens) / rl.settings.RequestsPerSecond
		return false, time.Duration(deficit * float64(time.Second))
	}

	bucket.tokens--
	return true, 0
}

// Stop ends the eviction loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.settings.ClientTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

// evictIdle drops buckets whose last request is older than the client TTL.
func (rl *RateLimiter) evictIdle() {
	cutoff := rl.clock().Add(-rl.settings.ClientTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, bucket := range rl.buckets {
		if bucket.touched.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}
