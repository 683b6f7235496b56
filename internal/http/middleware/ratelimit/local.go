package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter is a per-key token bucket kept in process memory.
// It backs the shared limiter while Redis is unreachable.
type LocalLimiter struct {
	rate       float64 // tokens per second
	burst      float64
	idleTTL    time.Duration
	maxBuckets int
	now        func() time.Time

	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLocalLimiter allows limit requests per window per key. Buckets idle for
// longer than idleTTL are dropped; maxBuckets caps memory (0 disables the cap).
func NewLocalLimiter(limit int, window, idleTTL time.Duration, maxBuckets int) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &LocalLimiter{
		rate:       float64(limit) / window.Seconds(),
		burst:      float64(limit),
		idleTTL:    idleTTL,
		maxBuckets: maxBuckets,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// Allow takes one token from the key's bucket.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)

	b, ok := l.buckets[key]
	if !ok {
		if l.maxBuckets > 0 && len(l.buckets) >= l.maxBuckets {
			return false, nil
		}
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	if dt := now.Sub(b.last); dt > 0 {
		b.tokens = min(l.burst, b.tokens+dt.Seconds()*l.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

func (l *LocalLimiter) cleanup(now time.Time) {
	if l.idleTTL <= 0 {
		return
	}
	interval := max(time.Minute, l.idleTTL/2)
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < interval {
		return
	}
	l.lastCleanup = now
	for k, b := range l.buckets {
		if now.Sub(b.last) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}
