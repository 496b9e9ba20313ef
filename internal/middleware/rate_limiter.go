package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// Limits describes a token bucket: Requests per Window with Burst headroom.
// Buckets idle for longer than TTL are forgotten.
type Limits struct {
	Requests int
	Window   time.Duration
	Burst    int
	TTL      time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.Requests <= 0 {
		l.Requests = 1
	}
	if l.Window <= 0 {
		l.Window = time.Second
	}
	if l.Burst <= 0 {
		l.Burst = 1
	}
	if l.TTL <= 0 {
		l.TTL = 10 * time.Minute
	}
	return l
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter keeps one bucket per caller key, such as a user id or an IP.
type keyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedLimiter constructs a per-key limiter for the given limits.
func NewKeyedLimiter(limits Limits) RateLimiter {
	return newKeyedLimiter(limits, time.Now)
}

func newKeyedLimiter(limits Limits, now func() time.Time) *keyedLimiter {
	limits = limits.withDefaults()
	return &keyedLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Every(limits.Window / time.Duration(limits.Requests)),
		burst:     limits.Burst,
		ttl:       limits.TTL,
		lastSweep: now(),
		now:       now,
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if now.Sub(l.lastSweep) > l.ttl {
		l.sweepLocked(now)
	}
	return b.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *keyedLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
