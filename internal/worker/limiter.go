package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxKeys = 10000
	idleAfter      = 10 * time.Minute
)

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	pinned   bool // Set through SetKeyRate, never evicted
}

// Limiter implements per-client rate limiting. A client is any string key,
// typically the remote IP.
type Limiter struct {
	limiters     map[string]*keyLimiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	maxKeys      int
	now          func() time.Time
}

// NewLimiter creates a new rate limiter. requestsPerSecond <= 0 disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*keyLimiter),
		defaultRate:  limit,
		defaultBurst: burst,
		maxKeys:      defaultMaxKeys,
		now:          time.Now,
	}
}

// Wait waits for rate limit clearance for key
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow checks if a request from key is allowed without waiting
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// SetKeyRate sets a custom rate limit for a specific key.
// requestsPerSecond <= 0 exempts the key from limiting.
func (l *Limiter) SetKeyRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	l.limiters[key] = &keyLimiter{
		limiter:  rate.NewLimiter(limit, burst),
		lastSeen: l.now(),
		pinned:   true,
	}
}

// Len reports how many clients are tracked
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if kl, exists := l.limiters[key]; exists {
		kl.lastSeen = now
		return kl.limiter
	}

	if len(l.limiters) >= l.maxKeys {
		l.evictIdle(now)
	}

	kl := &keyLimiter{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst), lastSeen: now}
	l.limiters[key] = kl
	return kl.limiter
}

// evictIdle drops clients not seen for idleAfter. Caller holds mu.
func (l *Limiter) evictIdle(now time.Time) {
	for key, kl := range l.limiters {
		if !kl.pinned && now.Sub(kl.lastSeen) > idleAfter {
			delete(l.limiters, key)
		}
	}
}
