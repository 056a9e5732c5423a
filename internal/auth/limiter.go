package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles failed login attempts per client key (the remote IP).
// Successful logins cost nothing.
type Limiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows perMinute failed attempts per key with the given burst.
// A non-positive perMinute disables throttling.
func NewLimiter(perMinute, burst int) *Limiter {
	l := &Limiter{
		limit:    rate.Inf,
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if l.burst < 1 {
		l.burst = 1
	}
	return l
}

// Throttled reports whether key has no attempts left. It spends nothing.
func (l *Limiter) Throttled(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	v, ok := l.visitors[key]
	if !ok || l.limit == rate.Inf {
		return false
	}
	return v.limiter.TokensAt(now) < 1
}

// Fail records a failed attempt for key.
func (l *Limiter) Fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	v.limiter.AllowN(now, 1)
}

// sweep evicts idle visitors, at most once per idle period.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, k)
		}
	}
}
