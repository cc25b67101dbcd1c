// Package throttle limits how often a single user may start a generation.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per user. A nil *Limiter allows everything.
type Limiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	limiters map[int64]*userLimiter
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns a limiter admitting perMinute generations per user with the given
// burst. perMinute <= 0 disables throttling and returns nil.
func New(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idle:     10 * time.Minute,
		limiters: make(map[int64]*userLimiter),
	}
}

// Allow consumes one token for userID if available.
func (l *Limiter) Allow(userID int64) bool {
	return l.AllowAt(userID, time.Now())
}

// AllowAt is Allow with an explicit clock reading.
func (l *Limiter) AllowAt(userID int64, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now
	l.mu.Unlock()

	return ul.limiter.AllowN(now, 1)
}

// Sweep drops buckets of users idle longer than the refill window and returns
// how many were removed. A dropped bucket is recreated full on the next call.
func (l *Limiter) Sweep(now time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, ul := range l.limiters {
		if now.Sub(ul.lastSeen) > l.idle {
			delete(l.limiters, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked users.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
