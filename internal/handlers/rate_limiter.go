package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter throttles write endpoints per actor. Booking and review
// submissions are the only gated paths; reads are never limited.
type rateLimiter interface {
	Allow(key string) bool
}

// actorRateLimiter counts requests per actor inside a fixed window. Counts
// reset when the window elapses rather than sliding, which is coarse but
// needs no background sweeper.
type actorRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]windowCount
}

type windowCount struct {
	count int
	reset time.Time
}

func newActorRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &actorRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]windowCount),
	}
}

func (l *actorRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = windowCount{count: 1, reset: now.Add(l.window)}
		l.dropStaleLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

// dropStaleLocked evicts expired windows so idle actors do not accumulate.
// Callers must hold l.mu.
func (l *actorRateLimiter) dropStaleLocked(now time.Time) {
	if len(l.store) == 0 {
		return
	}
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}
