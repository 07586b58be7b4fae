package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	entries map[string]*limiterEntry
	mu      sync.RWMutex
	limit   rate.Limit
	burst   int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPRateLimiter creates a limiter allowing requestsPerMinute sustained
// with the given burst.
func newIPRateLimiter(requestsPerMinute, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
	}
}

// Allow checks if a request from the given client IP is allowed
func (l *ipRateLimiter) Allow(clientIP string) bool {
	return l.get(clientIP).Allow()
}

// get gets or creates the bucket for a client IP
func (l *ipRateLimiter) get(clientIP string) *rate.Limiter {
	l.mu.RLock()
	entry, exists := l.entries[clientIP]
	l.mu.RUnlock()

	if exists {
		l.mu.Lock()
		entry.lastSeen = time.Now()
		l.mu.Unlock()
		return entry.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists := l.entries[clientIP]; exists {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	entry = &limiterEntry{
		limiter:  rate.NewLimiter(l.limit, l.burst),
		lastSeen: time.Now(),
	}
	l.entries[clientIP] = entry
	return entry.limiter
}

// cleanup removes buckets idle for over an hour to prevent unbounded growth
func (l *ipRateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for ip, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}

// startCleanupRoutine sweeps idle buckets until the context is cancelled
func (l *ipRateLimiter) startCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
