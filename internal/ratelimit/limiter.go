// Package ratelimit bounds how many notifications a single client may send per window.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed bool
	// Count is the number of requests recorded in the current window.
	Count   int
	ResetAt time.Time
}

// RetryAfter is how long a denied client has to wait for a fresh window.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

type record struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request counter keyed by client identifier.
// A window starts with the first request of a client and lasts for the configured duration.
type Limiter struct {
	requests int
	window   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*record
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter allowing requests per window for each client.
func New(requests int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		requests: requests,
		window:   window,
		now:      time.Now,
		clients:  make(map[string]*record),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records a request from id and reports whether it may proceed.
func (l *Limiter) Check(id string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.clients[id]
	if !ok || !now.Before(rec.resetAt) {
		rec = &record{count: 1, resetAt: now.Add(l.window)}
		l.clients[id] = rec
		return Decision{Allowed: true, Count: rec.count, ResetAt: rec.resetAt}
	}

	if rec.count >= l.requests {
		return Decision{Allowed: false, Count: rec.count, ResetAt: rec.resetAt}
	}

	rec.count++
	return Decision{Allowed: true, Count: rec.count, ResetAt: rec.resetAt}
}

// Allow is Check without the details.
func (l *Limiter) Allow(id string) bool {
	return l.Check(id).Allowed
}

// Sweep drops every client whose window has expired and returns how many were removed.
// Expired clients would get a fresh record on their next request anyway.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, rec := range l.clients {
		if !now.Before(rec.resetAt) {
			delete(l.clients, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Limit returns the configured threshold and window.
func (l *Limiter) Limit() (int, time.Duration) {
	return l.requests, l.window
}
