package router

import (
	"sync"
	"time"
)

// DefaultMaxAttempts and DefaultWindow mirror the stock rate limit: 60
// actions per 60-second window per identity.
const (
	DefaultMaxAttempts = 60
	DefaultWindow      = 60 * time.Second
)

type rateEntry struct {
	count int
	start time.Time
}

// Limiter is a per-key windowed counter. Check-and-increment happens
// under one lock per call so concurrent bursts from the same identity
// cannot undercount. An exhausted window is not incremented further.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clock   func() time.Time
	entries map[string]*rateEntry
}

// NewLimiter creates a limiter allowing max attempts per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		max:     max,
		window:  window,
		clock:   time.Now,
		entries: make(map[string]*rateEntry),
	}
}

// SetClock injects a clock for tests.
func (l *Limiter) SetClock(clock func() time.Time) {
	l.mu.Lock()
	l.clock = clock
	l.mu.Unlock()
}

// Allow records one attempt for the key and reports whether it fits the
// window budget. The first attempt after the window elapses starts a
// fresh window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	e := l.entries[key]
	if e == nil || now.Sub(e.start) >= l.window {
		if len(l.entries) > 4096 {
			l.pruneLocked(now)
		}
		e = &rateEntry{start: now}
		l.entries[key] = e
	}

	if e.count >= l.max {
		return false
	}
	e.count++
	return true
}

// pruneLocked drops entries whose window already elapsed.
func (l *Limiter) pruneLocked(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.start) >= l.window {
			delete(l.entries, key)
		}
	}
}
