package handlers

import (
	"strings"
	"sync"
	"time"
)

// submissionLimiter counts public form submissions per key within a fixed window.
type submissionLimiter interface {
	// Allow records one submission and reports whether it fits the window. When it does not,
	// retryAfter is the time left until the window resets.
	Allow(key string) (ok bool, retryAfter time.Duration)
}

type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]submissionWindow
}

type submissionWindow struct {
	count   int
	resetAt time.Time
}

func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) submissionLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]submissionWindow),
	}
}

func (l *windowLimiter) Allow(key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || !now.Before(current.resetAt) {
		l.evictExpired(now)
		l.windows[key] = submissionWindow{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if current.count >= l.limit {
		return false, current.resetAt.Sub(now)
	}
	current.count++
	l.windows[key] = current
	return true, 0
}

// evictExpired drops windows that have already reset.
func (l *windowLimiter) evictExpired(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
