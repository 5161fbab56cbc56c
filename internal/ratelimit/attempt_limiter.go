package ratelimit

import (
	"sync"
	"time"
)

// AttemptLimiter counts failed attempts per source key over a fixed window.
//
// A key becomes blocked once its failure count reaches the threshold and stays
// blocked until the window that contains those failures rolls over. Entries
// are created lazily on the first failure from a key and reset in place when
// their window expires, so memory is bounded by the number of distinct keys
// observed.
type AttemptLimiter struct {
	mu sync.Mutex

	clock     Clock
	window    time.Duration
	threshold int

	entries map[string]*attemptEntry
}

type attemptEntry struct {
	count       int
	windowStart time.Time
}

func NewAttemptLimiter(clock Clock, window time.Duration, threshold int) *AttemptLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	return &AttemptLimiter{
		clock:     clock,
		window:    window,
		threshold: threshold,
		entries:   make(map[string]*attemptEntry),
	}
}

// Blocked reports whether key has reached the failure threshold within the
// current window. An expired window is reset, so a key is always evaluated
// fresh after the window elapses.
func (l *AttemptLimiter) Blocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return false
	}
	if l.expiredLocked(entry) {
		entry.count = 0
		entry.windowStart = l.clock.Now()
		return false
	}
	return entry.count >= l.threshold
}

// RecordFailure counts one failed attempt against key.
func (l *AttemptLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	entry, ok := l.entries[key]
	if !ok {
		l.entries[key] = &attemptEntry{count: 1, windowStart: now}
		return
	}
	if l.expiredLocked(entry) {
		entry.count = 1
		entry.windowStart = now
		return
	}
	entry.count++
}

func (l *AttemptLimiter) expiredLocked(entry *attemptEntry) bool {
	return l.clock.Now().Sub(entry.windowStart) > l.window
}
