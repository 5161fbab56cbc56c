package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAttemptLimiter_BlocksAfterThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewAttemptLimiter(clk, time.Minute, 3)

	for i := 0; i < 3; i++ {
		if l.Blocked("1.2.3.4") {
			t.Fatalf("attempt %d: expected not blocked", i+1)
		}
		l.RecordFailure("1.2.3.4")
	}

	// The fourth attempt within the window must be rejected.
	if !l.Blocked("1.2.3.4") {
		t.Fatalf("expected blocked after %d failures", 3)
	}
}

func TestAttemptLimiter_WindowRollover(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewAttemptLimiter(clk, time.Minute, 2)

	l.RecordFailure("key")
	l.RecordFailure("key")
	if !l.Blocked("key") {
		t.Fatalf("expected blocked within window")
	}

	clk.Advance(time.Minute + time.Second)
	if l.Blocked("key") {
		t.Fatalf("expected fresh evaluation after window elapsed")
	}

	// Failures after rollover start a new window.
	l.RecordFailure("key")
	if l.Blocked("key") {
		t.Fatalf("expected single failure in new window to not block")
	}
}

func TestAttemptLimiter_KeysAreIndependent(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewAttemptLimiter(clk, time.Minute, 1)

	l.RecordFailure("a")
	if !l.Blocked("a") {
		t.Fatalf("expected a blocked")
	}
	if l.Blocked("b") {
		t.Fatalf("expected b unaffected")
	}
}

func TestAttemptLimiter_ResetEntryCountsFreshFailures(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewAttemptLimiter(clk, time.Minute, 2)

	l.RecordFailure("key")
	clk.Advance(2 * time.Minute)

	l.RecordFailure("key")
	if l.Blocked("key") {
		t.Fatalf("stale failure must not count toward the new window")
	}
	l.RecordFailure("key")
	if !l.Blocked("key") {
		t.Fatalf("expected blocked after two failures in new window")
	}
}
