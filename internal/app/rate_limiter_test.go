package app

import (
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two calls should pass")
	}
	if rl.Allow("a") {
		t.Error("third call inside the window should be refused")
	}
	if !rl.Allow("b") {
		t.Error("keys are independent")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Error("window should have slid past the old calls")
	}
}

func TestRateLimiterForget(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	rl.Allow("a")
	if rl.Allow("a") {
		t.Fatal("limit of one")
	}
	rl.Forget("a")
	if !rl.Allow("a") {
		t.Error("Forget should reset the key")
	}
}
