package worker

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "10.0.0.1"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "10.0.0.2"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	limiter.Allow("10.0.0.1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "10.0.0.1"); err == nil {
		t.Error("expected wait to fail once the deadline cannot be met")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("10.0.0.1") {
		t.Error("first request should pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("expected allow to fail (exhausted tokens)")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("expected allow for another client")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected with limiting disabled", i)
		}
	}
}

func TestLimiter_SetKeyRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetKeyRate("bot", 0.1, 1)

	if !limiter.Allow("bot") {
		t.Error("first request should pass")
	}
	if limiter.Allow("bot") {
		t.Error("second request should fail")
	}
	if !limiter.Allow("10.0.0.9") {
		t.Error("other client should pass")
	}
}

func TestLimiter_SetKeyRateExemptsAndSurvivesEviction(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.maxKeys = 2
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.SetKeyRate("10.0.0.1", 0, 0)
	limiter.Allow("10.0.0.2")

	now = now.Add(time.Hour)
	limiter.Allow("10.0.0.3")

	if got := limiter.Len(); got != 2 {
		t.Errorf("expected the idle default client evicted and the exempt one kept, %d tracked", got)
	}
	for i := 0; i < 50; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("exempt client rejected on request %d", i)
		}
	}
}

func TestLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.maxKeys = 3
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("10.0.0.%d", i))
	}

	now = now.Add(time.Hour)
	limiter.Allow("10.0.1.1")

	if got := limiter.Len(); got != 1 {
		t.Errorf("expected idle clients evicted, %d tracked", got)
	}
}
