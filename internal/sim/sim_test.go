package sim

import (
	"context"
	"testing"
	"time"
)

func TestNewRand_SameSeedSameSequence(t *testing.T) {
	a := NewRand(42)
	b := NewRand(42)

	for i := 0; i < 20; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: expected identical sequences, got %v and %v", i, x, y)
		}
	}
}

func TestBetween_Range(t *testing.T) {
	r := NewRand(7)
	for i := 0; i < 1000; i++ {
		v := Between(r, -10, 10)
		if v < -10 || v >= 10 {
			t.Fatalf("expected value in [-10, 10), got %v", v)
		}
	}
}

func TestPick_CoversPool(t *testing.T) {
	r := NewRand(3)
	pool := []string{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[Pick(r, pool)] = true
	}
	if len(seen) != len(pool) {
		t.Errorf("expected every pool entry to be picked, got %v", seen)
	}
}

func TestManualClock_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if err := c.Sleep(context.Background(), 1500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Sleep(context.Background(), 500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c.Now().Sub(start); got != 2*time.Second {
		t.Errorf("expected clock to advance 2s, got %v", got)
	}
	if sleeps := c.Sleeps(); len(sleeps) != 2 {
		t.Errorf("expected 2 recorded sleeps, got %d", len(sleeps))
	}
}

func TestManualClock_CancelledContext(t *testing.T) {
	c := NewManualClock(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Sleep(ctx, time.Second); err == nil {
		t.Error("expected error for cancelled context")
	}
	if len(c.Sleeps()) != 0 {
		t.Error("expected cancelled sleep not to be recorded")
	}
}

func TestSystemClock_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := SystemClock{}.Sleep(ctx, 5*time.Second)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("expected sleep to stop at the deadline, took %v", time.Since(start))
	}
}
