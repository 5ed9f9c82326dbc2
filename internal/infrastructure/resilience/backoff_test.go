package resilience

import (
	"context"
	"testing"
	"time"
)

func TestNextStaysWithinBounds(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second)

	for i := 0; i < 10; i++ {
		d := b.Next()
		if d <= 0 || d > time.Second {
			t.Fatalf("attempt %d: delay %v outside (0, 1s]", i, d)
		}
	}
	if b.Attempt() != 10 {
		t.Errorf("expected 10 attempts, got %d", b.Attempt())
	}
}

func TestResetRestartsProgression(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second)
	b.Next()
	b.Next()
	b.Reset()
	if b.Attempt() != 0 {
		t.Errorf("expected 0 attempts after reset, got %d", b.Attempt())
	}
	if d := b.Next(); d > 100*time.Millisecond {
		t.Errorf("first delay after reset should be within Min, got %v", d)
	}
}

func TestDefaultsForZeroFields(t *testing.T) {
	b := NewBackoff(0, 0)
	if b.Min <= 0 {
		t.Errorf("expected positive default Min, got %v", b.Min)
	}
	if b.Max < b.Min {
		t.Errorf("Max %v below Min %v", b.Max, b.Min)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	b := NewBackoff(time.Hour, 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if b.Wait(ctx) {
		t.Error("Wait should return false on a cancelled context")
	}
}

func TestWaitCompletes(t *testing.T) {
	b := NewBackoff(time.Millisecond, 2*time.Millisecond)
	if !b.Wait(context.Background()) {
		t.Error("Wait should complete a short delay")
	}
}
