package uihost

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
)

func TestStreamURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:7600", "ws://127.0.0.1:7600/stream"},
		{"https://monitord.local", "wss://monitord.local/stream"},
	}
	for _, tc := range cases {
		got, err := streamURL(tc.in)
		if err != nil {
			t.Fatalf("streamURL(%s) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("streamURL(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestMarkSeenDeduplicates(t *testing.T) {
	c := NewClient("http://127.0.0.1:7600", time.Millisecond, time.Second, logging.NewNop())

	if c.markSeen("e1") {
		t.Error("first sighting should not be a duplicate")
	}
	if !c.markSeen("e1") {
		t.Error("redelivery should be recognized")
	}
}

func TestMarkSeenWindowBounded(t *testing.T) {
	c := NewClient("http://127.0.0.1:7600", time.Millisecond, time.Second, logging.NewNop())

	for i := 0; i < seenCap+1; i++ {
		c.markSeen(fmt.Sprintf("e%d", i))
	}
	if len(c.seen) != seenCap {
		t.Errorf("seen set grew past cap: %d", len(c.seen))
	}
	// The oldest entry aged out; a very late redelivery is reapplied,
	// which is safe because event application is idempotent downstream.
	if c.markSeen("e0") {
		t.Error("aged-out entry should no longer be a duplicate")
	}
}

type closeRecorder struct {
	closed bool
}

func (r *closeRecorder) Close() error {
	r.closed = true
	return nil
}

func TestWatchCancelExitsWithReadLoop(t *testing.T) {
	r := &closeRecorder{}
	done := make(chan struct{})
	close(done)

	watchCancel(context.Background(), done, r)

	if r.closed {
		t.Error("a finished read loop must not close the next connection")
	}
}

func TestWatchCancelClosesOnContextEnd(t *testing.T) {
	r := &closeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	watchCancel(ctx, make(chan struct{}), r)

	if !r.closed {
		t.Error("cancellation should close the connection")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	c := NewClient("http://127.0.0.1:7600", time.Millisecond, time.Second, logging.NewNop())
	if err := c.AcceptQuickTask("com.instagram.android", time.Minute); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
