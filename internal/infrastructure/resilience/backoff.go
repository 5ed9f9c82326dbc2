package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Backoff produces exponentially increasing delays with jitter, capped
// at Max. It is used for UI-host reconnects and event redelivery pacing.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64

	mu      sync.Mutex
	attempt int
}

// NewBackoff creates a backoff with sane defaults for zero fields.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = 250 * time.Millisecond
	}
	if max < min {
		max = 10 * time.Second
	}
	return &Backoff{Min: min, Max: max, Factor: 2}
}

// Next returns the delay for the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.Min
	for i := 0; i < b.attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	b.attempt++

	// Full jitter keeps reconnect herds from synchronizing.
	return time.Duration(rand.Int63n(int64(d)) + 1)
}

// Reset restarts the progression after a success.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

// Attempt returns the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Wait sleeps for the next delay or returns early when the context is
// done. The return value reports whether the wait completed.
func (b *Backoff) Wait(ctx context.Context) bool {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
