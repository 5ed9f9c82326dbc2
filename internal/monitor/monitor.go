package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
)

// RawEvent is one platform-level window focus change, below any
// debouncing or classification.
type RawEvent struct {
	Surface string
	At      time.Time
}

// Source feeds raw focus events from the platform accessibility layer.
type Source interface {
	Events() <-chan RawEvent
}

// Transition is one semantic foreground change. A burst of raw events
// inside the debounce window shares a single transition.
type Transition struct {
	ID  string
	App string
	At  time.Time
}

// Monitor turns raw focus events into semantic foreground transitions.
// Infrastructure surfaces (own overlays, launchers, system overlays)
// never produce transitions: they are not behavioral exits.
type Monitor struct {
	src     Source
	cls     atomic.Pointer[Classifier]
	window  time.Duration
	log     *logging.Logger
	metrics *monitoring.Metrics
	out     chan Transition

	mu          sync.RWMutex
	current     string // last real app surface seen, raw
	lastEmitted string
	prevEmitted string
	lastEmitAt  time.Time
}

// New creates a monitor. The window is the debounce validity window for
// raw-event bursts.
func New(src Source, cls *Classifier, window time.Duration, log *logging.Logger, metrics *monitoring.Metrics) *Monitor {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	m := &Monitor{
		src:     src,
		window:  window,
		log:     log.Named("monitor"),
		metrics: metrics,
		out:     make(chan Transition, 16),
	}
	m.cls.Store(cls)
	return m
}

// SetClassifier swaps the surface classifier after a rules update.
func (m *Monitor) SetClassifier(cls *Classifier) {
	m.cls.Store(cls)
}

// Transitions returns the semantic transition stream.
func (m *Monitor) Transitions() <-chan Transition {
	return m.out
}

// Current returns the real foreground app as of the latest raw event,
// ignoring infrastructure surfaces. The timer authority uses this for
// time-of-truth capture at expiration.
func (m *Monitor) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Run consumes the source until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.src.Events():
			if !ok {
				return
			}
			m.handle(ev)
		}
	}
}

func (m *Monitor) handle(ev RawEvent) {
	class := m.cls.Load().Classify(ev.Surface)
	m.metrics.RawEvents.WithLabelValues(string(class)).Inc()

	if class.Infrastructure() {
		// Launcher gestures, notification shades and our own overlay
		// windows are not the user leaving an app.
		m.metrics.InfraSuppressed.Inc()
		return
	}

	m.mu.Lock()
	m.current = ev.Surface

	if ev.Surface == m.lastEmitted {
		m.mu.Unlock()
		return
	}

	// A flicker back to the app the user just came from, inside the
	// validity window of the transition that started the burst, belongs
	// to that transition rather than starting a new one.
	if ev.Surface == m.prevEmitted && ev.At.Sub(m.lastEmitAt) < m.window {
		m.mu.Unlock()
		return
	}

	t := Transition{
		ID:  uuid.NewString(),
		App: ev.Surface,
		At:  ev.At,
	}
	m.prevEmitted = m.lastEmitted
	m.lastEmitted = ev.Surface
	m.lastEmitAt = ev.At
	m.mu.Unlock()

	m.metrics.Transitions.Inc()
	m.log.Debug("foreground transition",
		zap.String("app", t.App),
		zap.String("transition_id", t.ID),
	)

	select {
	case m.out <- t:
	default:
		m.log.Warn("transition channel full, dropping", zap.String("app", t.App))
	}
}

// ChanSource adapts a plain channel into a Source. Tests and the
// platform adapter both use it.
type ChanSource struct {
	C chan RawEvent
}

// NewChanSource creates a buffered channel source.
func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{C: make(chan RawEvent, buffer)}
}

// Events implements Source.
func (s *ChanSource) Events() <-chan RawEvent {
	return s.C
}

// Push offers a raw event without blocking.
func (s *ChanSource) Push(surface string, at time.Time) {
	select {
	case s.C <- RawEvent{Surface: surface, At: at}:
	default:
	}
}
