package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/authority"
	"github.com/mindgate/mindgate/internal/infrastructure/config"
	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
	"github.com/mindgate/mindgate/internal/monitor"
	"github.com/mindgate/mindgate/internal/protocol"
)

// AuthorityView is the engine's read-mostly window into the timer
// authority. OpenDecision is the one mutation: recording that an offer
// was made.
type AuthorityView interface {
	Entry(app string) (authority.Entry, bool)
	IntentionActive(app string) bool
	OpenDecision(ctx context.Context, app string) error
	Quota() int
}

// Verdict is the engine's single outcome for one qualifying entry. The
// CycleID doubles as the wire event ID, so an acknowledgment from the
// UI host resolves exactly this cycle.
type Verdict struct {
	Kind            protocol.VerdictKind
	App             string
	TransitionID    string
	CycleID         string
	IntentionActive bool
}

// Engine decides, exactly once per qualifying foreground entry into a
// monitored app, whether to offer a quick task or hand over to the
// intervention flow. It never owns state: quota is a cache reconciled
// through QuotaChanged, timers are read from the authority.
type Engine struct {
	log      *logging.Logger
	metrics  *monitoring.Metrics
	auth     AuthorityView
	emit     func(Verdict)
	guardTTL time.Duration
	now      func() time.Time

	quota atomic.Int64

	mu    sync.Mutex
	rules *config.Rules
	g     guards
}

// New creates an engine with its quota cache synced from the authority.
func New(rules *config.Rules, auth AuthorityView, guardTTL time.Duration, emit func(Verdict), log *logging.Logger, metrics *monitoring.Metrics) *Engine {
	if guardTTL <= 0 {
		guardTTL = 5 * time.Second
	}
	e := &Engine{
		log:      log.Named("engine"),
		metrics:  metrics,
		auth:     auth,
		emit:     emit,
		guardTTL: guardTTL,
		now:      time.Now,
		rules:    rules,
	}
	e.quota.Store(int64(auth.Quota()))
	return e
}

// SetRules swaps the policy after an external configuration change.
func (e *Engine) SetRules(rules *config.Rules) {
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// OnQuotaChanged reconciles the cached quota with the authoritative
// value. Safe to call from the authority's sink (no engine lock taken).
func (e *Engine) OnQuotaChanged(value int) {
	e.quota.Store(int64(value))
}

// Resolve clears the presentation guard after the cycle for app reached
// its natural resolution through a user command or cancellation.
func (e *Engine) Resolve(app string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.lastDecidedApp == app {
		e.g.clearPresentation()
	}
}

// ResolveCycle clears the presentation guard when the verdict event with
// the given ID was acknowledged end-to-end.
func (e *Engine) ResolveCycle(cycleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.cycleID == cycleID {
		e.g.clearPresentation()
	}
}

// HandleTransition processes one semantic foreground transition and
// emits at most one verdict: exactly one for every qualifying entry
// into a monitored app, none otherwise.
func (e *Engine) HandleTransition(ctx context.Context, t monitor.Transition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if e.g.staleAt(now) {
		// A guard that outlives its own decision cycle is stale by
		// definition; clear and proceed so no entry hits a UI vacuum.
		e.metrics.StaleGuards.Inc()
		e.log.Warn("stale guard cleared",
			zap.String("cycle_id", e.g.cycleID),
			zap.String("last_decided_app", e.g.lastDecidedApp),
		)
		e.g.clear()
	}

	if !e.rules.Monitored(t.App) {
		// Leaving the decided app ends the entry; the projection side
		// cancels its session from the same transition.
		if e.g.lastDecidedApp != "" && e.g.lastDecidedApp != t.App {
			e.g.clear()
		}
		return
	}

	if e.g.uiPresented {
		e.metrics.SuppressedEntries.WithLabelValues("ui_presented").Inc()
		return
	}
	if e.g.lastDecidedApp == t.App {
		e.metrics.SuppressedEntries.WithLabelValues("last_decided").Inc()
		return
	}
	// A different monitored app starts a fresh entry.
	e.g.clear()

	_, hasEntry := e.auth.Entry(t.App)
	intention := e.auth.IntentionActive(t.App)
	quota := int(e.quota.Load())

	v := Verdict{
		App:             t.App,
		TransitionID:    t.ID,
		CycleID:         uuid.NewString(),
		IntentionActive: intention,
	}
	if !hasEntry && quota > 0 {
		v.Kind = protocol.VerdictShowQuickTask
		if err := e.auth.OpenDecision(ctx, t.App); err != nil {
			e.log.Error("failed to open decision entry", zap.String("app", t.App), zap.Error(err))
		}
	} else {
		v.Kind = protocol.VerdictNoQuickTask
	}

	e.g.lastDecidedApp = t.App
	if v.Kind == protocol.VerdictShowQuickTask || !intention {
		e.g.uiPresented = true
		e.g.cycleID = v.CycleID
		e.g.deadline = now.Add(e.guardTTL)
	}

	e.metrics.Verdicts.WithLabelValues(string(v.Kind)).Inc()
	e.log.Info("verdict",
		zap.String("app", t.App),
		zap.String("kind", string(v.Kind)),
		zap.Bool("intention_active", intention),
		zap.Int("quota", quota),
		zap.String("cycle_id", v.CycleID),
	)
	e.emit(v)
}
