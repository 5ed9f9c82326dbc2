package projection

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/protocol"
)

// Commander sends resolutions back to the timer authority. Decisions
// arriving at the manager are commands, not suggestions, and the
// manager never mutates quota or timer state except through these.
type Commander interface {
	AcceptQuickTask(app string, duration time.Duration) error
	DeclineQuickTask(app string) error
	ChooseContinue(app string) error
	ChooseQuit(app string) error
	SetIntention(app string, duration time.Duration) error
}

// ErrWrongSession is returned when a UI-host command does not match the
// current session.
var ErrWrongSession = errors.New("command does not match current session")

// Manager projects verdicts and expirations into the ephemeral Session
// and drives the intervention phase state machine. It holds no
// authoritative state and is rebuilt from commands after process death.
type Manager struct {
	log         *logging.Logger
	cmd         Commander
	onSession   func(Session)
	onDirective func(Directive, string)
	now         func() time.Time

	mu      sync.Mutex
	session Session
	ictx    InterventionContext
}

// NewManager creates a projection manager. onSession fires on every
// session replacement; onDirective fires for one-shot platform actions.
func NewManager(cmd Commander, onSession func(Session), onDirective func(Directive, string), log *logging.Logger) *Manager {
	return &Manager{
		log:         log.Named("projection"),
		cmd:         cmd,
		onSession:   onSession,
		onDirective: onDirective,
		now:         time.Now,
		session:     None(),
		ictx:        InterventionContext{State: StateIdle},
	}
}

// Session returns the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Intervention returns a copy of the intervention context. Tests and
// the renderer read it; nothing outside the manager writes it.
func (m *Manager) Intervention() InterventionContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.ictx
	c.SelectedCauses = append([]string(nil), m.ictx.SelectedCauses...)
	return c
}

// HandleVerdict applies a decision engine verdict.
func (m *Manager) HandleVerdict(v protocol.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch v.Kind {
	case protocol.VerdictShowQuickTask:
		m.setSession(Session{Kind: SessionQuickTask, App: v.App})
	case protocol.VerdictNoQuickTask:
		if v.IntentionActive {
			// Prior user intent still stands: fully suppressed.
			m.setSession(None())
			return
		}
		m.ictx = newInterventionContext(v.App)
		m.setSession(Session{
			Kind:         SessionIntervention,
			App:          v.App,
			Intervention: m.ictx.view(),
		})
	default:
		m.log.Warn("unknown verdict kind", zap.String("kind", string(v.Kind)))
	}
}

// HandleTimerExpired applies a timer authority expiration. The phase
// carried in the event was captured before the entry was cleared; only
// an ACTIVE expiry may touch the session.
func (m *Manager) HandleTimerExpired(ev protocol.TimerExpired) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Phase != protocol.PhaseActive {
		// Stale timer: the entry was never activated. A dialog being
		// shown is not usage; discard without side effects.
		m.log.Warn("discarding stale timer expiration",
			zap.String("app", ev.App),
			zap.String("phase", string(ev.Phase)),
		)
		return
	}

	if !ev.WasForeground {
		// Background expiration resolves silently; the authority
		// already deleted the entry.
		m.log.Debug("background expiration", zap.String("app", ev.App))
		return
	}

	// Blocking obligation: background the target app immediately so no
	// content keeps running behind the choice screen.
	m.setSession(Session{Kind: SessionPostChoice, App: ev.App})
	m.directive(DirectiveBackgroundApp, ev.App)
}

// HandleForeground applies a semantic foreground transition. A switch
// away from the target app cancels quick-task and intervention
// sessions; the post-quick-task choice is exempt — it blocks until the
// user registers continue or quit.
func (m *Manager) HandleForeground(ev protocol.ForegroundChanged) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.session.Kind {
	case SessionPostChoice:
		// Launcher gestures and focus churn cannot dismiss the choice.
		m.log.Debug("ignoring foreground change during blocking choice",
			zap.String("app", ev.App),
		)
	case SessionQuickTask:
		if ev.App != m.session.App {
			app := m.session.App
			m.log.Info("quick task offer cancelled by app switch",
				zap.String("target", app),
				zap.String("foreground", ev.App),
			)
			if err := m.cmd.DeclineQuickTask(app); err != nil {
				m.log.Error("failed to clear declined entry", zap.String("app", app), zap.Error(err))
			}
			m.setSession(None())
		}
	case SessionIntervention:
		if ev.App != m.session.App {
			// Abandoned mid-flow: destroy the context with
			// wasCompleted=false. No post-completion action fires on
			// this path.
			m.log.Info("intervention cancelled by app switch",
				zap.String("target", m.session.App),
				zap.String("foreground", ev.App),
				zap.String("state", string(m.ictx.State)),
			)
			m.ictx = InterventionContext{State: StateIdle}
			m.setSession(None())
		}
	}
}

// AcceptQuickTask activates the offered allowance with the given
// duration. The dialog closes; the user keeps using the app.
func (m *Manager) AcceptQuickTask(duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Kind != SessionQuickTask {
		return ErrWrongSession
	}
	app := m.session.App
	if err := m.cmd.AcceptQuickTask(app, duration); err != nil {
		return err
	}
	m.setSession(None())
	return nil
}

// DeclineQuickTask refuses the offer and enters the full intervention
// flow instead.
func (m *Manager) DeclineQuickTask() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Kind != SessionQuickTask {
		return ErrWrongSession
	}
	app := m.session.App
	if err := m.cmd.DeclineQuickTask(app); err != nil {
		return err
	}
	m.ictx = newInterventionContext(app)
	m.setSession(Session{
		Kind:         SessionIntervention,
		App:          app,
		Intervention: m.ictx.view(),
	})
	return nil
}

// AdvanceIntervention applies one UI action to the flow. Normal
// completion of the terminal reflection step triggers the return-home
// directive — unless an intention timer was chosen along the way.
func (m *Manager) AdvanceIntervention(a Advance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Kind != SessionIntervention {
		return ErrWrongSession
	}

	completed, err := m.ictx.advance(a, m.now())
	if err != nil {
		return err
	}
	if !completed {
		m.setSession(Session{
			Kind:         SessionIntervention,
			App:          m.session.App,
			Intervention: m.ictx.view(),
		})
		return nil
	}

	app := m.session.App
	fireHome := m.ictx.WasCompleted && !m.ictx.IntentionTimerSet
	m.log.Info("intervention completed",
		zap.String("app", app),
		zap.Bool("intention_timer_set", m.ictx.IntentionTimerSet),
	)
	m.ictx = InterventionContext{State: StateIdle}
	m.setSession(None())
	if fireHome {
		m.directive(DirectiveReturnHome, app)
	}
	return nil
}

// ChooseIntention ends the intervention early: the user commits to
// using the app deliberately for the given window. No return-home fires.
func (m *Manager) ChooseIntention(duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Kind != SessionIntervention {
		return ErrWrongSession
	}
	app := m.session.App
	if err := m.cmd.SetIntention(app, duration); err != nil {
		return err
	}
	m.ictx.IntentionTimerSet = true
	m.ictx.WasCompleted = false
	m.ictx.State = StateIdle
	m.setSession(None())
	return nil
}

// ChooseContinue resolves the blocking choice by continuing.
func (m *Manager) ChooseContinue() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Kind != SessionPostChoice {
		return ErrWrongSession
	}
	app := m.session.App
	if err := m.cmd.ChooseContinue(app); err != nil {
		return err
	}
	m.setSession(None())
	return nil
}

// ChooseQuit resolves the blocking choice by leaving the app for good.
func (m *Manager) ChooseQuit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Kind != SessionPostChoice {
		return ErrWrongSession
	}
	app := m.session.App
	if err := m.cmd.ChooseQuit(app); err != nil {
		return err
	}
	m.setSession(None())
	m.directive(DirectiveBackgroundApp, app)
	return nil
}

func (m *Manager) setSession(s Session) {
	m.session = s
	if m.onSession != nil {
		m.onSession(s)
	}
}

func (m *Manager) directive(d Directive, app string) {
	if m.onDirective != nil {
		m.onDirective(d, app)
	}
}
