package authority

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
)

// Phase is the lifecycle phase of a quick-task entry. A timer may exist
// only in PhaseActive; a dialog being shown is intent, not usage.
type Phase string

const (
	PhaseDecision   Phase = "decision"
	PhaseActive     Phase = "active"
	PhasePostChoice Phase = "post_choice"
)

// decisionTTL bounds how long an unresolved DECISION entry may live.
// Resolutions normally arrive within seconds; an entry older than this
// lost its resolution (process death, dropped command) and would
// otherwise block quick-task availability for its app forever.
const decisionTTL = 5 * time.Minute

// Entry is one per-app quick-task record.
type Entry struct {
	App       string
	Phase     Phase
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MarshalJSON serializes deadlines as unix millis, omitted entirely for
// phases that carry none. A zero time.Time would otherwise leak as the
// year-one sentinel.
func (e Entry) MarshalJSON() ([]byte, error) {
	type wire struct {
		App         string `json:"app"`
		Phase       Phase  `json:"phase"`
		ExpiresAtMs int64  `json:"expires_at_ms,omitempty"`
		CreatedAtMs int64  `json:"created_at_ms"`
	}
	w := wire{App: e.App, Phase: e.Phase, CreatedAtMs: e.CreatedAt.UnixMilli()}
	if !e.ExpiresAt.IsZero() {
		w.ExpiresAtMs = e.ExpiresAt.UnixMilli()
	}
	return json.Marshal(w)
}

// Sink receives authority events. The server wires it to the UI-host
// channel and the decision engine's quota cache. Callbacks run with the
// authority lock held and must not call back into the Authority.
type Sink interface {
	TimerSet(app string, expiresAt time.Time)
	TimerExpired(app string, phase Phase, wasForeground bool)
	QuotaChanged(value int)
}

// ForegroundFunc reports the current real foreground app. The authority
// calls it at the moment of expiration, never retroactively.
type ForegroundFunc func() string

var (
	ErrNotFound       = errors.New("no quick-task entry for app")
	ErrEntryExists    = errors.New("quick-task entry already exists")
	ErrWrongPhase     = errors.New("quick-task entry in wrong phase")
	ErrQuotaExhausted = errors.New("quick-task quota exhausted")
)

// Authority owns quota, quick-task entries and intention timers. It is
// the single writer for all of them; everyone else holds read-only
// copies resynchronized through Sink events.
type Authority struct {
	store      *Store
	log        *logging.Logger
	metrics    *monitoring.Metrics
	foreground ForegroundFunc
	interval   time.Duration
	now        func() time.Time

	mu         sync.Mutex
	sink       Sink
	quota      int
	entries    map[string]*Entry
	intentions map[string]time.Time
}

// New loads persisted state and returns a ready authority. When the
// store holds no quota yet, seedQuota from the rules file is persisted
// as the starting value.
func New(ctx context.Context, store *Store, seedQuota int, fg ForegroundFunc, interval time.Duration, log *logging.Logger, metrics *monitoring.Metrics) (*Authority, error) {
	if interval <= 0 {
		interval = time.Second
	}

	quota, found, err := store.Quota(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		quota = seedQuota
		if err := store.SetQuota(ctx, quota); err != nil {
			return nil, err
		}
	}

	persisted, err := store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]*Entry, len(persisted))
	for i := range persisted {
		e := persisted[i]
		entries[e.App] = &e
	}

	intentions, err := store.Intentions(ctx)
	if err != nil {
		return nil, err
	}

	metrics.QuotaRemaining.Set(float64(quota))

	return &Authority{
		store:      store,
		log:        log.Named("authority"),
		metrics:    metrics,
		foreground: fg,
		interval:   interval,
		now:        time.Now,
		quota:      quota,
		entries:    entries,
		intentions: intentions,
	}, nil
}

// SetSink attaches the event sink. Must be called before Run.
func (a *Authority) SetSink(s Sink) {
	a.mu.Lock()
	a.sink = s
	a.mu.Unlock()
}

// Quota returns the authoritative quota value.
func (a *Authority) Quota() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quota
}

// SetQuota applies an external configuration change and announces it so
// cached copies reconcile before the next decision.
func (a *Authority) SetQuota(ctx context.Context, value int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.SetQuota(ctx, value); err != nil {
		return err
	}
	a.quota = value
	a.metrics.QuotaRemaining.Set(float64(value))
	a.notifyQuota(value)
	return nil
}

// Entry returns a copy of the entry for app.
func (a *Authority) Entry(app string) (Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[app]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a snapshot of all entries.
func (a *Authority) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, *e)
	}
	return out
}

// Intentions returns a snapshot of active intention timers.
func (a *Authority) Intentions() map[string]time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]time.Time, len(a.intentions))
	for app, exp := range a.intentions {
		out[app] = exp
	}
	return out
}

// IntentionActive reports whether an unexpired intention timer exists
// for app.
func (a *Authority) IntentionActive(app string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	exp, ok := a.intentions[app]
	return ok && a.now().Before(exp)
}

// OpenDecision records that a quick-task offer is being shown. The
// entry carries no timer: showing a dialog must never itself be timed.
func (a *Authority) OpenDecision(ctx context.Context, app string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[app]; ok {
		return ErrEntryExists
	}
	e := &Entry{App: app, Phase: PhaseDecision, CreatedAt: a.now()}
	if err := a.store.SaveEntry(ctx, *e); err != nil {
		return err
	}
	a.entries[app] = e
	return nil
}

// Activate moves an entry from DECISION to ACTIVE on explicit user
// acceptance. This is the single place quota is decremented.
func (a *Authority) Activate(ctx context.Context, app string, duration time.Duration) (Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[app]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if e.Phase != PhaseDecision {
		return Entry{}, ErrWrongPhase
	}
	if a.quota <= 0 {
		return Entry{}, ErrQuotaExhausted
	}

	updated := *e
	updated.Phase = PhaseActive
	updated.ExpiresAt = a.now().Add(duration)
	if err := a.store.SaveEntry(ctx, updated); err != nil {
		return Entry{}, err
	}
	newQuota := a.quota - 1
	if err := a.store.SetQuota(ctx, newQuota); err != nil {
		return Entry{}, err
	}

	*e = updated
	a.quota = newQuota
	a.metrics.QuotaRemaining.Set(float64(newQuota))

	a.log.Info("quick task activated",
		zap.String("app", app),
		zap.Time("expires_at", updated.ExpiresAt),
		zap.Int("quota", newQuota),
	)
	a.notifyTimerSet(app, updated.ExpiresAt)
	a.notifyQuota(newQuota)
	return updated, nil
}

// Clear removes any entry for app so a stale timer cannot fire later.
// Used on decline and on resolution.
func (a *Authority) Clear(ctx context.Context, app string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clearLocked(ctx, app)
}

func (a *Authority) clearLocked(ctx context.Context, app string) error {
	if _, ok := a.entries[app]; !ok {
		return nil
	}
	if err := a.store.DeleteEntry(ctx, app); err != nil {
		return err
	}
	delete(a.entries, app)
	return nil
}

// Continue resolves a post-choice entry by granting a fresh allowance
// when quota remains. Returns whether a new timer was granted.
func (a *Authority) Continue(ctx context.Context, app string, duration time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[app]
	if !ok {
		return false, ErrNotFound
	}
	if e.Phase != PhasePostChoice {
		return false, ErrWrongPhase
	}

	if a.quota <= 0 {
		// Nothing left to grant: resolve the entry; the next entry into
		// the app goes through a normal decision cycle.
		return false, a.clearLocked(ctx, app)
	}

	updated := *e
	updated.Phase = PhaseActive
	updated.ExpiresAt = a.now().Add(duration)
	if err := a.store.SaveEntry(ctx, updated); err != nil {
		return false, err
	}
	newQuota := a.quota - 1
	if err := a.store.SetQuota(ctx, newQuota); err != nil {
		return false, err
	}

	*e = updated
	a.quota = newQuota
	a.metrics.QuotaRemaining.Set(float64(newQuota))
	a.notifyTimerSet(app, updated.ExpiresAt)
	a.notifyQuota(newQuota)
	return true, nil
}

// Quit resolves a post-choice entry by deleting it.
func (a *Authority) Quit(ctx context.Context, app string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clearLocked(ctx, app)
}

// SetIntention starts a suppression window for app and resolves any
// open entry: the user chose deliberate use over the allowance flow.
func (a *Authority) SetIntention(ctx context.Context, app string, duration time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiresAt := a.now().Add(duration)
	if err := a.store.SaveIntention(ctx, app, expiresAt); err != nil {
		return err
	}
	a.intentions[app] = expiresAt
	if err := a.clearLocked(ctx, app); err != nil {
		return err
	}
	a.log.Info("intention timer set", zap.String("app", app), zap.Time("expires_at", expiresAt))
	return nil
}

// Run drives the periodic expiration sweep until ctx is cancelled. It
// is the only polling loop in the system.
func (a *Authority) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep fires expiration events for every timer past its deadline.
// wasForeground is captured here, at the moment of expiration; the
// captured value stays valid for the resulting decision even if the
// foreground churns afterwards.
func (a *Authority) Sweep(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.Sweeps.Inc()
	now := a.now()

	for app, e := range a.entries {
		if e.Phase == PhaseDecision && e.ExpiresAt.IsZero() && now.Sub(e.CreatedAt) > decisionTTL {
			a.metrics.OrphanedDecisions.Inc()
			a.log.Warn("orphaned decision entry discarded",
				zap.String("app", app),
				zap.Time("created_at", e.CreatedAt),
			)
			if err := a.clearLocked(ctx, app); err != nil {
				a.log.Error("failed to clear orphaned entry", zap.String("app", app), zap.Error(err))
			}
			continue
		}
		if e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt) {
			continue
		}

		phase := e.Phase
		if phase != PhaseActive {
			// A deadline on a non-active entry is stale state, most
			// likely from an interrupted cycle. Discard without UI
			// side effects; the receiver double-checks the phase too.
			a.metrics.StaleTimers.Inc()
			a.log.Warn("stale timer discarded",
				zap.String("app", app),
				zap.String("phase", string(phase)),
			)
			if err := a.clearLocked(ctx, app); err != nil {
				a.log.Error("failed to clear stale entry", zap.String("app", app), zap.Error(err))
			}
			a.notifyExpired(app, phase, false)
			continue
		}

		wasForeground := a.foreground() == app
		a.metrics.TimersExpired.WithLabelValues(boolLabel(wasForeground)).Inc()

		if wasForeground {
			// The blocking choice screen takes over; the entry survives
			// in POST_CHOICE until the user registers continue or quit.
			updated := *e
			updated.Phase = PhasePostChoice
			updated.ExpiresAt = time.Time{}
			if err := a.store.SaveEntry(ctx, updated); err != nil {
				a.log.Error("failed to persist post-choice entry", zap.String("app", app), zap.Error(err))
				continue
			}
			*e = updated
		} else {
			// Background expiration resolves silently.
			if err := a.clearLocked(ctx, app); err != nil {
				a.log.Error("failed to clear expired entry", zap.String("app", app), zap.Error(err))
				continue
			}
		}

		a.log.Info("quick task expired",
			zap.String("app", app),
			zap.Bool("was_foreground", wasForeground),
		)
		a.notifyExpired(app, PhaseActive, wasForeground)
	}

	for app, exp := range a.intentions {
		if now.Before(exp) {
			continue
		}
		if err := a.store.DeleteIntention(ctx, app); err != nil {
			a.log.Error("failed to delete intention", zap.String("app", app), zap.Error(err))
			continue
		}
		delete(a.intentions, app)
		a.log.Info("intention timer elapsed", zap.String("app", app))
	}
}

func (a *Authority) notifyTimerSet(app string, expiresAt time.Time) {
	if a.sink != nil {
		a.sink.TimerSet(app, expiresAt)
	}
}

func (a *Authority) notifyExpired(app string, phase Phase, wasForeground bool) {
	if a.sink != nil {
		a.sink.TimerExpired(app, phase, wasForeground)
	}
}

func (a *Authority) notifyQuota(value int) {
	if a.sink != nil {
		a.sink.QuotaChanged(value)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
