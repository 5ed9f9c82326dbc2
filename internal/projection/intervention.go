package projection

import (
	"errors"
	"fmt"
	"time"
)

// InterventionState is one step of the multi-step mindfulness flow. The
// order is fixed; the flow either walks it to the end or is cancelled.
type InterventionState string

const (
	StateIdle         InterventionState = "idle"
	StateBreathing    InterventionState = "breathing"
	StateRootCause    InterventionState = "root_cause"
	StateAlternatives InterventionState = "alternatives"
	StateAction       InterventionState = "action"
	StateActionTimer  InterventionState = "action_timer"
	StateReflection   InterventionState = "reflection"
)

var stateOrder = []InterventionState{
	StateIdle,
	StateBreathing,
	StateRootCause,
	StateAlternatives,
	StateAction,
	StateActionTimer,
	StateReflection,
}

// InterventionContext is the one active intervention instance. It lives
// only in this process and is rebuilt from commands after any restart.
type InterventionContext struct {
	State               InterventionState
	TargetApp           string
	SelectedCauses      []string
	SelectedAlternative string
	ActionDeadline      time.Time
	WasCompleted        bool
	IntentionTimerSet   bool
}

// AdvanceKind enumerates UI-host actions inside the flow.
type AdvanceKind string

const (
	AdvanceNext              AdvanceKind = "next"
	AdvanceSelectCause       AdvanceKind = "select_cause"
	AdvanceSelectAlternative AdvanceKind = "select_alternative"
)

// Advance is one step request from the UI host.
type Advance struct {
	Kind        AdvanceKind
	Cause       string
	Alternative string
	DurationMs  int64
}

var ErrInvalidAdvance = errors.New("invalid intervention advance")

// newInterventionContext starts the flow at breathing for the target.
func newInterventionContext(app string) InterventionContext {
	return InterventionContext{State: StateBreathing, TargetApp: app}
}

// view returns the renderer-facing snapshot.
func (c *InterventionContext) view() *InterventionView {
	causes := make([]string, len(c.SelectedCauses))
	copy(causes, c.SelectedCauses)
	return &InterventionView{
		State:               c.State,
		SelectedCauses:      causes,
		SelectedAlternative: c.SelectedAlternative,
	}
}

// advance applies one UI action. It returns completed=true when the
// terminal reflection step finished normally; that is the only path
// that sets WasCompleted.
func (c *InterventionContext) advance(a Advance, now time.Time) (completed bool, err error) {
	switch c.State {
	case StateBreathing:
		if a.Kind != AdvanceNext {
			return false, fmt.Errorf("%w: %s during %s", ErrInvalidAdvance, a.Kind, c.State)
		}
		c.State = StateRootCause
	case StateRootCause:
		switch a.Kind {
		case AdvanceSelectCause:
			if a.Cause == "" {
				return false, fmt.Errorf("%w: empty cause", ErrInvalidAdvance)
			}
			c.SelectedCauses = append(c.SelectedCauses, a.Cause)
		case AdvanceNext:
			c.State = StateAlternatives
		default:
			return false, fmt.Errorf("%w: %s during %s", ErrInvalidAdvance, a.Kind, c.State)
		}
	case StateAlternatives:
		switch a.Kind {
		case AdvanceSelectAlternative:
			if a.Alternative == "" {
				return false, fmt.Errorf("%w: empty alternative", ErrInvalidAdvance)
			}
			c.SelectedAlternative = a.Alternative
		case AdvanceNext:
			if c.SelectedAlternative == "" {
				return false, fmt.Errorf("%w: no alternative selected", ErrInvalidAdvance)
			}
			c.State = StateAction
		default:
			return false, fmt.Errorf("%w: %s during %s", ErrInvalidAdvance, a.Kind, c.State)
		}
	case StateAction:
		if a.Kind != AdvanceNext {
			return false, fmt.Errorf("%w: %s during %s", ErrInvalidAdvance, a.Kind, c.State)
		}
		c.State = StateActionTimer
		if a.DurationMs > 0 {
			// Local countdown for the chosen activity. Ephemeral by
			// design: the timer authority never sees it.
			c.ActionDeadline = now.Add(time.Duration(a.DurationMs) * time.Millisecond)
		}
	case StateActionTimer:
		if a.Kind != AdvanceNext {
			return false, fmt.Errorf("%w: %s during %s", ErrInvalidAdvance, a.Kind, c.State)
		}
		c.State = StateReflection
	case StateReflection:
		if a.Kind != AdvanceNext {
			return false, fmt.Errorf("%w: %s during %s", ErrInvalidAdvance, a.Kind, c.State)
		}
		c.State = StateIdle
		c.WasCompleted = true
		return true, nil
	default:
		return false, fmt.Errorf("%w: flow not active", ErrInvalidAdvance)
	}
	return false, nil
}
