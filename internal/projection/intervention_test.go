package projection

import (
	"errors"
	"testing"
	"time"
)

func TestInterventionWalksFixedOrder(t *testing.T) {
	c := newInterventionContext("com.instagram.android")
	now := time.Now()

	expect := []InterventionState{
		StateRootCause,
		StateAlternatives,
		StateAction,
		StateActionTimer,
		StateReflection,
	}

	if c.State != StateBreathing {
		t.Fatalf("flow must start at breathing, got %s", c.State)
	}

	// Alternatives gates forward progress on a selection.
	steps := []Advance{
		{Kind: AdvanceNext},
		{Kind: AdvanceNext},
	}
	for i, a := range steps {
		done, err := c.advance(a, now)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if done {
			t.Fatalf("step %d completed prematurely", i)
		}
		if c.State != expect[i] {
			t.Fatalf("step %d: state %s, want %s", i, c.State, expect[i])
		}
	}

	if _, err := c.advance(Advance{Kind: AdvanceSelectAlternative, Alternative: "walk"}, now); err != nil {
		t.Fatalf("select alternative failed: %v", err)
	}
	for i := 2; i < len(expect); i++ {
		done, err := c.advance(Advance{Kind: AdvanceNext}, now)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if done {
			t.Fatalf("step %d completed prematurely", i)
		}
		if c.State != expect[i] {
			t.Fatalf("step %d: state %s, want %s", i, c.State, expect[i])
		}
	}

	done, err := c.advance(Advance{Kind: AdvanceNext}, now)
	if err != nil {
		t.Fatalf("final step failed: %v", err)
	}
	if !done {
		t.Fatal("reflection next must complete the flow")
	}
	if !c.WasCompleted {
		t.Error("completion must set WasCompleted")
	}
	if c.State != StateIdle {
		t.Errorf("completed flow should return to idle, got %s", c.State)
	}
}

func TestRootCauseAccumulatesSelections(t *testing.T) {
	c := newInterventionContext("com.instagram.android")
	now := time.Now()

	c.advance(Advance{Kind: AdvanceNext}, now)
	c.advance(Advance{Kind: AdvanceSelectCause, Cause: "boredom"}, now)
	c.advance(Advance{Kind: AdvanceSelectCause, Cause: "habit"}, now)

	if len(c.SelectedCauses) != 2 {
		t.Fatalf("expected 2 causes, got %v", c.SelectedCauses)
	}
	if c.State != StateRootCause {
		t.Errorf("selecting causes must not advance, got %s", c.State)
	}
}

func TestAlternativesRequireSelection(t *testing.T) {
	c := newInterventionContext("com.instagram.android")
	now := time.Now()

	c.advance(Advance{Kind: AdvanceNext}, now)
	c.advance(Advance{Kind: AdvanceNext}, now)

	if _, err := c.advance(Advance{Kind: AdvanceNext}, now); !errors.Is(err, ErrInvalidAdvance) {
		t.Errorf("expected ErrInvalidAdvance without a selection, got %v", err)
	}
	if c.State != StateAlternatives {
		t.Errorf("invalid advance must not move state, got %s", c.State)
	}
}

func TestActionTimerDeadline(t *testing.T) {
	c := newInterventionContext("com.instagram.android")
	now := time.Now()

	c.advance(Advance{Kind: AdvanceNext}, now)
	c.advance(Advance{Kind: AdvanceNext}, now)
	c.advance(Advance{Kind: AdvanceSelectAlternative, Alternative: "walk"}, now)
	c.advance(Advance{Kind: AdvanceNext}, now)
	c.advance(Advance{Kind: AdvanceNext, DurationMs: 60000}, now)

	if c.State != StateActionTimer {
		t.Fatalf("expected action_timer, got %s", c.State)
	}
	if want := now.Add(time.Minute); !c.ActionDeadline.Equal(want) {
		t.Errorf("deadline %v, want %v", c.ActionDeadline, want)
	}
}

func TestOutOfOrderAdvanceRejected(t *testing.T) {
	c := newInterventionContext("com.instagram.android")
	now := time.Now()

	if _, err := c.advance(Advance{Kind: AdvanceSelectAlternative, Alternative: "walk"}, now); !errors.Is(err, ErrInvalidAdvance) {
		t.Errorf("selecting an alternative during breathing: expected ErrInvalidAdvance, got %v", err)
	}

	idle := InterventionContext{State: StateIdle}
	if _, err := idle.advance(Advance{Kind: AdvanceNext}, now); !errors.Is(err, ErrInvalidAdvance) {
		t.Errorf("advancing an idle flow: expected ErrInvalidAdvance, got %v", err)
	}
}
