package engine

import "time"

// guards are the edge-triggered suppressors for redundant decisions.
// Both are deadline-bounded rather than bare booleans: a guard observed
// past its deadline is by definition stale, since a decision cycle
// completes in milliseconds, and is cleared before processing continues.
type guards struct {
	// uiPresented is set when a verdict is emitted and cleared when the
	// resulting cycle resolves (command, cancellation, or delivery ack).
	uiPresented bool
	cycleID     string
	deadline    time.Time

	// lastDecidedApp suppresses re-deciding on redundant foreground
	// events for the same entry. It holds until the foreground moves to
	// a different app.
	lastDecidedApp string
}

// staleAt reports whether the presentation guard outlived its cycle.
func (g *guards) staleAt(now time.Time) bool {
	return g.uiPresented && now.After(g.deadline)
}

// clearPresentation drops the presentation guard only.
func (g *guards) clearPresentation() {
	g.uiPresented = false
	g.cycleID = ""
	g.deadline = time.Time{}
}

// clear drops both guards.
func (g *guards) clear() {
	g.clearPresentation()
	g.lastDecidedApp = ""
}
