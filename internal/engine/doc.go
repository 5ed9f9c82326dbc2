// Package engine implements the decision engine: the sole component
// that decides, for each qualifying entry into a monitored app, whether
// to offer a quick task or hand over to the intervention flow.
//
// Decision Algorithm (per semantic foreground transition):
//   - Unmonitored app: no verdict; leaving a decided app ends its entry
//   - Presentation guard up: suppressed (a decision is already on screen)
//   - Same app as the last decision: suppressed (same entry)
//   - No quick-task entry and quota remains: offer, and record the
//     DECISION entry with the authority
//   - Otherwise: no offer; the verdict carries whether an intention
//     timer was active at decision time
//
// Guards:
//   - Both guards are deadline-bounded, not bare booleans. A decision
//     cycle completes in milliseconds; a guard observed past its
//     deadline is stale and self-heals with a warning and a metric.
//   - The presentation guard clears on command resolution, on
//     cancellation, or when the verdict's delivery is acknowledged
//     end-to-end (the verdict's cycle ID is its wire event ID).
//
// The engine owns nothing durable: quota is a cache reconciled through
// QuotaChanged events, entries are read from the authority.
package engine
