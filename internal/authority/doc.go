// Package authority implements the timer authority: the single source
// of truth for quick-task quota, per-app quick-task entries, and
// intention timers.
//
// Everything here is authoritative and persisted; every other component
// holds read-only copies resynchronized through Sink events. No timer
// or quota value is ever owned by UI code.
//
// Key Components:
//   - Authority: single-writer state machine over entries and quota
//   - Store: synchronous SQLite persistence, crash-safe by writing
//     before acknowledging
//   - Sink: event fan-out for timer and quota changes
//
// Entry Lifecycle:
//   - DECISION: an offer dialog is showing; carries no timer
//   - ACTIVE: the user accepted; a deadline is running and quota was
//     decremented exactly once
//   - POST_CHOICE: the deadline passed while the app was foreground;
//     held until the user registers continue or quit
//
// Expiration:
//   - A periodic sweep fires deadlines. Whether the app was foreground
//     is captured at the moment of expiration and travels with the
//     event; later foreground churn cannot change the outcome.
//   - Background expirations resolve silently.
//   - A deadline found on a non-ACTIVE entry is stale state and is
//     discarded without UI side effects.
//
// Example Usage:
//
//	store, _ := authority.OpenStore("/var/lib/mindgate/state.db")
//	auth, _ := authority.New(ctx, store, 3, monitor.Current, time.Second, log, metrics)
//	auth.SetSink(sink)
//	go auth.Run(ctx)
package authority
