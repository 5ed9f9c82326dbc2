// Package protocol defines the websocket message schema between
// monitord and the UI host runtime.
//
// Message Types (monitord → UI host, all acknowledged):
//   - foreground_changed: one semantic foreground transition
//   - verdict: the decision engine's outcome for one entry
//   - timer_set: a quick-task timer became active
//   - timer_expired: a deadline passed; carries the phase and the
//     foreground state captured at the moment of expiration
//   - quota_changed: the authoritative quota after any mutation
//
// Message Types (UI host → monitord):
//   - ack: acknowledges one event; stops its redelivery
//   - accept_quick_task, decline_quick_task: resolve an offer
//   - choose_continue, choose_quit: resolve the blocking choice
//   - set_intention: start a per-app suppression window
//
// Parsing validates required fields per type; unknown types return
// ErrUnsupportedType so a version-skewed peer fails loudly.
package protocol
