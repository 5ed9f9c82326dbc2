// Package uihost implements the UI-host runtime's connection to
// monitord.
//
// The client bootstraps from the authoritative /state snapshot, then
// consumes the websocket event stream: each event is applied to the
// projection and acknowledged, in that order, so a crash between the
// two causes a redelivery rather than a lost event. A bounded seen-set
// makes redeliveries harmless.
//
// Disconnects reconnect with capped exponential backoff and full
// jitter; the daemon retains unacknowledged events across the gap.
//
// The client is also the projection's Commander: user choices travel
// back to monitord as websocket commands.
package uihost
