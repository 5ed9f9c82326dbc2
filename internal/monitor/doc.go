// Package monitor turns raw platform focus events into semantic
// foreground transitions.
//
// Raw events arrive from the platform accessibility layer at whatever
// rate it produces them. The monitor classifies each surface and
// suppresses everything that is not a real app change:
//
//   - Infrastructure surfaces (own overlay windows, launchers, system
//     overlays) never produce transitions; a notification shade is not
//     the user leaving an app.
//   - Repeats of the current app are dropped.
//   - A flicker back to the previous app inside the debounce window
//     belongs to the transition that started the burst.
//
// Each emitted transition carries a unique ID so every downstream
// consumer of a burst agrees on which entry it belongs to.
//
// Current() reports the real foreground app as of the latest raw event,
// independent of transition suppression. The timer authority reads it
// at the moment a timer expires.
package monitor
