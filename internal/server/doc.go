// Package server wires the monitord daemon: the foreground monitor,
// decision engine and timer authority, plus the HTTP/WS surface the UI
// host runtime attaches to.
//
// HTTP Endpoints:
//   - POST /events/focus: raw focus events from the platform adapter
//   - GET  /state: authoritative snapshot for resynchronization
//   - GET/PUT /rules: policy inspection and runtime replacement
//   - PUT  /quota: external quota edits
//   - GET  /stream: websocket upgrade to the event stream
//   - GET  /health, /metrics: liveness and Prometheus metrics
//
// Delivery:
//   - The hub provides at-least-once event delivery. Every event stays
//     pending until acknowledged and is redelivered on a fixed cadence,
//     including to a runtime that attaches later. A timer expiration is
//     not allowed to vanish while unobserved.
package server
