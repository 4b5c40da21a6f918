// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic sequencer.
//
// This package provides:
//   - REST endpoints for sequence definitions (CRUD, showfile upload)
//   - Playback control: load, unload, play, skip, skip-all, status
//   - Execution history per sequence
//   - WebSocket hub relaying sequence lifecycle events
//   - JWT bearer authentication with role permissions and ticket-based
//     WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - JSON system metrics at /api/v1/metrics and Prometheus exposition at
//     /metrics
//
// # Security
//
// Operators log in with the users declared in security.users and receive a
// short-lived token. Viewers may read, operators may also drive playback,
// admins may also edit definitions. WebSocket connections use single-use
// tickets so tokens never appear in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT. Sequences still load and play; target
// commands are simply not delivered.
package api
