// Package api implements the HTTP REST API and WebSocket stream for a
// btscanner session.
//
// This package provides:
//   - REST endpoints for the session status, the device list, item details,
//     the menu, About, and the scan/stop actions
//   - A WebSocket hub that relays every session Update to stream clients
//   - Middleware (request ID, access log, panic recovery, CORS, body cap)
//
// Routes, under /api/v1:
//
//	GET  /health              liveness and version
//	GET  /status              session.Status
//	GET  /devices             list rows in first-seen order
//	GET  /devices/{address}   item dialog for one device
//	POST /scan                start a scan (202, outcome arrives as updates)
//	POST /stop                stop the running scan
//	GET  /menu                offered actions
//	GET  /about               About dialog
//	GET  /ws                  update stream
//
// A stream connection starts with a "hello" frame holding the status and the
// device rows, then receives one "update" frame per session Update. Clients
// narrow the stream with {"type":"filter","kinds":["device_added"]}; an empty
// kinds list restores everything.
package api
