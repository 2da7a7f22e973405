// Package api implements the HTTP API and WebSocket server for the device
// remote-control service.
//
// This package provides:
//   - JSON endpoints for devices, kinds, pairing, actions and display state
//   - Owner-scoped listing of the executor audit trail
//   - WebSocket hub pushing state changes to the owning user's connections
//   - Session authentication from the token cookie or a Bearer header
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Per-address rate limiting of the unauthenticated pairing claim
//   - Prometheus metrics at /metrics
//
// # Routes
//
//	GET   /api/health
//	POST  /api/pairing/claim                    (no session, rate limited)
//	GET   /api/device-kinds
//	GET   /api/devices
//	POST  /api/devices
//	GET   /api/devices/{id}
//	GET   /api/devices/{id}/state
//	PATCH /api/devices/{id}/state
//	GET   /api/devices/{id}/state/history
//	POST  /api/pairing-codes
//	POST  /api/device-actions/{id}/{action}
//	GET   /api/audit                             (when an audit store is wired)
//	GET   /api/ws
//	GET   /metrics
//
// # Errors
//
// Every failure is a JSON body {status, code, message, details?}. Domain
// errors are mapped in errors.go; anything unrecognised becomes a 500
// internal_error and is logged.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
